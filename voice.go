// voice.go - Polyphonic voice: oscillator and envelope state

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NetAudio
License: GPLv3 or later
*/

package main

// Envelope stages.
const (
	ENV_ATTACK = iota
	ENV_DECAY
	ENV_SUSTAIN
	ENV_RELEASE
)

const (
	NOISE_LFSR_SEED = 0x7FFFFF // 23-bit LFSR seed
	NOISE_LFSR_MASK = 0x7FFFFF // 23-bit mask
)

// Forced-release length applied on stop and on voice stealing, in
// milliseconds. Short enough to feel immediate, long enough to avoid a
// sample discontinuity.
const FORCED_RELEASE_MS = 25

const MIN_ENV_TIME = 1 // Minimum envelope stage length in samples

// Voice is one live instance of a patch bound to a single ParameterEvent.
// It holds oscillator phase, envelope state and per-voice noise memory.
// Created when an event starts a sound, destroyed when the release stage
// completes or when stolen under polyphony pressure.
type Voice struct {
	// Hot oscillator state
	active    bool
	waveType  int
	frequency float32 // Hz
	amplitude float32
	panWeight float32
	phase     float32 // 0..1 normalized phase position

	// Noise generator state
	noiseSR          uint32
	noisePhase       float32
	noiseFilterState float32

	// Envelope state
	envelopeLevel  float32
	envelopePhase  int
	envelopeSample int
	attackTime     int // samples
	decayTime      int
	releaseTime    int
	sustainLevel   float32
	gateSamples    int // samples of held gate remaining before release

	age uint64 // allocation sequence, used for steal tie-break
}

// noteOn binds the voice to a mapped event under the given patch envelope.
func (v *Voice) noteOn(ev ParameterEvent, env EnvelopeSpec, sampleRate int, age uint64) {
	msToSamples := float32(sampleRate) / 1000.0

	v.active = true
	v.waveType = ev.Waveform
	v.frequency = ev.Frequency
	v.amplitude = ev.Amplitude
	v.panWeight = monoPanWeight(ev.Pan)
	v.phase = 0
	v.noiseSR = NOISE_LFSR_SEED
	v.noisePhase = 0
	v.noiseFilterState = 0

	v.envelopeLevel = 0
	v.envelopePhase = ENV_ATTACK
	v.envelopeSample = 0
	v.attackTime = max(int(env.AttackMS*msToSamples), MIN_ENV_TIME)
	v.decayTime = max(int(env.DecayMS*msToSamples), MIN_ENV_TIME)
	v.releaseTime = max(int(env.ReleaseMS*msToSamples), MIN_ENV_TIME)
	v.sustainLevel = env.Sustain
	v.gateSamples = max(int(ev.Duration*float32(sampleRate)), 1)
	v.age = age
}

// forceRelease cuts the gate and shortens the release so the voice fades
// out quickly without a discontinuity. Used on stop and on stealing.
func (v *Voice) forceRelease(sampleRate int) {
	if !v.active || v.envelopePhase == ENV_RELEASE {
		return
	}
	v.gateSamples = 0
	v.envelopePhase = ENV_RELEASE
	v.envelopeSample = 0
	v.releaseTime = max(FORCED_RELEASE_MS*sampleRate/1000, MIN_ENV_TIME)
}

// monoPanWeight collapses the pan parameter into a mild amplitude weight
// for the mono mix. Stereo rendering would replace this with a pan law.
func monoPanWeight(pan float32) float32 {
	off := pan - 0.5
	if off < 0 {
		off = -off
	}
	return 1.0 - 0.2*off*2
}

// updateEnvelope advances the ADSR state machine by one sample. The level
// is non-negative and never exceeds 1.
func (v *Voice) updateEnvelope() {
	switch v.envelopePhase {
	case ENV_ATTACK:
		v.envelopeLevel += 1.0 / float32(v.attackTime)
		if v.envelopeLevel >= 1.0 {
			v.envelopeLevel = 1.0
			v.envelopePhase = ENV_DECAY
			v.envelopeSample = 0
		}

	case ENV_DECAY:
		v.envelopeSample++
		v.envelopeLevel = 1.0 - (1.0-v.sustainLevel)*float32(v.envelopeSample)/float32(v.decayTime)
		if v.envelopeSample >= v.decayTime {
			v.envelopeLevel = v.sustainLevel
			v.envelopePhase = ENV_SUSTAIN
		}

	case ENV_SUSTAIN:
		if v.gateSamples <= 0 {
			v.envelopePhase = ENV_RELEASE
			v.envelopeSample = 0
		}

	case ENV_RELEASE:
		v.envelopeSample++
		v.envelopeLevel *= 1.0 - float32(v.envelopeSample)/float32(v.releaseTime)
		if v.envelopeLevel < 0 {
			v.envelopeLevel = 0
		}
		if v.envelopeSample >= v.releaseTime {
			v.envelopeLevel = 0
			v.active = false
		}
	}

	if v.gateSamples > 0 {
		v.gateSamples--
		// Gate expiry during attack or decay falls through to release
		// once sustain is reached; a zero-length sustain hold is fine.
	}
}

// nextSample advances the voice by one sample and returns its weighted
// contribution.
func (v *Voice) nextSample(sampleRate int) float32 {
	if !v.active {
		return 0
	}

	v.updateEnvelope()
	if !v.active {
		return 0
	}

	dt := v.frequency / float32(sampleRate)
	var raw float32

	switch v.waveType {
	case WAVE_SQUARE:
		if v.phase < 0.5 {
			raw = 1.0
		} else {
			raw = -1.0
		}
		// Band-limit both edges
		raw += polyBLEP32(v.phase, dt)
		half := v.phase + 0.5
		if half >= 1.0 {
			half -= 1.0
		}
		raw -= polyBLEP32(half, dt)

	case WAVE_TRIANGLE:
		if v.phase < 0.5 {
			raw = 4.0*v.phase - 1.0
		} else {
			raw = 3.0 - 4.0*v.phase
		}

	case WAVE_SINE:
		raw = fastSin(v.phase * TWO_PI)

	case WAVE_SAW:
		raw = 2.0*v.phase - 1.0
		raw -= polyBLEP32(v.phase, dt)

	case WAVE_NOISE, WAVE_FILTERED_NOISE:
		v.noisePhase += dt
		steps := int(v.noisePhase)
		v.noisePhase -= float32(steps)
		for i := 0; i < steps; i++ {
			// Taps 23,18 for a maximal-length sequence (period 2^23-1)
			newBit := ((v.noiseSR >> 22) ^ (v.noiseSR >> 17)) & 1
			v.noiseSR = ((v.noiseSR << 1) | newBit) & NOISE_LFSR_MASK
		}
		raw = float32(v.noiseSR&1)*2 - 1
		if v.waveType == WAVE_FILTERED_NOISE {
			v.noiseFilterState = 0.95*v.noiseFilterState + 0.05*raw
			raw = v.noiseFilterState * 4.0
		}
	}

	if v.waveType != WAVE_NOISE && v.waveType != WAVE_FILTERED_NOISE {
		v.phase += dt
		if v.phase >= 1.0 {
			v.phase -= 1.0
		}
	}

	return raw * v.amplitude * v.envelopeLevel * v.panWeight
}
