// synth_engine.go - Polyphonic synthesis engine and block renderer

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NetAudio
License: GPLv3 or later
*/

package main

const (
	VOICE_MIX_LEVEL = 0.25 // Per-voice contribution before the limiter
	SOFT_LIMIT_KNEE = 0.8  // Output is linear below the knee
)

// SynthEngine renders SampleBlocks from triggered parameter events under
// the active profile's patch. It owns all voice and effect state and is
// only ever touched from the consumer side of the pipeline; the engine
// itself takes no locks.
type SynthEngine struct {
	sampleRate int
	voices     []Voice
	chain      []Effect
	reverb     *Reverb   // chain's reverb stage if present, for mix updates
	filter     *SVFilter // chain's first filter stage, for cutoff updates
	profile    *Profile
	ampScale   float32
	voiceSeq   uint64
	stolen     uint64
}

func NewSynthEngine(sampleRate, polyphony int, profile *Profile) *SynthEngine {
	e := &SynthEngine{
		sampleRate: sampleRate,
		voices:     make([]Voice, polyphony),
	}
	e.SetProfile(profile)
	return e
}

// SetProfile swaps the active profile. In-flight voices keep the
// parameter space they were mapped under; only effect memory is reset,
// by rebuilding the chain from the new patch with zeroed state.
func (e *SynthEngine) SetProfile(p *Profile) {
	e.profile = p
	e.ampScale = p.Patch.AmpScale
	e.chain = buildEffectChain(p.Patch, e.sampleRate)
	e.reverb = nil
	e.filter = nil
	for _, fx := range e.chain {
		switch stage := fx.(type) {
		case *Reverb:
			if e.reverb == nil {
				e.reverb = stage
			}
		case *SVFilter:
			if e.filter == nil {
				e.filter = stage
			}
		}
	}
}

// Profile returns the engine's active profile.
func (e *SynthEngine) Profile() *Profile { return e.profile }

// ResetEffects zeroes every effect's internal memory without swapping
// the profile.
func (e *SynthEngine) ResetEffects() {
	for _, fx := range e.chain {
		fx.Reset()
	}
}

// Trigger allocates a voice for a mapped event. When every voice is busy
// the quietest one is stolen, envelope level first and age as tie-break,
// so sustained foreground sounds survive bursts.
func (e *SynthEngine) Trigger(ev ParameterEvent) {
	if ev.EffectMix >= 0 && e.reverb != nil {
		e.reverb.SetMix(ev.EffectMix)
	}
	if ev.FilterCutoff > 0 && e.filter != nil {
		e.filter.SetCutoff(ev.FilterCutoff)
	}

	v := e.findFree()
	if v == nil {
		v = e.findSteal()
		e.stolen++
	}
	e.voiceSeq++
	v.noteOn(ev, e.profile.Patch.Envelope, e.sampleRate, e.voiceSeq)
}

func (e *SynthEngine) findFree() *Voice {
	for i := range e.voices {
		if !e.voices[i].active {
			return &e.voices[i]
		}
	}
	return nil
}

func (e *SynthEngine) findSteal() *Voice {
	best := &e.voices[0]
	for i := 1; i < len(e.voices); i++ {
		v := &e.voices[i]
		if v.envelopeLevel < best.envelopeLevel ||
			(v.envelopeLevel == best.envelopeLevel && v.age < best.age) {
			best = v
		}
	}
	return best
}

// RenderBlock fills dst with the next len(dst) samples: every active
// voice advances, contributions sum into a float64 accumulator (wider
// than the output range, so intermediate mixing cannot clip), the effect
// chain processes the mix, and a soft limiter bounds the result.
func (e *SynthEngine) RenderBlock(dst []float32) {
	for i := range dst {
		var mix float64
		for j := range e.voices {
			if e.voices[j].active {
				mix += float64(e.voices[j].nextSample(e.sampleRate)) * VOICE_MIX_LEVEL
			}
		}

		s := float32(mix) * e.ampScale
		for _, fx := range e.chain {
			s = fx.Process(s)
		}

		dst[i] = softLimit(s)
	}
}

// Quiet reports whether every voice has completed its release.
func (e *SynthEngine) Quiet() bool {
	for i := range e.voices {
		if e.voices[i].active {
			return false
		}
	}
	return true
}

// ForceRelease pushes every active voice into a short forced release.
// Used for immediate stop without a sample discontinuity.
func (e *SynthEngine) ForceRelease() {
	for i := range e.voices {
		e.voices[i].forceRelease(e.sampleRate)
	}
}

// StolenVoices returns how many voices were stolen under polyphony
// pressure. Degraded-data accounting, not an error.
func (e *SynthEngine) StolenVoices() uint64 { return e.stolen }

// softLimit bounds a sample to [-1,1]. Linear below the knee, then a tanh
// taper, so overloads compress instead of truncating into distortion
// bursts.
func softLimit(s float32) float32 {
	abs := s
	if abs < 0 {
		abs = -abs
	}
	if abs <= SOFT_LIMIT_KNEE {
		return s
	}
	over := (abs - SOFT_LIMIT_KNEE) / (1 - SOFT_LIMIT_KNEE)
	out := SOFT_LIMIT_KNEE + (1-SOFT_LIMIT_KNEE)*fastTanh(over)
	if s < 0 {
		return -out
	}
	return out
}
