// effects.go - Stateful effect chain: reverb, filters, compressor

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/NetAudio
License: GPLv3 or later
*/

package main

import "math"

// Effect is one stage in a patch's effect chain. Internal memory (delay
// lines, filter state, envelope followers) persists across render calls;
// Reset zeroes it, which the engine invokes on every profile switch to
// avoid artifacts from mismatched filter state.
type Effect interface {
	Process(s float32) float32
	Reset()
}

const (
	MAX_FILTER_CUTOFF = 0.95 // Normalized cutoff ceiling
	MAX_SAMPLE        = 1.0
	MIN_SAMPLE        = -1.0
)

// SVFilter is a 2-pole resonant state variable filter, usable as lowpass,
// highpass or bandpass depending on which output tap is selected.
type SVFilter struct {
	mode       int // EFFECT_LOWPASS / EFFECT_HIGHPASS / EFFECT_BANDPASS
	sampleRate int
	cutoff     float32
	resonance  float32
	lp         float32
	bp         float32
	hp         float32
}

// newSVFilter derives filter coefficients from an effect config. Bandpass
// maps Q onto damping; low/highpass run with gentle fixed damping.
func newSVFilter(cfg EffectConfig, sampleRate int) *SVFilter {
	f := &SVFilter{mode: cfg.Type, sampleRate: sampleRate}

	freq := cfg.Cutoff
	res := float32(0.5)
	if cfg.Type == EFFECT_BANDPASS {
		freq = cfg.Center
		if cfg.Q > 0 {
			res = 1.0 / cfg.Q
		}
	}

	f.SetCutoff(freq)
	f.resonance = res
	return f
}

// SetCutoff retunes the filter's corner frequency in Hz. Driven by
// profiles that map a feature onto the filter-cutoff parameter.
func (f *SVFilter) SetCutoff(freq float32) {
	if freq <= 0 {
		return
	}
	norm := freq / float32(f.sampleRate)
	if norm > MAX_FILTER_CUTOFF/4 {
		norm = MAX_FILTER_CUTOFF / 4
	}
	f.cutoff = TWO_PI * norm
}

func (f *SVFilter) Process(s float32) float32 {
	lp := f.lp + f.cutoff*f.bp
	hp := (s - lp) - f.resonance*f.bp
	bp := f.bp + f.cutoff*hp

	// Clamp state to prevent runaway at high resonance
	f.lp = clampSample(lp)
	f.bp = clampSample(bp)
	f.hp = clampSample(hp)

	switch f.mode {
	case EFFECT_HIGHPASS:
		return f.hp
	case EFFECT_BANDPASS:
		return f.bp
	default:
		return f.lp
	}
}

func (f *SVFilter) Reset() {
	f.lp = 0
	f.bp = 0
	f.hp = 0
}

func clampSample(s float32) float32 {
	if s > MAX_SAMPLE {
		return MAX_SAMPLE
	}
	if s < MIN_SAMPLE {
		return MIN_SAMPLE
	}
	return s
}

// Reverb: 4 parallel comb filters with prime-length delays feeding two
// series allpass diffusers, behind a short pre-delay. Delay lengths avoid
// arithmetic relationships that cause audible periodicity.
const (
	COMB_DELAY_1 = 1687
	COMB_DELAY_2 = 1601
	COMB_DELAY_3 = 2053
	COMB_DELAY_4 = 2251

	ALLPASS_DELAY_1 = 389
	ALLPASS_DELAY_2 = 307
	ALLPASS_COEF    = 0.5

	PRE_DELAY_MS       = 8
	REVERB_ATTENUATION = 0.3
)

type combFilter struct {
	buffer []float32
	decay  float32
	pos    int
}

type Reverb struct {
	mix         float32
	combFilters [4]combFilter
	allpassBuf  [2][]float32
	allpassPos  [2]int
	preDelayBuf []float32
	preDelayPos int
}

func newReverb(cfg EffectConfig, sampleRate int) *Reverb {
	r := &Reverb{
		mix:         cfg.Mix,
		preDelayBuf: make([]float32, PRE_DELAY_MS*sampleRate/1000),
	}

	// Scale comb decay from the configured tail length: a longer DecayS
	// pushes every comb's feedback toward (but below) unity.
	baseDecay := 1.0 - float32(math.Exp(float64(-cfg.DecayS)))*0.15 - 0.05
	if baseDecay > 0.97 {
		baseDecay = 0.97
	}
	combLengths := [4]int{COMB_DELAY_1, COMB_DELAY_2, COMB_DELAY_3, COMB_DELAY_4}
	combScale := [4]float32{1.0, 0.98, 0.96, 0.94}
	for i := range r.combFilters {
		r.combFilters[i] = combFilter{
			buffer: make([]float32, combLengths[i]),
			decay:  baseDecay * combScale[i],
		}
	}

	r.allpassBuf[0] = make([]float32, ALLPASS_DELAY_1)
	r.allpassBuf[1] = make([]float32, ALLPASS_DELAY_2)
	return r
}

func (r *Reverb) Process(input float32) float32 {
	// Pre-delay separates direct sound from early reflections
	delayed := r.preDelayBuf[r.preDelayPos]
	r.preDelayBuf[r.preDelayPos] = input
	r.preDelayPos = (r.preDelayPos + 1) % len(r.preDelayBuf)

	var wet float32
	for i := 0; i < 4; i++ {
		comb := &r.combFilters[i]
		cDelay := comb.buffer[comb.pos]
		comb.buffer[comb.pos] = delayed + cDelay*comb.decay
		wet += cDelay
		comb.pos = (comb.pos + 1) % len(comb.buffer)
	}

	for i := 0; i < 2; i++ {
		pos := r.allpassPos[i]
		buf := r.allpassBuf[i]
		aDelay := buf[pos]
		buf[pos] = wet + aDelay*ALLPASS_COEF
		wet = aDelay - wet
		r.allpassPos[i] = (pos + 1) % len(buf)
	}

	wet *= REVERB_ATTENUATION
	return input*(1-r.mix) + wet*r.mix
}

func (r *Reverb) Reset() {
	clear(r.preDelayBuf)
	r.preDelayPos = 0
	for i := range r.combFilters {
		clear(r.combFilters[i].buffer)
		r.combFilters[i].pos = 0
	}
	for i := range r.allpassBuf {
		clear(r.allpassBuf[i])
		r.allpassPos[i] = 0
	}
}

// SetMix updates the dry/wet ratio. Driven by profiles that map a feature
// onto the effect-mix parameter.
func (r *Reverb) SetMix(mix float32) {
	r.mix = clamp01(mix)
}

// Compressor applies downward compression above a threshold using a
// smoothed amplitude envelope follower.
type Compressor struct {
	threshold float32 // linear amplitude
	ratio     float32
	envelope  float32
}

func newCompressor(cfg EffectConfig) *Compressor {
	return &Compressor{
		threshold: float32(math.Pow(10, float64(cfg.Threshold)/20)),
		ratio:     cfg.Ratio,
	}
}

func (c *Compressor) Process(s float32) float32 {
	level := s
	if level < 0 {
		level = -level
	}
	// Fast attack, slow release follower
	if level > c.envelope {
		c.envelope += 0.2 * (level - c.envelope)
	} else {
		c.envelope += 0.005 * (level - c.envelope)
	}

	if c.envelope <= c.threshold || c.envelope == 0 {
		return s
	}
	target := c.threshold + (c.envelope-c.threshold)/c.ratio
	return s * target / c.envelope
}

func (c *Compressor) Reset() {
	c.envelope = 0
}

// buildEffectChain instantiates a patch's effect configs in order. Fresh
// instances start with zeroed memory, so a rebuilt chain is equivalent to
// a reset one.
func buildEffectChain(patch Patch, sampleRate int) []Effect {
	chain := make([]Effect, 0, len(patch.Effects))
	for _, cfg := range patch.Effects {
		switch cfg.Type {
		case EFFECT_REVERB:
			chain = append(chain, newReverb(cfg, sampleRate))
		case EFFECT_LOWPASS, EFFECT_HIGHPASS, EFFECT_BANDPASS:
			chain = append(chain, newSVFilter(cfg, sampleRate))
		case EFFECT_COMPRESSOR:
			chain = append(chain, newCompressor(cfg))
		}
	}
	return chain
}
