package dsp

import "math"

// envelopeFollower tracks an RMS level with independent attack/release
// single-pole smoothing coefficients alpha = 1 - exp(-1/(tau*fs))
// (spec.md §4.1 Compressor).
type envelopeFollower struct {
	attackCoeff  float64
	releaseCoeff float64
	levelSq      float64
}

func newEnvelopeFollower(attackMS, releaseMS, sampleRate float64) *envelopeFollower {
	return &envelopeFollower{
		attackCoeff:  poleCoeff(attackMS, sampleRate),
		releaseCoeff: poleCoeff(releaseMS, sampleRate),
	}
}

func poleCoeff(timeMS, sampleRate float64) float64 {
	if timeMS <= 0 {
		return 1
	}
	tau := timeMS / 1000.0
	return 1 - math.Exp(-1/(tau*sampleRate))
}

// update feeds one sample's squared magnitude into the follower and
// returns the current RMS level estimate in dB (-inf for silence).
func (e *envelopeFollower) update(x float64) float64 {
	sq := x * x
	coeff := e.releaseCoeff
	if sq > e.levelSq {
		coeff = e.attackCoeff
	}
	e.levelSq += coeff * (sq - e.levelSq)
	if e.levelSq <= 0 {
		return math.Inf(-1)
	}
	return 10 * math.Log10(e.levelSq)
}

// ChannelSet selects a subset of a chunk's channels, used to separate a
// dynamics processor's monitor set from its process set (spec.md §4.1
// Compressor "process_channels"/"monitor_channels").
type ChannelSet []int

// ClipMode selects how a Limiter (or a Compressor's optional output
// clipper) handles samples beyond its limit.
type ClipMode int

const (
	ClipNone ClipMode = iota
	ClipHard
	ClipSoft
)

func applyClip(mode ClipMode, limit, x float64) float64 {
	switch mode {
	case ClipHard:
		if x > limit {
			return limit
		}
		if x < -limit {
			return -limit
		}
		return x
	case ClipSoft:
		// tanh-based soft clip, scaled so small signals pass through
		// near-linearly and the asymptote sits at limit.
		return limit * math.Tanh(x/limit)
	default:
		return x
	}
}

// Compressor reduces gain on ProcessChannels once the RMS level measured
// across MonitorChannels exceeds Threshold, by 1-1/Factor of the excess
// (spec.md §4.1 Compressor).
type Compressor struct {
	Monitor      ChannelSet
	Process      ChannelSet
	Threshold    float64 // dB
	Factor       float64 // compression ratio, e.g. 4 for 4:1
	MakeupGainDB float64
	Clip         ClipMode
	ClipLimit    float64

	follower *envelopeFollower
}

// NewCompressor builds a Compressor. attackMS/releaseMS drive the RMS
// envelope follower's smoothing; thresholdDB/factor set the knee.
func NewCompressor(monitor, process ChannelSet, attackMS, releaseMS, sampleRate, thresholdDB, factor, makeupGainDB float64, clip ClipMode, clipLimit float64) *Compressor {
	return &Compressor{
		Monitor:      monitor,
		Process:      process,
		Threshold:    thresholdDB,
		Factor:       factor,
		MakeupGainDB: makeupGainDB,
		Clip:         clip,
		ClipLimit:    clipLimit,
		follower:     newEnvelopeFollower(attackMS, releaseMS, sampleRate),
	}
}

// ProcessChunk measures across c.Monitor's channels and applies the
// resulting gain to c.Process's channels, sample by sample.
func (c *Compressor) ProcessChunk(data [][]float64, validFrames int) {
	makeup := dBToLinear(c.MakeupGainDB)
	for i := 0; i < validFrames; i++ {
		peak := 0.0
		for _, ch := range c.Monitor {
			v := math.Abs(data[ch][i])
			if v > peak {
				peak = v
			}
		}
		levelDB := c.follower.update(peak)
		reductionDB := 0.0
		if !math.IsInf(levelDB, -1) && levelDB > c.Threshold {
			reductionDB = (levelDB - c.Threshold) * (1 - 1/c.Factor)
		}
		gain := dBToLinear(-reductionDB) * makeup
		for _, ch := range c.Process {
			v := data[ch][i] * gain
			data[ch][i] = applyClip(c.Clip, c.ClipLimit, v)
		}
	}
}

// NoiseGate attenuates ProcessChannels by AttenuationDB whenever the level
// measured across MonitorChannels falls below Threshold, with the
// attenuation amount itself smoothed by attack/release (spec.md §4.1
// NoiseGate).
type NoiseGate struct {
	Monitor        ChannelSet
	Process        ChannelSet
	Threshold      float64
	AttenuationDB  float64

	follower     *envelopeFollower
	currentAtten float64 // smoothed attenuation in dB, 0..AttenuationDB
}

// NewNoiseGate builds a NoiseGate.
func NewNoiseGate(monitor, process ChannelSet, attackMS, releaseMS, sampleRate, thresholdDB, attenuationDB float64) *NoiseGate {
	return &NoiseGate{
		Monitor:       monitor,
		Process:       process,
		Threshold:     thresholdDB,
		AttenuationDB: attenuationDB,
		follower:      newEnvelopeFollower(attackMS, releaseMS, sampleRate),
	}
}

func (g *NoiseGate) ProcessChunk(data [][]float64, validFrames int) {
	for i := 0; i < validFrames; i++ {
		peak := 0.0
		for _, ch := range g.Monitor {
			v := math.Abs(data[ch][i])
			if v > peak {
				peak = v
			}
		}
		levelDB := g.follower.update(peak)
		target := 0.0
		if math.IsInf(levelDB, -1) || levelDB < g.Threshold {
			target = g.AttenuationDB
		}
		// Smooth the attenuation amount itself, not the raw envelope, so
		// the gate's own transition is what attack/release shapes.
		coeff := g.follower.releaseCoeff
		if target > g.currentAtten {
			coeff = g.follower.attackCoeff
		}
		g.currentAtten += coeff * (target - g.currentAtten)

		gain := dBToLinear(-g.currentAtten)
		for _, ch := range g.Process {
			data[ch][i] *= gain
		}
	}
}

// Limiter is a memoryless hard- or soft-clip to ClipLimit (spec.md §4.1
// Limiter).
type Limiter struct {
	Mode  ClipMode
	Limit float64
}

// NewLimiter builds a Limiter.
func NewLimiter(mode ClipMode, limit float64) *Limiter {
	return &Limiter{Mode: mode, Limit: limit}
}

func (l *Limiter) ProcessChannel(ch int, samples []float64) {
	for i, x := range samples {
		samples[i] = applyClip(l.Mode, l.Limit, x)
	}
}
