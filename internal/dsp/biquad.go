// Package dsp implements the filter and processor primitives that a
// pipeline step evaluates against a Chunk: biquad IIR sections and their
// cascaded combinations, FIR convolution, delay lines, gain/volume/loudness
// control, dither, and dynamics processors (spec.md §4.1).
package dsp

import (
	"math"

	dsperrors "github.com/camilladsp-go/camilladsp/internal/errors"
)

// Biquad is a single second-order IIR section in transposed direct-form
// II, run per channel with independent state. Coefficients are normalized
// by a0 at construction time so the per-sample loop is a pure multiply-add
// with no division (spec.md §4.1 Biquad).
type Biquad struct {
	b0, b1, b2 float64
	a1, a2     float64

	// w1/w2 are the two transposed-DF-II state registers, one pair per
	// channel so a single Biquad can be shared across a multi-channel chunk.
	w1, w2 []float64
}

// newBiquadRaw builds a Biquad from non-normalized coefficients, rejecting
// unstable (non-causal) poles. a0 must be non-zero.
func newBiquadRaw(channels int, b0, b1, b2, a0, a1, a2 float64) (*Biquad, error) {
	if a0 == 0 {
		return nil, dsperrors.Newf("biquad: a0 coefficient is zero").
			Category(dsperrors.CategoryConfig).Build()
	}
	bq := &Biquad{
		b0: b0 / a0,
		b1: b1 / a0,
		b2: b2 / a0,
		a1: a1 / a0,
		a2: a2 / a0,
		w1: make([]float64, channels),
		w2: make([]float64, channels),
	}
	if !bq.stable() {
		return nil, dsperrors.Newf("biquad: pole configuration is unstable").
			Category(dsperrors.CategoryConfig).
			Context("a1", bq.a1).Context("a2", bq.a2).Build()
	}
	return bq, nil
}

// stable reports whether the section's poles lie inside the unit circle,
// i.e. |a2| < 1 and |a1| < 1+a2 (the standard stability triangle for a
// normalized second-order section).
func (bq *Biquad) stable() bool {
	return math.Abs(bq.a2) < 1.0 && math.Abs(bq.a1) < 1.0+bq.a2
}

// ProcessChannel filters samples in place for the given channel index,
// which selects which state pair (w1[ch], w2[ch]) advances.
func (bq *Biquad) ProcessChannel(ch int, samples []float64) {
	w1, w2 := bq.w1[ch], bq.w2[ch]
	b0, b1, b2, a1, a2 := bq.b0, bq.b1, bq.b2, bq.a1, bq.a2
	for i, x := range samples {
		y := b0*x + w1
		w1 = b1*x - a1*y + w2
		w2 = b2*x - a2*y
		samples[i] = y
	}
	bq.w1[ch], bq.w2[ch] = w1, w2
}

// Reset clears all per-channel state, e.g. after a hot reload that keeps
// the same filter but wants to avoid a click from stale state.
func (bq *Biquad) Reset() {
	for i := range bq.w1 {
		bq.w1[i] = 0
		bq.w2[i] = 0
	}
}

// qFromBandwidthOctaves converts a bandwidth in octaves to a Q factor for
// peaking/notch/bandpass sections, per the standard RBJ cookbook relation.
func qFromBandwidthOctaves(bw float64) float64 {
	w := bw * math.Ln2 / 2
	return 1 / (2 * math.Sinh(w))
}

// NewFree builds a biquad from caller-supplied raw coefficients (spec.md
// §4.1 "Free" filter type), letting a config author drop in coefficients
// computed outside CamillaDSP.
func NewFree(channels int, a0, a1, a2, b0, b1, b2 float64) (*Biquad, error) {
	return newBiquadRaw(channels, b0, b1, b2, a0, a1, a2)
}

// NewLowpass builds a standard RBJ second-order lowpass with resonance Q.
func NewLowpass(channels int, sampleRate, freq, q float64) (*Biquad, error) {
	w0 := 2 * math.Pi * freq / sampleRate
	cw, sw := math.Cos(w0), math.Sin(w0)
	alpha := sw / (2 * q)

	b0 := (1 - cw) / 2
	b1 := 1 - cw
	b2 := (1 - cw) / 2
	a0 := 1 + alpha
	a1 := -2 * cw
	a2 := 1 - alpha
	return newBiquadRaw(channels, b0, b1, b2, a0, a1, a2)
}

// NewHighpass builds a standard RBJ second-order highpass with resonance Q.
func NewHighpass(channels int, sampleRate, freq, q float64) (*Biquad, error) {
	w0 := 2 * math.Pi * freq / sampleRate
	cw, sw := math.Cos(w0), math.Sin(w0)
	alpha := sw / (2 * q)

	b0 := (1 + cw) / 2
	b1 := -(1 + cw)
	b2 := (1 + cw) / 2
	a0 := 1 + alpha
	a1 := -2 * cw
	a2 := 1 - alpha
	return newBiquadRaw(channels, b0, b1, b2, a0, a1, a2)
}

// NewLowpassFO builds a first-order lowpass expressed as a degenerate
// second-order section (b2 = a2 = 0).
func NewLowpassFO(channels int, sampleRate, freq float64) (*Biquad, error) {
	w0 := 2 * math.Pi * freq / sampleRate
	k := math.Tan(w0 / 2)
	a0 := k + 1
	a1 := k - 1
	b0 := k
	b1 := k
	return newBiquadRaw(channels, b0, b1, 0, a0, a1, 0)
}

// NewHighpassFO builds a first-order highpass expressed as a degenerate
// second-order section.
func NewHighpassFO(channels int, sampleRate, freq float64) (*Biquad, error) {
	w0 := 2 * math.Pi * freq / sampleRate
	k := math.Tan(w0 / 2)
	a0 := k + 1
	a1 := k - 1
	b0 := 1
	b1 := -1
	return newBiquadRaw(channels, b0, b1, 0, a0, a1, 0)
}

// ShelfSlope describes how a shelving filter's transition steepness is
// specified: either directly as a Q or as a "slope" S (dB/octave derived).
type ShelfSlope struct {
	Q     float64
	Slope float64 // used when Q == 0
}

func (s ShelfSlope) alpha(a, w0 float64) float64 {
	sw := math.Sin(w0)
	if s.Q > 0 {
		return sw / (2 * s.Q)
	}
	slope := s.Slope
	if slope == 0 {
		slope = 1
	}
	return sw / 2 * math.Sqrt((a+1/a)*(1/slope-1)+2)
}

// NewLowshelf builds a shelving lowpass with a gain (dB) applied below freq.
func NewLowshelf(channels int, sampleRate, freq, gainDB float64, slope ShelfSlope) (*Biquad, error) {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / sampleRate
	cw := math.Cos(w0)
	alpha := slope.alpha(a, w0)
	sqrtA := math.Sqrt(a)

	b0 := a * ((a + 1) - (a-1)*cw + 2*sqrtA*alpha)
	b1 := 2 * a * ((a - 1) - (a+1)*cw)
	b2 := a * ((a + 1) - (a-1)*cw - 2*sqrtA*alpha)
	a0 := (a + 1) + (a-1)*cw + 2*sqrtA*alpha
	a1 := -2 * ((a - 1) + (a+1)*cw)
	a2 := (a + 1) + (a-1)*cw - 2*sqrtA*alpha
	return newBiquadRaw(channels, b0, b1, b2, a0, a1, a2)
}

// NewHighshelf builds a shelving highpass with a gain (dB) applied above freq.
func NewHighshelf(channels int, sampleRate, freq, gainDB float64, slope ShelfSlope) (*Biquad, error) {
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / sampleRate
	cw := math.Cos(w0)
	alpha := slope.alpha(a, w0)
	sqrtA := math.Sqrt(a)

	b0 := a * ((a + 1) + (a-1)*cw + 2*sqrtA*alpha)
	b1 := -2 * a * ((a - 1) + (a+1)*cw)
	b2 := a * ((a + 1) + (a-1)*cw - 2*sqrtA*alpha)
	a0 := (a + 1) - (a-1)*cw + 2*sqrtA*alpha
	a1 := 2 * ((a - 1) - (a+1)*cw)
	a2 := (a + 1) - (a-1)*cw - 2*sqrtA*alpha
	return newBiquadRaw(channels, b0, b1, b2, a0, a1, a2)
}

// qOrBandwidth resolves a Q factor from either an explicit Q or a
// bandwidth-in-octaves (spec.md §4.1 peaking/notch/bandpass accept either).
func qOrBandwidth(q, bandwidthOctaves float64) float64 {
	if q > 0 {
		return q
	}
	return qFromBandwidthOctaves(bandwidthOctaves)
}

// NewPeaking builds a parametric peaking/dip filter with gain (dB) at freq.
func NewPeaking(channels int, sampleRate, freq, gainDB, q, bandwidthOctaves float64) (*Biquad, error) {
	qq := qOrBandwidth(q, bandwidthOctaves)
	a := math.Pow(10, gainDB/40)
	w0 := 2 * math.Pi * freq / sampleRate
	cw, sw := math.Cos(w0), math.Sin(w0)
	alpha := sw / (2 * qq)

	b0 := 1 + alpha*a
	b1 := -2 * cw
	b2 := 1 - alpha*a
	a0 := 1 + alpha/a
	a1 := -2 * cw
	a2 := 1 - alpha/a
	return newBiquadRaw(channels, b0, b1, b2, a0, a1, a2)
}

// NewNotch builds a narrow-band rejection filter at freq.
func NewNotch(channels int, sampleRate, freq, q, bandwidthOctaves float64) (*Biquad, error) {
	qq := qOrBandwidth(q, bandwidthOctaves)
	w0 := 2 * math.Pi * freq / sampleRate
	cw, sw := math.Cos(w0), math.Sin(w0)
	alpha := sw / (2 * qq)

	b0 := 1.0
	b1 := -2 * cw
	b2 := 1.0
	a0 := 1 + alpha
	a1 := -2 * cw
	a2 := 1 - alpha
	return newBiquadRaw(channels, b0, b1, b2, a0, a1, a2)
}

// NewBandpass builds a constant-skirt-gain bandpass centered at freq.
func NewBandpass(channels int, sampleRate, freq, q, bandwidthOctaves float64) (*Biquad, error) {
	qq := qOrBandwidth(q, bandwidthOctaves)
	w0 := 2 * math.Pi * freq / sampleRate
	cw, sw := math.Cos(w0), math.Sin(w0)
	alpha := sw / (2 * qq)

	b0 := sw / 2
	b1 := 0.0
	b2 := -sw / 2
	a0 := 1 + alpha
	a1 := -2 * cw
	a2 := 1 - alpha
	return newBiquadRaw(channels, b0, b1, b2, a0, a1, a2)
}

// NewAllpass builds a second-order allpass used for phase correction.
func NewAllpass(channels int, sampleRate, freq, q, bandwidthOctaves float64) (*Biquad, error) {
	qq := qOrBandwidth(q, bandwidthOctaves)
	w0 := 2 * math.Pi * freq / sampleRate
	cw, sw := math.Cos(w0), math.Sin(w0)
	alpha := sw / (2 * qq)

	b0 := 1 - alpha
	b1 := -2 * cw
	b2 := 1 + alpha
	a0 := 1 + alpha
	a1 := -2 * cw
	a2 := 1 - alpha
	return newBiquadRaw(channels, b0, b1, b2, a0, a1, a2)
}

// NewAllpassFO builds a first-order allpass (pure phase shift, no gain
// change) defined by a single coefficient a.
func NewAllpassFO(channels int, a float64) (*Biquad, error) {
	return newBiquadRaw(channels, a, 1, 0, 1, a, 0)
}

// NewGeneralNotch builds a notch at freq whose pole pair is set by q. The
// zeros sit on the unit circle at the same frequency as the poles, so the
// notch is always full depth; notchQ only divides the numerator by
// 1 + sin(w0)/(2*notchQ), a gain scaling that is the same at every
// frequency. Separate zero and pole frequencies are not supported.
func NewGeneralNotch(channels int, sampleRate, freq, q, notchQ float64) (*Biquad, error) {
	w0 := 2 * math.Pi * freq / sampleRate
	cw, sw := math.Cos(w0), math.Sin(w0)
	alphaZero := sw / (2 * notchQ)
	alphaPole := sw / (2 * q)

	b0 := 1.0
	b1 := -2 * cw
	b2 := 1.0
	// Scale the whole numerator by 1 + alphaZero; the zeros stay on the
	// unit circle.
	scale := 1 + alphaZero
	b0 /= scale
	b1 /= scale
	b2 /= scale
	a0 := 1 + alphaPole
	a1 := -2 * cw
	a2 := 1 - alphaPole
	return newBiquadRaw(channels, b0, b1, b2, a0, a1, a2)
}

// NewLinkwitzTransform re-targets a sealed-box driver's natural resonance
// (f0, q0) to a different target alignment (f1, q1), the classic bass-EQ
// transform used to flatten or re-tune a subwoofer's low end.
func NewLinkwitzTransform(channels int, sampleRate, f0, q0, f1, q1 float64) (*Biquad, error) {
	d0 := math.Pow(2*math.Pi*f0, 2)
	e0 := (2 * math.Pi * f0) / q0
	d1 := math.Pow(2*math.Pi*f1, 2)
	e1 := (2 * math.Pi * f1) / q1

	k := 2 * sampleRate
	kSq := k * k
	a0 := d1 + k*e1 + kSq
	a1 := 2 * d1 - 2*kSq
	a2 := d1 - k*e1 + kSq
	b0 := d0 + k*e0 + kSq
	b1 := 2 * d0 - 2*kSq
	b2 := d0 - k*e0 + kSq

	// The numerator b is built from the driver's (f0, q0) and the
	// denominator a from the target's (f1, q1), both mapped with the
	// bilinear transform (k = 2*fs): the applied transfer function is
	// driver/target, cancelling the driver's resonance and imposing the
	// target alignment. They go to the normalized biquad form unchanged.
	return newBiquadRaw(channels, b0, b1, b2, a0, a1, a2)
}
