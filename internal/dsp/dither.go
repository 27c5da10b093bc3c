package dsp

import "math/rand/v2"

// DitherType selects the noise-shaping curve applied before quantizing
// down to a playback device's bit depth (spec.md §4.1 dither generators).
type DitherType int

const (
	DitherNone DitherType = iota
	DitherFlat
	DitherHighpass
	DitherFweighted
	DitherShibata
	DitherLipshitz
	DitherGesemann
)

// ditherErrorFeedback is the per-channel noise-shaping filter state: a
// short FIR of past quantization errors, fed back with the coefficients
// for the selected shaping curve.
type ditherErrorFeedback struct {
	coeffs []float64
	hist   []float64
}

func newErrorFeedback(coeffs []float64) *ditherErrorFeedback {
	return &ditherErrorFeedback{coeffs: coeffs, hist: make([]float64, len(coeffs))}
}

// predict returns the shaped correction to apply to the next sample,
// computed from past quantization errors.
func (f *ditherErrorFeedback) predict() float64 {
	shaped := 0.0
	for i, c := range f.coeffs {
		shaped += c * f.hist[i]
	}
	return shaped
}

// push records this sample's quantization error for future predictions.
func (f *ditherErrorFeedback) push(quantError float64) {
	copy(f.hist[1:], f.hist[:len(f.hist)-1])
	f.hist[0] = quantError
}

// noise-shaping coefficient sets, one FIR tap set per named curve. These
// are the well-known psychoacoustic shaping curves used by 16/24-bit
// dithered quantizers; Flat uses no taps and Highpass a single unit tap.
var (
	coeffsHighpass = []float64{1.0}
	coeffsFweighted = []float64{2.033, -2.165, 1.959, -1.590, 0.6149}
	coeffsShibata   = []float64{2.033, -3.030, 2.917, -1.996, 1.213, -0.6151, 0.2029}
	coeffsLipshitz  = []float64{2.033, -2.165, 1.959, -1.590, 0.6149}
	coeffsGesemann  = []float64{2.412, -3.370, 3.937, -4.174, 3.353, -2.205, 1.281, -0.569, 0.0847}
)

// Dither is a per-channel TPDF-dithered, noise-shaped requantizer applied
// ahead of a playback device's fixed-point format.
type Dither struct {
	typ       DitherType
	bitDepth  int
	amplitude float64
	shapers   []*ditherErrorFeedback
	lsb       float64
}

// NewDither builds a Dither targeting bitDepth-bit output on channels
// channels. amplitude scales the TPDF noise in units of one quantization
// step (LSB); amplitude 1.0 is the conventional ±1 LSB triangular dither,
// and amplitude <= 0 falls back to that default. DitherNone disables
// shaping and dithering entirely; the filter still exists so the pipeline
// can treat every configured output uniformly.
func NewDither(typ DitherType, bitDepth int, amplitude float64, channels int) *Dither {
	if amplitude <= 0 {
		amplitude = 1.0
	}
	d := &Dither{typ: typ, bitDepth: bitDepth, amplitude: amplitude}
	if bitDepth > 0 {
		d.lsb = 2.0 / float64(uint64(1)<<uint(bitDepth))
	}
	var coeffs []float64
	switch typ {
	case DitherHighpass:
		coeffs = coeffsHighpass
	case DitherFweighted:
		coeffs = coeffsFweighted
	case DitherShibata:
		coeffs = coeffsShibata
	case DitherLipshitz:
		coeffs = coeffsLipshitz
	case DitherGesemann:
		coeffs = coeffsGesemann
	}
	if coeffs != nil {
		d.shapers = make([]*ditherErrorFeedback, channels)
		for i := range d.shapers {
			d.shapers[i] = newErrorFeedback(coeffs)
		}
	}
	return d
}

// tpdf returns a triangular-probability-distributed random value in
// (-1, 1), the sum of two independent uniform deviates — the standard
// dither noise distribution that avoids the signal-dependent distortion
// of rectangular dither.
func tpdf() float64 {
	return rand.Float64() - rand.Float64()
}

func (d *Dither) ProcessChannel(ch int, samples []float64) {
	if d.typ == DitherNone || d.lsb == 0 {
		return
	}
	var shaper *ditherErrorFeedback
	if d.shapers != nil {
		shaper = d.shapers[ch]
	}
	for i, x := range samples {
		noise := tpdf() * d.lsb * d.amplitude
		correction := 0.0
		if shaper != nil {
			correction = shaper.predict()
		}
		dithered := x + noise + correction
		quantized := d.lsb * float64(roundHalfAwayFromZero(dithered/d.lsb))
		if shaper != nil {
			shaper.push(dithered - quantized)
		}
		samples[i] = quantized
	}
}

func roundHalfAwayFromZero(v float64) int64 {
	if v >= 0 {
		return int64(v + 0.5)
	}
	return int64(v - 0.5)
}
