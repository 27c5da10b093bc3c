package resample

import (
	"math"

	dsperrors "github.com/camilladsp-go/camilladsp/internal/errors"
)

// Sync is the fixed-ratio resampler (spec.md §4.3 "Synchronous"). The
// ratio fOut/fIn is reduced to lowest terms p/q via gcd; each call consumes
// exactly q input frames per channel and produces p output frames, via a
// zero-padded FFT interpolation (the same frequency-domain zero-pad/
// truncate technique as the FFT-based resampler's polyphase equivalent:
// forward-transform the q-frame block, reinterpret its spectrum at p
// frames' resolution, inverse-transform).
//
// Because the ratio is fixed for the lifetime of the instance, Sync
// rejects SetRatio calls — dynamic rate-adjust only applies to the async
// variants (spec.md §4.3 "Rejects rate-adjust requests with a warning").
type Sync struct {
	p, q     int
	channels int
	fftLen   int
}

// NewSync builds a Sync resampler for the fIn -> fOut rate change.
func NewSync(channels, fIn, fOut int) (*Sync, error) {
	if fIn <= 0 || fOut <= 0 {
		return nil, dsperrors.Newf("sync resampler: invalid rates %d -> %d", fIn, fOut).
			Category(dsperrors.CategoryConfig).Build()
	}
	p, q := ratio(fIn, fOut)
	return &Sync{p: p, q: q, channels: channels, fftLen: nextPow2(2 * max(p, q))}, nil
}

// BlockSizes returns the fixed (input, output) frame counts for one call
// to ProcessBlock.
func (s *Sync) BlockSizes() (inFrames, outFrames int) {
	return s.q, s.p
}

// SetRatio always fails for the synchronous resampler — its ratio is
// fixed for the configuration's lifetime.
func (s *Sync) SetRatio(r float64) error {
	return dsperrors.Newf("sync resampler: rate-adjust is not supported; ratio is fixed at %d/%d", s.p, s.q).
		Category(dsperrors.CategoryConfig).Build()
}

// ProcessBlock resamples exactly q input frames (in) into p output frames
// (returned), for one channel.
func (s *Sync) ProcessBlock(in []float64) []float64 {
	fwd := newComplexVec(s.fftLen)
	// Apply a Hann window across the input block before transforming so
	// the implicit period boundary doesn't inject spectral leakage at the
	// block edges.
	for i, x := range in {
		w := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(len(in)-1))
		fwd.re[i] = x * w
	}
	fft(fwd, false)

	out := newComplexVec(s.fftLen)
	// Frequency-domain resampling: keep the same bin content, scaled by
	// the frame-count ratio, which is equivalent to ideal band-limited
	// interpolation/decimation for a windowed block.
	scale := float64(s.p) / float64(s.q)
	half := s.fftLen / 2
	for i := 0; i <= half; i++ {
		out.re[i] = fwd.re[i] * scale
		out.im[i] = fwd.im[i] * scale
		if i != 0 && i != half {
			out.re[s.fftLen-i] = fwd.re[i] * scale
			out.im[s.fftLen-i] = -fwd.im[i] * scale
		}
	}
	fft(out, true)

	result := make([]float64, s.p)
	copy(result, out.re[:s.p])
	return result
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
