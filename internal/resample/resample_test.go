package resample

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRatio_ReducesToLowestTerms(t *testing.T) {
	t.Parallel()

	p, q := ratio(44100, 48000)
	assert.Equal(t, 160, p)
	assert.Equal(t, 147, q)
}

func TestSync_RejectsSetRatio(t *testing.T) {
	t.Parallel()

	s, err := NewSync(1, 44100, 48000)
	require.NoError(t, err)
	assert.Error(t, s.SetRatio(1.01))
}

func TestSync_BlockSizesMatchReducedRatio(t *testing.T) {
	t.Parallel()

	s, err := NewSync(1, 48000, 96000)
	require.NoError(t, err)
	in, out := s.BlockSizes()
	assert.Equal(t, 1, in)
	assert.Equal(t, 2, out)
}

func TestAsyncSinc_UnityRatioProducesOneOutputPerInput(t *testing.T) {
	t.Parallel()

	params := ResolveProfile(ProfileFast)
	a, err := NewAsyncSinc(1, params, 1.0)
	require.NoError(t, err)

	in := make([]float64, 1000)
	for i := range in {
		in[i] = math.Sin(2 * math.Pi * 440 * float64(i) / 48000)
	}
	out := make([]float64, len(in)+8)
	n := a.ProcessChannel(0, in, out)
	assert.InDelta(t, len(in), n, 2, "a unity ratio should produce ~one output sample per input sample")
}

func TestAsyncSinc_SetRatioTakesEffect(t *testing.T) {
	t.Parallel()

	params := ResolveProfile(ProfileVeryFast)
	a, err := NewAsyncSinc(1, params, 1.0)
	require.NoError(t, err)
	require.NoError(t, a.SetRatio(2.0))
	assert.Equal(t, 2.0, a.Ratio())
}

func TestAsyncSinc_RejectsCutoffAtOrAboveNyquist(t *testing.T) {
	t.Parallel()

	_, err := NewAsyncSinc(1, AsyncSincParams{SincLen: 64, OversamplingFactor: 16, Cutoff: 1.0}, 1.0)
	assert.Error(t, err)
}

func TestAsyncPoly_UnityRatioProducesOneOutputPerInput(t *testing.T) {
	t.Parallel()

	a, err := NewAsyncPoly(1, PolyLinear, 1.0)
	require.NoError(t, err)

	in := make([]float64, 100)
	for i := range in {
		in[i] = float64(i)
	}
	out := make([]float64, 110)
	n := a.ProcessChannel(0, in, out)
	assert.InDelta(t, 100, n, 2)
}

func TestAsyncPoly_LinearInterpolationBetweenKnownSamples(t *testing.T) {
	t.Parallel()

	a, err := NewAsyncPoly(1, PolyLinear, 0.5) // downsample by half
	require.NoError(t, err)

	in := []float64{0, 1, 2, 3, 4, 5, 6, 7}
	out := make([]float64, 8)
	n := a.ProcessChannel(0, in, out)
	assert.Positive(t, n)
	assert.Equal(t, []float64{0, 2, 4, 6}, out[:n])
}
