package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDither_NoneLeavesSamplesUnchanged(t *testing.T) {
	t.Parallel()

	d := NewDither(DitherNone, 16, 1, 1)
	samples := []float64{0.123456, -0.654321}
	want := append([]float64{}, samples...)
	d.ProcessChannel(0, samples)
	assert.Equal(t, want, samples)
}

func TestDither_QuantizesToBitDepthStep(t *testing.T) {
	t.Parallel()

	d := NewDither(DitherFlat, 8, 1, 1)
	samples := make([]float64, 2000)
	for i := range samples {
		samples[i] = 0.3
	}
	d.ProcessChannel(0, samples)

	step := 2.0 / float64(int64(1)<<8)
	for _, s := range samples {
		ratio := s / step
		rounded := float64(int64(ratio + 0.5))
		assert.InDelta(t, 0, ratio-rounded, 1e-9, "quantized output must land on a step boundary")
	}
}

func TestDither_ShapedVariantsProduceDistinctHistoryState(t *testing.T) {
	t.Parallel()

	d := NewDither(DitherShibata, 16, 1, 2)
	assert.Len(t, d.shapers, 2)
	samples := []float64{0.1, 0.2, 0.3}
	d.ProcessChannel(0, samples)
	assert.NotZero(t, d.shapers[0].hist[0])
	assert.Zero(t, d.shapers[1].hist[0], "channel 1's shaper state is untouched by channel 0's processing")
}

func TestDither_AmplitudeScalesFlatNoiseWithinBounds(t *testing.T) {
	t.Parallel()

	// 2-bit output has a 0.5 LSB step; amplitude 2 doubles the conventional
	// +-1 LSB TPDF spread to +-2 LSB, so every quantized sample must land on
	// a 0.5-wide step within [-1, 1].
	d := NewDither(DitherFlat, 2, 2, 1)
	step := 2.0 / float64(int64(1)<<2)
	samples := make([]float64, 5000)
	d.ProcessChannel(0, samples)

	seen := map[float64]bool{}
	for _, s := range samples {
		assert.GreaterOrEqual(t, s, -1.0)
		assert.LessOrEqual(t, s, 1.0)
		ratio := s / step
		rounded := float64(int64(ratio + 0.5))
		assert.InDelta(t, 0, ratio-rounded, 1e-9, "quantized output must land on a step boundary")
		seen[s] = true
	}
	assert.Subset(t, []float64{-1, -0.5, 0, 0.5, 1}, keysOf(seen))
}

func TestDither_NonPositiveAmplitudeDefaultsToUnity(t *testing.T) {
	t.Parallel()

	zero := NewDither(DitherFlat, 16, 0, 1)
	assert.Equal(t, 1.0, zero.amplitude)

	negative := NewDither(DitherFlat, 16, -3, 1)
	assert.Equal(t, 1.0, negative.amplitude)
}

func keysOf(m map[float64]bool) []float64 {
	out := make([]float64, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
