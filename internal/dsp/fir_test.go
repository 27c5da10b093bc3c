package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFIR_DummyImpulseIsIdentity(t *testing.T) {
	t.Parallel()

	f, err := NewFIR(NewDummyImpulse(), 1, 64)
	require.NoError(t, err)

	samples := []float64{0.1, -0.2, 0.3, -0.4}
	want := append([]float64{}, samples...)
	f.ProcessChannel(0, samples)
	assert.InDeltaSlice(t, want, samples, 1e-9)
}

func TestFIR_ShortTapsUsesOverlapSave(t *testing.T) {
	t.Parallel()

	taps := []float64{0.5, 0.5} // 2-tap moving average, shorter than chunk size
	f, err := NewFIR(taps, 1, 64)
	require.NoError(t, err)
	assert.False(t, f.segmented)

	block1 := make([]float64, 64)
	block1[0] = 1
	f.ProcessChannel(0, block1)
	assert.InDelta(t, 0.5, block1[0], 1e-9)
	assert.InDelta(t, 0.5, block1[1], 1e-9)
	for i := 2; i < len(block1); i++ {
		assert.InDelta(t, 0, block1[i], 1e-9)
	}
}

func TestFIR_OverlapSaveCarriesHistoryAcrossBlocks(t *testing.T) {
	t.Parallel()

	// Worked example from the overlap-save history bug: a 2-tap moving
	// average, chunk size 4. Block 1 has a single impulse in its last
	// sample; block 2 is silence. The impulse's tail must carry into
	// block 2 as an *input* sample, not as the filtered output.
	taps := []float64{0.5, 0.5}
	f, err := NewFIR(taps, 1, 4)
	require.NoError(t, err)
	assert.False(t, f.segmented)

	block1 := []float64{0, 0, 0, 1}
	f.ProcessChannel(0, block1)
	assert.InDeltaSlice(t, []float64{0, 0, 0, 0.5}, block1, 1e-9)

	block2 := []float64{0, 0, 0, 0}
	f.ProcessChannel(0, block2)
	assert.InDeltaSlice(t, []float64{0.5, 0, 0, 0}, block2, 1e-9)
}

func TestFIR_OverlapSaveMatchesDirectConvolutionAcrossManyBlocks(t *testing.T) {
	t.Parallel()

	taps := []float64{0.2, -0.5, 0.3, 0.1}
	const chunk = 16
	const blocks = 8

	stream := make([]float64, chunk*blocks)
	for i := range stream {
		stream[i] = math.Sin(0.3*float64(i)) + 0.5*math.Cos(0.07*float64(i))
	}

	// Reference: direct convolution over the whole stream, causal,
	// zero history before sample 0.
	want := make([]float64, len(stream))
	for n := range stream {
		var acc float64
		for k, h := range taps {
			if n-k >= 0 {
				acc += h * stream[n-k]
			}
		}
		want[n] = acc
	}

	f, err := NewFIR(taps, 1, chunk)
	require.NoError(t, err)
	require.False(t, f.segmented)

	got := append([]float64{}, stream...)
	for b := 0; b < blocks; b++ {
		f.ProcessChannel(0, got[b*chunk:(b+1)*chunk])
	}

	assert.InDeltaSlice(t, want, got, 1e-9)
}

func TestFIR_LongTapsUsesSegmentedOverlapAdd(t *testing.T) {
	t.Parallel()

	taps := make([]float64, 200)
	taps[0] = 1.0 // identity impulse, but longer than the 64-sample chunk
	f, err := NewFIR(taps, 1, 64)
	require.NoError(t, err)
	assert.True(t, f.segmented)

	block := make([]float64, 64)
	for i := range block {
		block[i] = math.Sin(float64(i))
	}
	want := append([]float64{}, block...)
	f.ProcessChannel(0, block)
	assert.InDeltaSlice(t, want, block, 1e-6)
}
