package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelay_IntegerSamplesDelaysExactly(t *testing.T) {
	t.Parallel()

	d, err := NewDelay(1, 3)
	require.NoError(t, err)

	impulse := []float64{1, 0, 0, 0, 0, 0}
	d.ProcessChannel(0, impulse)

	expected := []float64{0, 0, 0, 1, 0, 0}
	assert.Equal(t, expected, impulse)
}

func TestDelay_RejectsNegativeDelay(t *testing.T) {
	t.Parallel()

	_, err := NewDelay(1, -5)
	assert.Error(t, err)
}

func TestResolveDelaySamples_Milliseconds(t *testing.T) {
	t.Parallel()

	samples, err := ResolveDelaySamples(10, DelayUnitMilliseconds, 48000)
	require.NoError(t, err)
	assert.InDelta(t, 480, samples, 1e-9)
}

func TestResolveDelaySamples_Millimeters(t *testing.T) {
	t.Parallel()

	samples, err := ResolveDelaySamples(343000, DelayUnitMillimeters, 48000)
	require.NoError(t, err)
	assert.InDelta(t, 48000, samples, 1.0)
}

func TestResolveDelaySamples_RejectsNegative(t *testing.T) {
	t.Parallel()

	_, err := ResolveDelaySamples(-1, DelayUnitSamples, 48000)
	assert.Error(t, err)
}

func TestDelay_ResetClearsHistory(t *testing.T) {
	t.Parallel()

	d, err := NewDelay(1, 2)
	require.NoError(t, err)

	samples := []float64{1, 1, 1}
	d.ProcessChannel(0, samples)
	d.Reset()

	fresh := []float64{0, 0, 0}
	d.ProcessChannel(0, fresh)
	assert.Equal(t, []float64{0, 0, 0}, fresh)
}
