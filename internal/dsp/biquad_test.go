package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rms(samples []float64) float64 {
	sum := 0.0
	for _, s := range samples {
		sum += s * s
	}
	return math.Sqrt(sum / float64(len(samples)))
}

func sineWave(freq, sampleRate float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
	}
	return out
}

func TestLowpass_AttenuatesAboveCutoff(t *testing.T) {
	t.Parallel()

	const sampleRate = 48000.0
	bq, err := NewLowpass(1, sampleRate, 1000, 0.707)
	require.NoError(t, err)

	input := sineWave(8000, sampleRate, 48000)
	before := rms(input)
	bq.ProcessChannel(0, input)
	after := rms(input[5000:])

	attenDB := 20 * math.Log10(before/after)
	assert.Greater(t, attenDB, 20.0, "lowpass should attenuate a tone well above cutoff")
}

func TestHighpass_AttenuatesBelowCutoff(t *testing.T) {
	t.Parallel()

	const sampleRate = 48000.0
	bq, err := NewHighpass(1, sampleRate, 1000, 0.707)
	require.NoError(t, err)

	input := sineWave(100, sampleRate, 48000)
	before := rms(input)
	bq.ProcessChannel(0, input)
	after := rms(input[5000:])

	attenDB := 20 * math.Log10(before/after)
	assert.Greater(t, attenDB, 20.0, "highpass should attenuate a tone well below cutoff")
}

func TestBiquad_RejectsUnstablePoles(t *testing.T) {
	t.Parallel()

	_, err := newBiquadRaw(1, 1, 0, 0, 1, 3, 5)
	require.Error(t, err)
}

func TestBiquad_PerChannelStateIsIndependent(t *testing.T) {
	t.Parallel()

	bq, err := NewLowpass(2, 48000, 1000, 0.707)
	require.NoError(t, err)

	left := []float64{1, 0, 0, 0, 0}
	right := []float64{0, 0, 0, 0, 0}
	bq.ProcessChannel(0, left)
	bq.ProcessChannel(1, right)

	assert.NotEqual(t, left, right)
	assert.Equal(t, []float64{0, 0, 0, 0, 0}, right, "channel 1's impulse response starts from zero state")
}

func TestBiquad_ResetClearsState(t *testing.T) {
	t.Parallel()

	bq, err := NewLowpass(1, 48000, 1000, 0.707)
	require.NoError(t, err)

	samples := []float64{1, 1, 1, 1}
	bq.ProcessChannel(0, samples)
	assert.NotZero(t, bq.w1[0])

	bq.Reset()
	assert.Zero(t, bq.w1[0])
	assert.Zero(t, bq.w2[0])
}

func TestPeaking_BoostsAtCenterFrequency(t *testing.T) {
	t.Parallel()

	const sampleRate = 48000.0
	bq, err := NewPeaking(1, sampleRate, 1000, 6, 1.0, 0)
	require.NoError(t, err)

	input := sineWave(1000, sampleRate, 48000)
	before := rms(input)
	bq.ProcessChannel(0, input)
	after := rms(input[5000:])

	assert.Greater(t, after, before, "a positive-gain peaking filter should raise level at its center frequency")
}

func TestButterworthLowpass_OddOrderAddsFirstOrderStage(t *testing.T) {
	t.Parallel()

	cc, err := NewButterworthLowpass(1, 48000, 1000, 3)
	require.NoError(t, err)
	assert.Len(t, cc.stages, 2, "order 3 = one first-order stage + one second-order stage")
}

func TestLinkwitzRileyLowpass_RequiresEvenOrder(t *testing.T) {
	t.Parallel()

	_, err := NewLinkwitzRileyLowpass(1, 48000, 1000, 3)
	assert.Error(t, err)
}

func TestQFromBandwidthOctaves_OneOctave(t *testing.T) {
	t.Parallel()

	q := qFromBandwidthOctaves(1.0)
	assert.InDelta(t, math.Sqrt2, q, 0.05)
}
