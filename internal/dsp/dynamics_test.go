package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompressor_ReducesGainAboveThreshold(t *testing.T) {
	t.Parallel()

	c := NewCompressor(ChannelSet{0}, ChannelSet{0}, 1, 50, 48000, -20, 4, 0, ClipNone, 1.0)
	data := [][]float64{make([]float64, 2000)}
	for i := range data[0] {
		data[0][i] = 0.9
	}
	c.ProcessChunk(data, len(data[0]))
	assert.Less(t, data[0][len(data[0])-1], 0.9, "a signal well above threshold should be gain-reduced")
}

func TestNoiseGate_AttenuatesBelowThreshold(t *testing.T) {
	t.Parallel()

	g := NewNoiseGate(ChannelSet{0}, ChannelSet{0}, 1, 50, 48000, -20, 80)
	data := [][]float64{make([]float64, 3000)}
	for i := range data[0] {
		data[0][i] = 0.0001 // well below -20dB
	}
	g.ProcessChunk(data, len(data[0]))
	assert.Less(t, data[0][len(data[0])-1], 0.0001*0.01, "a quiet signal should be strongly attenuated after settling")
}

func TestLimiter_HardClipsToLimit(t *testing.T) {
	t.Parallel()

	l := NewLimiter(ClipHard, 0.5)
	samples := []float64{1.0, -1.0, 0.2}
	l.ProcessChannel(0, samples)
	assert.Equal(t, []float64{0.5, -0.5, 0.2}, samples)
}

func TestLimiter_SoftClipStaysWithinLimit(t *testing.T) {
	t.Parallel()

	l := NewLimiter(ClipSoft, 1.0)
	samples := []float64{5.0, -5.0}
	l.ProcessChannel(0, samples)
	assert.Less(t, samples[0], 1.0)
	assert.Greater(t, samples[1], -1.0)
}
