package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGain_AppliesLinearMultiplier(t *testing.T) {
	t.Parallel()

	g := NewGain(6.0206, false, false) // +6dB ~ x2
	samples := []float64{1, 0.5, -1}
	g.ProcessChannel(0, samples)
	assert.InDelta(t, 2.0, samples[0], 0.01)
	assert.InDelta(t, 1.0, samples[1], 0.01)
	assert.InDelta(t, -2.0, samples[2], 0.01)
}

func TestGain_MuteZeroesOutput(t *testing.T) {
	t.Parallel()

	g := NewGain(0, false, true)
	samples := []float64{1, 2, 3}
	g.ProcessChannel(0, samples)
	assert.Equal(t, []float64{0, 0, 0}, samples)
}

func TestGain_InvertFlipsPolarity(t *testing.T) {
	t.Parallel()

	g := NewGain(0, true, false)
	samples := []float64{1, -1}
	g.ProcessChannel(0, samples)
	assert.Equal(t, []float64{-1, 1}, samples)
}

func TestFader_RampIsMonotonic(t *testing.T) {
	t.Parallel()

	f := NewFader()
	f.SetGain(-20, 100, 10) // 10 chunks to ramp from 0 to -20dB

	last := f.GainDB()
	for i := 0; i < 10; i++ {
		next := f.advance()
		assert.LessOrEqual(t, next, last, "gain must not increase while ramping down")
		last = next
	}
	assert.InDelta(t, -20, last, 1e-6)
}

func TestFader_MuteOverridesRampedGain(t *testing.T) {
	t.Parallel()

	f := NewFader()
	f.SetMute(true)
	assert.True(t, math.IsInf(f.advance(), -1))
}

func TestFader_ToggleMute(t *testing.T) {
	t.Parallel()

	f := NewFader()
	assert.False(t, f.Muted())
	assert.True(t, f.ToggleMute())
	assert.True(t, f.Muted())
	assert.False(t, f.ToggleMute())
}

func TestFaderBank_FiveNamedFaders(t *testing.T) {
	t.Parallel()

	fb := NewFaderBank()
	names := []FaderName{FaderMain, FaderAux1, FaderAux2, FaderAux3, FaderAux4}
	for _, n := range names {
		assert.NotNil(t, fb.Fader(n))
	}
}

func TestVolume_TracksFaderGain(t *testing.T) {
	t.Parallel()

	f := NewFader()
	f.SetGain(-6.0206, 0, 10) // immediate ~half gain
	v := NewVolume(f)
	v.Advance()

	samples := []float64{1, 1}
	v.ProcessChannel(0, samples)
	assert.InDelta(t, 0.5, samples[0], 0.01)
}

func TestLoudness_BoostFractionSaturatesAt20dBBelowReference(t *testing.T) {
	t.Parallel()

	f := NewFader()
	l, err := NewLoudness(1, 48000, f, 0, 6, 9, false)
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, 0.0, l.boostFraction(0))
	assert.Equal(t, 1.0, l.boostFraction(-20))
	assert.Equal(t, 1.0, l.boostFraction(-30))
	assert.InDelta(t, 0.5, l.boostFraction(-10), 1e-9)
}
