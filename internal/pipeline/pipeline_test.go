package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/camilladsp-go/camilladsp/internal/audio"
	"github.com/camilladsp-go/camilladsp/internal/dsp"
)

func TestFilterStep_AppliesFiltersInOrderPerChannel(t *testing.T) {
	t.Parallel()

	g1 := dsp.NewGain(6.0206, false, false)
	g2 := dsp.NewGain(6.0206, false, false)
	step := &FilterStep{Channels: []int{0}, Filters: []ChannelFilter{g1, g2}}

	c := audio.NewChunk(1, 4)
	c.ValidFrames = 4
	c.Data[0][0] = 1.0
	step.apply(c)

	assert.InDelta(t, 4.0, c.Data[0][0], 0.05, "two +6dB gains in series should roughly quadruple amplitude")
}

func TestMixerStep_SumsWeightedSources(t *testing.T) {
	t.Parallel()

	c := audio.NewChunk(2, 4)
	c.ValidFrames = 4
	c.Data[0][0] = 1.0
	c.Data[1][0] = 1.0

	step := &MixerStep{
		OutChannels: 1,
		Dests: [][]MixerSource{
			{{Channel: 0, GainDB: 0}, {Channel: 1, GainDB: 0}},
		},
	}
	step.apply(c)

	assert.Equal(t, 1, c.Channels)
	assert.InDelta(t, 2.0, c.Data[0][0], 1e-9)
}

func TestMixerStep_MuteForcesZero(t *testing.T) {
	t.Parallel()

	c := audio.NewChunk(1, 4)
	c.ValidFrames = 4
	c.Data[0][0] = 1.0

	step := &MixerStep{
		OutChannels: 1,
		Dests:       [][]MixerSource{{{Channel: 0, GainDB: 0}}},
		Mute:        []bool{true},
	}
	step.apply(c)
	assert.Equal(t, 0.0, c.Data[0][0])
}

func TestMixerStep_EmptySourcesIsSilent(t *testing.T) {
	t.Parallel()

	c := audio.NewChunk(1, 4)
	c.ValidFrames = 4
	c.Data[0][0] = 1.0

	step := &MixerStep{OutChannels: 1, Dests: [][]MixerSource{nil}}
	step.apply(c)
	assert.Equal(t, 0.0, c.Data[0][0])
}

func TestResolveTokens_SubstitutesSamplerateAndChannels(t *testing.T) {
	t.Parallel()

	got := ResolveTokens("filter_$samplerate$_$channels$ch", 48000, 2)
	assert.Equal(t, "filter_48000_2ch", got)
}

func TestGroupFilterSteps_SplitsOnMixerBoundary(t *testing.T) {
	t.Parallel()

	f1 := &FilterStep{Channels: []int{0}}
	f2 := &FilterStep{Channels: []int{1}}
	m := &MixerStep{OutChannels: 1, Dests: [][]MixerSource{nil}}
	f3 := &FilterStep{Channels: []int{0}}

	groups := groupFilterSteps([]Step{f1, f2, m, f3})
	if assert.Len(t, groups, 2) {
		assert.Len(t, groups[0].tasks, 2)
		assert.Len(t, groups[1].tasks, 1)
	}
}

func TestWorkerPool_RunsDisjointTasksConcurrently(t *testing.T) {
	t.Parallel()

	pool := NewWorkerPool(2)
	defer pool.Close()

	c := audio.NewChunk(2, 4)
	c.ValidFrames = 4
	c.Data[0][0] = 1
	c.Data[1][0] = 1

	g1 := dsp.NewGain(6.0206, false, false)
	g2 := dsp.NewGain(6.0206, false, false)
	group := &parallelGroup{tasks: []*FilterStep{
		{Channels: []int{0}, Filters: []ChannelFilter{g1}},
		{Channels: []int{1}, Filters: []ChannelFilter{g2}},
	}}
	pool.RunGroup(group, c)

	assert.InDelta(t, 2.0, c.Data[0][0], 0.05)
	assert.InDelta(t, 2.0, c.Data[1][0], 0.05)
}
