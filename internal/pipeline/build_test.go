package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camilladsp-go/camilladsp/internal/audio"
	"github.com/camilladsp-go/camilladsp/internal/config"
	"github.com/camilladsp-go/camilladsp/internal/dsp"
)

func buildFromYAML(t *testing.T, doc string) *Pipeline {
	t.Helper()
	raw, err := config.Load([]byte(doc))
	require.NoError(t, err)
	cfg, err := config.Validate(raw)
	require.NoError(t, err)
	pl, err := Build(cfg, dsp.NewFaderBank(), nil)
	require.NoError(t, err)
	return pl
}

func TestBuild_GainFilterStepAppliesConfiguredGain(t *testing.T) {
	t.Parallel()

	pl := buildFromYAML(t, `
devices:
  samplerate: 48000
  chunksize: 1024
  capture: {type: Null, channels: 1}
  playback: {type: Null, channels: 1}
filters:
  boost:
    type: Gain
    parameters: {gain: 6.0206}
pipeline:
  - type: Filter
    channels: [0]
    names: [boost]
`)

	c := audio.NewChunk(1, 4)
	c.ValidFrames = 4
	c.Data[0][0] = 1.0
	pl.Run(c)

	assert.InDelta(t, 2.0, c.Data[0][0], 0.01)
}

func TestBuild_MixerStepNarrowsToOutChannels(t *testing.T) {
	t.Parallel()

	pl := buildFromYAML(t, `
devices:
  samplerate: 48000
  chunksize: 1024
  capture: {type: Null, channels: 2}
  playback: {type: Null, channels: 1}
mixers:
  downmix:
    channels: {in: 2, out: 1}
    mapping:
      - sources:
          - {channel: 0, gain: 0}
          - {channel: 1, gain: 0}
pipeline:
  - type: Mixer
    name: downmix
`)

	c := audio.NewChunk(2, 4)
	c.ValidFrames = 4
	c.Data[0][0] = 1.0
	c.Data[1][0] = 1.0
	pl.Run(c)

	assert.Equal(t, 1, c.Channels)
	assert.InDelta(t, 2.0, c.Data[0][0], 1e-9)
}

func TestBuild_UnknownFilterTypeIsRejected(t *testing.T) {
	t.Parallel()

	raw, err := config.Load([]byte(`
devices:
  samplerate: 48000
  chunksize: 1024
  capture: {type: Null, channels: 1}
  playback: {type: Null, channels: 1}
filters:
  bogus:
    type: NotARealFilter
pipeline:
  - type: Filter
    channels: [0]
    names: [bogus]
`))
	require.NoError(t, err)
	cfg, err := config.Validate(raw)
	require.NoError(t, err)

	_, err = Build(cfg, dsp.NewFaderBank(), nil)
	assert.Error(t, err)
}

func TestBuild_ConvFilterWithLiteralValues(t *testing.T) {
	t.Parallel()

	pl := buildFromYAML(t, `
devices:
  samplerate: 48000
  chunksize: 4
  capture: {type: Null, channels: 1}
  playback: {type: Null, channels: 1}
filters:
  fir:
    type: Conv
    parameters: {values: [1.0, 0.5]}
pipeline:
  - type: Filter
    channels: [0]
    names: [fir]
`)

	c := audio.NewChunk(1, 4)
	c.ValidFrames = 4
	c.Data[0][0] = 1.0
	pl.Run(c)

	assert.InDelta(t, 1.0, c.Data[0][0], 1e-9)
	assert.InDelta(t, 0.5, c.Data[0][1], 1e-9)
}
