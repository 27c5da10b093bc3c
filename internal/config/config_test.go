package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalYAML = `
title: test
devices:
  samplerate: 48000
  chunksize: 1024
  capture:
    type: File
    channels: 2
    filename: /tmp/in.raw
    format: S16LE
  playback:
    type: File
    channels: 2
    filename: /tmp/out.raw
    format: S16LE
filters:
  vol:
    type: Gain
    parameters:
      gain: -6.0
pipeline:
  - type: Filter
    channels: [0, 1]
    names: [vol]
`

func TestLoad_FillsDefaults(t *testing.T) {
	t.Parallel()

	raw, err := Load([]byte(minimalYAML))
	require.NoError(t, err)
	assert.Equal(t, 4, raw.Devices.Queuelimit)
	assert.Equal(t, 1024, raw.Devices.TargetLevel, "target_level defaults to chunksize when unset")
}

func TestValidate_AcceptsMinimalConfig(t *testing.T) {
	t.Parallel()

	raw, err := Load([]byte(minimalYAML))
	require.NoError(t, err)
	cfg, err := Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "test", cfg.Title)
}

func TestValidate_RejectsUnknownFilterReference(t *testing.T) {
	t.Parallel()

	raw, err := Load([]byte(minimalYAML))
	require.NoError(t, err)
	raw.Pipeline[0].Names = []string{"nonexistent"}

	_, err = Validate(raw)
	assert.Error(t, err)
}

func TestValidate_RejectsGainOutOfRange(t *testing.T) {
	t.Parallel()

	raw, err := Load([]byte(minimalYAML))
	require.NoError(t, err)
	f := raw.Filters["vol"]
	f.GainDB = 200
	raw.Filters["vol"] = f

	_, err = Validate(raw)
	assert.Error(t, err)
}

func TestValidate_RejectsTargetLevelAboveTwiceChunksize(t *testing.T) {
	t.Parallel()

	raw, err := Load([]byte(minimalYAML))
	require.NoError(t, err)
	raw.Devices.TargetLevel = raw.Devices.Chunksize*2 + 1

	_, err = Validate(raw)
	assert.Error(t, err)
}

func TestResolveTokens_SubstitutesBoth(t *testing.T) {
	t.Parallel()

	got := ResolveTokens("coeffs_$samplerate$_$channels$ch.wav", 44100, 2)
	assert.Equal(t, "coeffs_44100_2ch.wav", got)
}
