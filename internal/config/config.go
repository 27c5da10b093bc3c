// Package config loads the engine's configuration document and validates
// it into an immutable snapshot (spec.md §3, §6). RawConfig mirrors the
// shape of the YAML document as spf13/viper decodes it; Configuration is
// the frozen, validated form the Supervisor hands to the Processing task.
package config

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	dsperrors "github.com/camilladsp-go/camilladsp/internal/errors"
)

// DeviceFormat is the on-the-wire sample format at the device boundary
// (spec.md §6).
type DeviceFormat string

const (
	FormatS16LE     DeviceFormat = "S16LE"
	FormatS24LE     DeviceFormat = "S24LE"
	FormatS24LE3    DeviceFormat = "S24LE3"
	FormatS32LE     DeviceFormat = "S32LE"
	FormatFloat32LE DeviceFormat = "FLOAT32LE"
	FormatFloat64LE DeviceFormat = "FLOAT64LE"
)

// RawDevice is the devices section of the config document.
type RawDevice struct {
	Samplerate       int         `mapstructure:"samplerate" yaml:"samplerate" json:"samplerate"`
	Chunksize        int         `mapstructure:"chunksize" yaml:"chunksize" json:"chunksize"`
	Queuelimit       int         `mapstructure:"queuelimit" yaml:"queuelimit" json:"queuelimit"`
	EnableRateAdjust bool        `mapstructure:"enable_rate_adjust" yaml:"enable_rate_adjust" json:"enable_rate_adjust"`
	TargetLevel      int         `mapstructure:"target_level" yaml:"target_level" json:"target_level"`
	AdjustPeriod     float64     `mapstructure:"adjust_period" yaml:"adjust_period" json:"adjust_period"`
	SilenceThreshold float64     `mapstructure:"silence_threshold" yaml:"silence_threshold" json:"silence_threshold"`
	SilenceTimeout   float64     `mapstructure:"silence_timeout" yaml:"silence_timeout" json:"silence_timeout"`
	StopOnRateChange bool        `mapstructure:"stop_on_rate_change" yaml:"stop_on_rate_change" json:"stop_on_rate_change"`
	Multithreaded    bool        `mapstructure:"multithreaded" yaml:"multithreaded" json:"multithreaded"`
	Capture          RawEndpoint `mapstructure:"capture" yaml:"capture" json:"capture"`
	Playback         RawEndpoint `mapstructure:"playback" yaml:"playback" json:"playback"`
}

// RawEndpoint describes one side (capture or playback) of the device
// section.
type RawEndpoint struct {
	Type     string       `mapstructure:"type" yaml:"type" json:"type"` // Alsa, File, Stdin, Stdout, Null, ...
	Channels int          `mapstructure:"channels" yaml:"channels" json:"channels"`
	Device   string       `mapstructure:"device" yaml:"device" json:"device"`
	Filename string       `mapstructure:"filename" yaml:"filename" json:"filename"`
	Format   DeviceFormat `mapstructure:"format" yaml:"format" json:"format"`
}

// RawBiquad mirrors one biquad filter's config body (spec.md §4.1).
type RawBiquad struct {
	Type      string  `mapstructure:"type" yaml:"type" json:"type"` // Lowpass, Highpass, Peaking, ...
	Freq      float64 `mapstructure:"freq" yaml:"freq" json:"freq"`
	Q         float64 `mapstructure:"q" yaml:"q" json:"q"`
	Bandwidth float64 `mapstructure:"bandwidth" yaml:"bandwidth" json:"bandwidth"`
	GainDB    float64 `mapstructure:"gain" yaml:"gain" json:"gain"`
	Slope     float64 `mapstructure:"slope" yaml:"slope" json:"slope"`
	Order     int     `mapstructure:"order" yaml:"order" json:"order"`
}

// RawFilter is one entry of the top-level filters dictionary. Exactly one
// of its type-specific fields is populated depending on Type.
type RawFilter struct {
	Type   string    `mapstructure:"type" yaml:"type" json:"type"` // Biquad, BiquadCombo, Conv, Delay, Gain, Volume, Loudness, Dither, ...
	Biquad RawBiquad `mapstructure:"parameters" yaml:"parameters" json:"parameters"`

	// Conv
	ConvFilename string    `mapstructure:"filename" yaml:"filename" json:"filename"`
	ConvFormat   string    `mapstructure:"format" yaml:"format" json:"format"` // wav, raw, text
	ConvChannel  int       `mapstructure:"channel" yaml:"channel" json:"channel"`
	ConvValues   []float64 `mapstructure:"values" yaml:"values" json:"values"` // literal coefficient list

	// Delay
	DelayValue float64 `mapstructure:"delay" yaml:"delay" json:"delay"`
	DelayUnit  string  `mapstructure:"unit" yaml:"unit" json:"unit"` // ms, mm, samples

	// Gain
	GainDB   float64 `mapstructure:"gain" yaml:"gain" json:"gain"`
	Inverted bool    `mapstructure:"inverted" yaml:"inverted" json:"inverted"`
	Mute     bool    `mapstructure:"mute" yaml:"mute" json:"mute"`

	// Volume / Loudness
	Fader        string  `mapstructure:"fader" yaml:"fader" json:"fader"`
	ReferenceDB  float64 `mapstructure:"reference_level" yaml:"reference_level" json:"reference_level"`
	HighBoostDB  float64 `mapstructure:"high_boost" yaml:"high_boost" json:"high_boost"`
	LowBoostDB   float64 `mapstructure:"low_boost" yaml:"low_boost" json:"low_boost"`
	AttenuateMid bool    `mapstructure:"attenuate_mid" yaml:"attenuate_mid" json:"attenuate_mid"`

	// Dither
	DitherType string  `mapstructure:"type_name" yaml:"type_name" json:"type_name"`
	Bits       int     `mapstructure:"bits" yaml:"bits" json:"bits"`
	Amplitude  float64 `mapstructure:"amplitude" yaml:"amplitude" json:"amplitude"`

	// Compressor / NoiseGate
	MonitorChannels []int   `mapstructure:"monitor_channels" yaml:"monitor_channels" json:"monitor_channels"`
	ProcessChannels []int   `mapstructure:"process_channels" yaml:"process_channels" json:"process_channels"`
	AttackMS        float64 `mapstructure:"attack" yaml:"attack" json:"attack"`
	ReleaseMS       float64 `mapstructure:"release" yaml:"release" json:"release"`
	ThresholdDB     float64 `mapstructure:"threshold" yaml:"threshold" json:"threshold"`
	Factor          float64 `mapstructure:"factor" yaml:"factor" json:"factor"`
	MakeupGainDB    float64 `mapstructure:"makeup_gain" yaml:"makeup_gain" json:"makeup_gain"`
	AttenuationDB   float64 `mapstructure:"attenuation" yaml:"attenuation" json:"attenuation"`
}

// RawMixerSource is one source entry inside a mixer destination channel.
type RawMixerSource struct {
	Channel  int     `mapstructure:"channel" yaml:"channel" json:"channel"`
	GainDB   float64 `mapstructure:"gain" yaml:"gain" json:"gain"`
	Inverted bool    `mapstructure:"inverted" yaml:"inverted" json:"inverted"`
}

// RawMixerDest is one destination channel's source list.
type RawMixerDest struct {
	Mute    bool             `mapstructure:"mute" yaml:"mute" json:"mute"`
	Sources []RawMixerSource `mapstructure:"sources" yaml:"sources" json:"sources"`
}

// RawMixer is one entry of the top-level mixers dictionary.
type RawMixer struct {
	Channels struct {
		In  int `mapstructure:"in" yaml:"in" json:"in"`
		Out int `mapstructure:"out" yaml:"out" json:"out"`
	} `mapstructure:"channels" yaml:"channels" json:"channels"`
	Dest []RawMixerDest `mapstructure:"mapping" yaml:"mapping" json:"mapping"`
}

// RawPipelineStep is one entry of the pipeline list: either a Filter step
// (names into the filters dict, scoped to channels), a Mixer step (names
// into the mixers dict), or a Processor step.
type RawPipelineStep struct {
	Type     string   `mapstructure:"type" yaml:"type" json:"type"` // Filter, Mixer, Processor
	Channel  int      `mapstructure:"channel" yaml:"channel" json:"channel"`
	Channels []int    `mapstructure:"channels" yaml:"channels" json:"channels"`
	Names    []string `mapstructure:"names" yaml:"names" json:"names"`
	Name     string   `mapstructure:"name" yaml:"name" json:"name"`
}

// RawConfig is the document viper decodes, shaped like the teacher's
// conf.Settings: nested structs with mapstructure tags, defaults filled
// by viper.SetDefault before Unmarshal. The yaml/json tags mirror the
// mapstructure ones so GetConfig/GetConfigJson (spec.md §6) can marshal
// the same document back out.
type RawConfig struct {
	Title       string               `mapstructure:"title" yaml:"title" json:"title"`
	Description string               `mapstructure:"description" yaml:"description" json:"description"`
	Devices     RawDevice            `mapstructure:"devices" yaml:"devices" json:"devices"`
	Mixers      map[string]RawMixer  `mapstructure:"mixers" yaml:"mixers" json:"mixers"`
	Filters     map[string]RawFilter `mapstructure:"filters" yaml:"filters" json:"filters"`
	Pipeline    []RawPipelineStep    `mapstructure:"pipeline" yaml:"pipeline" json:"pipeline"`
}

// Load decodes a YAML document into a RawConfig, filling defaults the way
// conf/defaults.go does per-section.
func Load(yamlDoc []byte) (*RawConfig, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("devices.queuelimit", 4)
	v.SetDefault("devices.chunksize", 1024)
	v.SetDefault("devices.adjust_period", 10.0)
	v.SetDefault("devices.silence_threshold", 0.0)
	v.SetDefault("devices.silence_timeout", 0.0)
	v.SetDefault("devices.target_level", 0)

	if err := v.ReadConfig(bytes.NewReader(yamlDoc)); err != nil {
		return nil, dsperrors.New(err).Category(dsperrors.CategoryConfig).Build()
	}

	var raw RawConfig
	if err := v.Unmarshal(&raw); err != nil {
		return nil, dsperrors.New(err).Category(dsperrors.CategoryConfig).Build()
	}
	// A filter's type-specific fields sit in its parameters block, which
	// the tags above map only onto the Biquad sub-struct; decode the block
	// onto the filter's own fields too, keeping the filter's Type (the
	// block's own "type" key is the biquad type).
	for name, f := range raw.Filters {
		filterType := f.Type
		if err := v.UnmarshalKey("filters."+name+".parameters", &f); err != nil {
			return nil, dsperrors.New(err).Category(dsperrors.CategoryConfig).Build()
		}
		f.Type = filterType
		raw.Filters[name] = f
	}
	if raw.Devices.TargetLevel == 0 {
		raw.Devices.TargetLevel = raw.Devices.Chunksize
	}
	return &raw, nil
}

// Configuration is the validated, immutable snapshot the Supervisor owns
// and hands to the Processing task (spec.md §3, §5 "configuration
// snapshot is owned by the supervisor"). It is a plain value: callers
// must treat it as read-only and replace it wholesale on reload rather
// than mutate fields in place.
type Configuration struct {
	Title       string
	Description string
	Raw         RawConfig
}

// Validate freezes raw into a Configuration, enforcing spec.md §6's
// invariants beyond parsing: channel counts propagate, referenced names
// exist, numeric ranges are respected, no negative delays, dither bits
// >= 2, target_level <= 2*chunksize.
func Validate(raw *RawConfig) (*Configuration, error) {
	d := raw.Devices
	if d.Chunksize <= 0 {
		return nil, configErr("devices.chunksize must be positive, got %d", d.Chunksize)
	}
	if d.TargetLevel > 2*d.Chunksize {
		return nil, configErr("devices.target_level (%d) must be <= 2*chunksize (%d)", d.TargetLevel, 2*d.Chunksize)
	}

	for name, f := range raw.Filters {
		if err := validateFilter(name, f); err != nil {
			return nil, err
		}
	}

	names := make(map[string]bool, len(raw.Filters))
	for name := range raw.Filters {
		names[name] = true
	}
	mixerNames := make(map[string]bool, len(raw.Mixers))
	for name := range raw.Mixers {
		mixerNames[name] = true
	}

	channels := d.Capture.Channels
	for i, step := range raw.Pipeline {
		switch step.Type {
		case "Filter":
			for _, n := range step.Names {
				if !names[n] {
					return nil, configErr("pipeline step %d references unknown filter %q", i, n)
				}
			}
			for _, ch := range step.Channels {
				if ch < 0 || ch >= channels {
					return nil, configErr("pipeline step %d: channel %d out of range for %d channels", i, ch, channels)
				}
			}
		case "Mixer":
			if !mixerNames[step.Name] {
				return nil, configErr("pipeline step %d references unknown mixer %q", i, step.Name)
			}
			if in := raw.Mixers[step.Name].Channels.In; in != channels {
				return nil, configErr("pipeline step %d: mixer %q takes %d channels, got %d", i, step.Name, in, channels)
			}
			channels = raw.Mixers[step.Name].Channels.Out
		case "Processor":
			if !names[step.Name] {
				return nil, configErr("pipeline step %d references unknown processor %q", i, step.Name)
			}
		default:
			return nil, configErr("pipeline step %d has unknown type %q", i, step.Type)
		}
	}
	if channels != d.Playback.Channels {
		return nil, configErr("pipeline ends with %d channels but playback has %d", channels, d.Playback.Channels)
	}

	return &Configuration{Title: raw.Title, Description: raw.Description, Raw: *raw}, nil
}

func validateFilter(name string, f RawFilter) error {
	switch f.Type {
	case "Biquad", "BiquadCombo":
		// stability is enforced by internal/dsp's constructors at apply
		// time; here we only check the numeric ranges that are purely
		// syntactic (spec.md §6 "numeric ranges respected").
	case "Delay":
		if f.DelayValue < 0 {
			return configErr("filter %q: delay must not be negative, got %v", name, f.DelayValue)
		}
	case "Gain":
		if f.GainDB < -150 || f.GainDB > 150 {
			return configErr("filter %q: gain %v dB out of range [-150, 150]", name, f.GainDB)
		}
	case "Loudness":
		if f.ReferenceDB < -100 || f.ReferenceDB > 20 {
			return configErr("filter %q: reference_level %v dB out of range [-100, 20]", name, f.ReferenceDB)
		}
		if f.HighBoostDB < 0 || f.HighBoostDB > 20 || f.LowBoostDB < 0 || f.LowBoostDB > 20 {
			return configErr("filter %q: loudness boosts must be within [0, 20] dB", name)
		}
	case "Dither":
		if f.Bits < 2 {
			return configErr("filter %q: dither bits must be >= 2, got %d", name, f.Bits)
		}
	}
	return nil
}

func configErr(format string, args ...any) error {
	return dsperrors.Newf(format, args...).Category(dsperrors.CategoryConfig).Build()
}

// ResolveTokens substitutes $samplerate$/$channels$ case-sensitively in
// a name or path before filesystem or dictionary lookup (spec.md §6).
func ResolveTokens(s string, sampleRate, channels int) string {
	s = strings.ReplaceAll(s, "$samplerate$", fmt.Sprintf("%d", sampleRate))
	s = strings.ReplaceAll(s, "$channels$", fmt.Sprintf("%d", channels))
	return s
}
