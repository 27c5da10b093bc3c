package pipeline

import (
	"os"

	"github.com/camilladsp-go/camilladsp/internal/config"
	"github.com/camilladsp-go/camilladsp/internal/dsp"
	dsperrors "github.com/camilladsp-go/camilladsp/internal/errors"
)

// Build materializes a Configuration's filters/mixers/pipeline dictionary
// into a runnable Pipeline (spec.md §4.4 Processing task step 1,
// "materialize FilterInstance/MixerInstance/ProcessorInstance trees and
// the parallel-task grouping"). faders supplies the FaderBank that
// Volume/Loudness filters subscribe to.
func Build(cfg *config.Configuration, faders *dsp.FaderBank, pool *WorkerPool) (*Pipeline, error) {
	sampleRate := float64(cfg.Raw.Devices.Samplerate)
	channels := cfg.Raw.Devices.Capture.Channels
	chunksize := cfg.Raw.Devices.Chunksize

	steps := make([]Step, 0, len(cfg.Raw.Pipeline))
	for _, raw := range cfg.Raw.Pipeline {
		switch raw.Type {
		case "Filter":
			filters := make([]ChannelFilter, 0, len(raw.Names))
			for _, name := range raw.Names {
				f, err := buildFilter(cfg.Raw.Filters[name], int(channels), sampleRate, chunksize, faders)
				if err != nil {
					return nil, err
				}
				if cf, ok := f.(ChannelFilter); ok {
					filters = append(filters, cf)
				}
			}
			steps = append(steps, &FilterStep{Channels: raw.Channels, Filters: filters})

		case "Mixer":
			m := cfg.Raw.Mixers[raw.Name]
			dests := make([][]MixerSource, len(m.Dest))
			mute := make([]bool, len(m.Dest))
			for i, d := range m.Dest {
				mute[i] = d.Mute
				srcs := make([]MixerSource, len(d.Sources))
				for j, s := range d.Sources {
					srcs[j] = MixerSource{Channel: s.Channel, GainDB: s.GainDB, Invert: s.Inverted}
				}
				dests[i] = srcs
			}
			steps = append(steps, &MixerStep{OutChannels: m.Channels.Out, Dests: dests, Mute: mute})
			channels = m.Channels.Out

		case "Processor":
			f, err := buildFilter(cfg.Raw.Filters[raw.Name], int(channels), sampleRate, chunksize, faders)
			if err != nil {
				return nil, err
			}
			if cp, ok := f.(ChunkProcessor); ok {
				steps = append(steps, &ProcessorStep{Processor: cp})
			}
		}
	}

	return NewPipeline(steps, pool), nil
}

// buildFilter constructs the dsp primitive named by f; an unknown type is
// an error. Build keeps the result only if it has the interface its step
// needs (ChannelFilter for a Filter step, ChunkProcessor for a Processor
// step) and drops it otherwise (e.g. a Dither filter named in a Processor
// step).
func buildFilter(f config.RawFilter, channels int, sampleRate float64, chunksize int, faders *dsp.FaderBank) (any, error) {
	switch f.Type {
	case "Biquad":
		return buildBiquad(f.Biquad, channels, sampleRate)
	case "BiquadCombo":
		return buildBiquadCombo(f.Biquad, channels, sampleRate)
	case "Conv":
		taps, err := loadConvTaps(f)
		if err != nil {
			return nil, err
		}
		return dsp.NewFIR(taps, channels, chunksize)
	case "Delay":
		samples, err := dsp.ResolveDelaySamples(f.DelayValue, delayUnit(f.DelayUnit), sampleRate)
		if err != nil {
			return nil, err
		}
		return dsp.NewDelay(channels, samples)
	case "Gain":
		return dsp.NewGain(f.GainDB, f.Inverted, f.Mute), nil
	case "Volume":
		return dsp.NewVolume(faders.Fader(faderName(f.Fader))), nil
	case "Loudness":
		return dsp.NewLoudness(channels, sampleRate, faders.Fader(faderName(f.Fader)),
			f.ReferenceDB, f.LowBoostDB, f.HighBoostDB, f.AttenuateMid)
	case "Dither":
		return dsp.NewDither(ditherType(f.DitherType), f.Bits, f.Amplitude, channels), nil
	case "Compressor":
		return dsp.NewCompressor(channelSet(f.MonitorChannels, channels), channelSet(f.ProcessChannels, channels),
			f.AttackMS, f.ReleaseMS, sampleRate, f.ThresholdDB, f.Factor, f.MakeupGainDB, dsp.ClipNone, 0), nil
	case "NoiseGate":
		return dsp.NewNoiseGate(channelSet(f.MonitorChannels, channels), channelSet(f.ProcessChannels, channels),
			f.AttackMS, f.ReleaseMS, sampleRate, f.ThresholdDB, f.AttenuationDB), nil
	default:
		return nil, dsperrors.Newf("pipeline build: unknown filter type %q", f.Type).
			Category(dsperrors.CategoryConfig).Build()
	}
}

// channelSet returns cfg verbatim if the config named specific channels,
// or every channel 0..n-1 if it was left empty.
func channelSet(cfg []int, n int) dsp.ChannelSet {
	if len(cfg) > 0 {
		return dsp.ChannelSet(cfg)
	}
	cs := make(dsp.ChannelSet, n)
	for i := range cs {
		cs[i] = i
	}
	return cs
}

func buildBiquad(b config.RawBiquad, channels int, sampleRate float64) (*dsp.Biquad, error) {
	switch b.Type {
	case "Lowpass":
		return dsp.NewLowpass(channels, sampleRate, b.Freq, b.Q)
	case "Highpass":
		return dsp.NewHighpass(channels, sampleRate, b.Freq, b.Q)
	case "LowpassFO":
		return dsp.NewLowpassFO(channels, sampleRate, b.Freq)
	case "HighpassFO":
		return dsp.NewHighpassFO(channels, sampleRate, b.Freq)
	case "Peaking":
		return dsp.NewPeaking(channels, sampleRate, b.Freq, b.GainDB, b.Q, b.Bandwidth)
	case "Notch":
		return dsp.NewNotch(channels, sampleRate, b.Freq, b.Q, b.Bandwidth)
	case "Bandpass":
		return dsp.NewBandpass(channels, sampleRate, b.Freq, b.Q, b.Bandwidth)
	case "Lowshelf":
		return dsp.NewLowshelf(channels, sampleRate, b.Freq, b.GainDB, dsp.ShelfSlope{Q: b.Q, Slope: b.Slope})
	case "Highshelf":
		return dsp.NewHighshelf(channels, sampleRate, b.Freq, b.GainDB, dsp.ShelfSlope{Q: b.Q, Slope: b.Slope})
	default:
		return nil, dsperrors.Newf("pipeline build: unknown biquad type %q", b.Type).
			Category(dsperrors.CategoryConfig).Build()
	}
}

func buildBiquadCombo(b config.RawBiquad, channels int, sampleRate float64) (*dsp.Cascade, error) {
	switch b.Type {
	case "ButterworthLowpass":
		return dsp.NewButterworthLowpass(channels, sampleRate, b.Freq, b.Order)
	case "ButterworthHighpass":
		return dsp.NewButterworthHighpass(channels, sampleRate, b.Freq, b.Order)
	case "LinkwitzRileyLowpass":
		return dsp.NewLinkwitzRileyLowpass(channels, sampleRate, b.Freq, b.Order)
	case "LinkwitzRileyHighpass":
		return dsp.NewLinkwitzRileyHighpass(channels, sampleRate, b.Freq, b.Order)
	case "Tilt":
		return dsp.NewTilt(channels, sampleRate, b.GainDB)
	default:
		return nil, dsperrors.Newf("pipeline build: unknown biquad combo type %q", b.Type).
			Category(dsperrors.CategoryConfig).Build()
	}
}

// loadConvTaps resolves a Conv filter's coefficients from a literal list,
// a raw/text coefficient file, or one channel of a wav file (spec.md
// §4.1 FIR "loaded from wav... raw samples... or a literal coefficient
// list").
func loadConvTaps(f config.RawFilter) ([]float64, error) {
	if len(f.ConvValues) > 0 {
		return f.ConvValues, nil
	}
	if f.ConvFilename == "" {
		return dsp.NewDummyImpulse(), nil
	}
	data, err := os.ReadFile(f.ConvFilename)
	if err != nil {
		return nil, dsperrors.New(err).Category(dsperrors.CategoryConfig).Build()
	}
	switch f.ConvFormat {
	case "wav":
		return dsp.LoadCoefficientsWAV(data, f.ConvChannel)
	default:
		return dsp.LoadCoefficientsText(data)
	}
}

func delayUnit(u string) dsp.DelayUnit {
	switch u {
	case "ms":
		return dsp.DelayUnitMilliseconds
	case "mm":
		return dsp.DelayUnitMillimeters
	default:
		return dsp.DelayUnitSamples
	}
}

func faderName(name string) dsp.FaderName {
	switch name {
	case "Aux1":
		return dsp.FaderAux1
	case "Aux2":
		return dsp.FaderAux2
	case "Aux3":
		return dsp.FaderAux3
	case "Aux4":
		return dsp.FaderAux4
	default:
		return dsp.FaderMain
	}
}

func ditherType(name string) dsp.DitherType {
	switch name {
	case "Highpass":
		return dsp.DitherHighpass
	case "Fweighted":
		return dsp.DitherFweighted
	case "Shibata":
		return dsp.DitherShibata
	case "Lipshitz":
		return dsp.DitherLipshitz
	case "Gesemann":
		return dsp.DitherGesemann
	case "None":
		return dsp.DitherNone
	default:
		return dsp.DitherFlat
	}
}
