package dsp

import (
	"fmt"
	"math"

	dsperrors "github.com/camilladsp-go/camilladsp/internal/errors"
)

// Cascade chains several Biquad sections and applies them to a channel's
// samples in order — the building block behind Butterworth/Linkwitz-Riley
// crossovers, Tilt, FivePointPeq, and GraphicEqualizer (spec.md §4.1
// BiquadCombo).
type Cascade struct {
	stages []*Biquad
}

// ProcessChannel runs every stage in sequence against the channel's samples.
func (c *Cascade) ProcessChannel(ch int, samples []float64) {
	for _, s := range c.stages {
		s.ProcessChannel(ch, samples)
	}
}

// Reset clears state in every stage.
func (c *Cascade) Reset() {
	for _, s := range c.stages {
		s.Reset()
	}
}

// butterworthQTable gives the per-stage Q values for an order-N Butterworth
// filter built from cascaded second-order sections, derived from the
// standard pole-angle formula Q_k = 1 / (2*sin(theta_k)).
func butterworthQTable(order int) []float64 {
	n := order / 2
	qs := make([]float64, 0, n+order%2)
	for k := 0; k < n; k++ {
		theta := math.Pi * (2*float64(k) + 1) / (2 * float64(order))
		qs = append(qs, 1/(2*math.Sin(theta)))
	}
	return qs
}

// NewButterworthLowpass cascades order/2 second-order lowpass sections (plus
// a first-order section for odd orders) at Q values taken from the
// Butterworth pole table, giving a maximally-flat-passband crossover slope
// of 6*order dB/octave.
func NewButterworthLowpass(channels int, sampleRate, freq float64, order int) (*Cascade, error) {
	if order < 1 {
		return nil, dsperrors.Newf("butterworth lowpass: order must be >= 1, got %d", order).
			Category(dsperrors.CategoryConfig).Build()
	}
	cc := &Cascade{}
	if order%2 == 1 {
		bq, err := NewLowpassFO(channels, sampleRate, freq)
		if err != nil {
			return nil, err
		}
		cc.stages = append(cc.stages, bq)
	}
	for _, q := range butterworthQTable(order) {
		bq, err := NewLowpass(channels, sampleRate, freq, q)
		if err != nil {
			return nil, err
		}
		cc.stages = append(cc.stages, bq)
	}
	return cc, nil
}

// NewButterworthHighpass is the highpass counterpart of NewButterworthLowpass.
func NewButterworthHighpass(channels int, sampleRate, freq float64, order int) (*Cascade, error) {
	if order < 1 {
		return nil, dsperrors.Newf("butterworth highpass: order must be >= 1, got %d", order).
			Category(dsperrors.CategoryConfig).Build()
	}
	cc := &Cascade{}
	if order%2 == 1 {
		bq, err := NewHighpassFO(channels, sampleRate, freq)
		if err != nil {
			return nil, err
		}
		cc.stages = append(cc.stages, bq)
	}
	for _, q := range butterworthQTable(order) {
		bq, err := NewHighpass(channels, sampleRate, freq, q)
		if err != nil {
			return nil, err
		}
		cc.stages = append(cc.stages, bq)
	}
	return cc, nil
}

// NewLinkwitzRileyLowpass builds a Linkwitz-Riley crossover lowpass: two
// cascaded Butterworth lowpass filters of order/2 each, giving unity
// summed response with its complementary highpass at the crossover point.
// order must be even.
func NewLinkwitzRileyLowpass(channels int, sampleRate, freq float64, order int) (*Cascade, error) {
	if order < 2 || order%2 != 0 {
		return nil, dsperrors.Newf("linkwitz-riley lowpass: order must be even and >= 2, got %d", order).
			Category(dsperrors.CategoryConfig).Build()
	}
	cc := &Cascade{}
	for i := 0; i < 2; i++ {
		half, err := NewButterworthLowpass(channels, sampleRate, freq, order/2)
		if err != nil {
			return nil, err
		}
		cc.stages = append(cc.stages, half.stages...)
	}
	return cc, nil
}

// NewLinkwitzRileyHighpass is the highpass counterpart of
// NewLinkwitzRileyLowpass.
func NewLinkwitzRileyHighpass(channels int, sampleRate, freq float64, order int) (*Cascade, error) {
	if order < 2 || order%2 != 0 {
		return nil, dsperrors.Newf("linkwitz-riley highpass: order must be even and >= 2, got %d", order).
			Category(dsperrors.CategoryConfig).Build()
	}
	cc := &Cascade{}
	for i := 0; i < 2; i++ {
		half, err := NewButterworthHighpass(channels, sampleRate, freq, order/2)
		if err != nil {
			return nil, err
		}
		cc.stages = append(cc.stages, half.stages...)
	}
	return cc, nil
}

// NewTilt builds a gentle spectral tilt: a pair of second-order shelving
// sections with slope 1 (low shelf down, high shelf up, or vice versa)
// centered at 1kHz, giving
// gainDB of total tilt across the audible band.
func NewTilt(channels int, sampleRate, gainDB float64) (*Cascade, error) {
	const centerFreq = 1000.0
	low, err := NewLowshelf(channels, sampleRate, centerFreq, -gainDB/2, ShelfSlope{Slope: 1})
	if err != nil {
		return nil, err
	}
	high, err := NewHighshelf(channels, sampleRate, centerFreq, gainDB/2, ShelfSlope{Slope: 1})
	if err != nil {
		return nil, err
	}
	return &Cascade{stages: []*Biquad{low, high}}, nil
}

// FivePointPeqBand describes one band of a FivePointPeq.
type FivePointPeqBand struct {
	Freq   float64
	GainDB float64
	Q      float64
}

// NewFivePointPeq cascades exactly five peaking sections, the fixed-size
// graphic/parametric hybrid EQ from spec.md §4.1.
func NewFivePointPeq(channels int, sampleRate float64, bands [5]FivePointPeqBand) (*Cascade, error) {
	cc := &Cascade{}
	for i, b := range bands {
		bq, err := NewPeaking(channels, sampleRate, b.Freq, b.GainDB, b.Q, 0)
		if err != nil {
			return nil, fmt.Errorf("five point peq band %d: %w", i, err)
		}
		cc.stages = append(cc.stages, bq)
	}
	return cc, nil
}

// GraphicEqualizerBand describes one fixed-center-frequency band of a
// GraphicEqualizer.
type GraphicEqualizerBand struct {
	Freq   float64
	GainDB float64
}

// NewGraphicEqualizer cascades one peaking section per band with a fixed
// one-octave bandwidth, whatever the spacing of the given bands, the
// classic ISO-center-frequency graphic EQ (spec.md §4.1).
func NewGraphicEqualizer(channels int, sampleRate float64, bands []GraphicEqualizerBand) (*Cascade, error) {
	if len(bands) == 0 {
		return nil, dsperrors.Newf("graphic equalizer: at least one band is required").
			Category(dsperrors.CategoryConfig).Build()
	}
	cc := &Cascade{}
	for i, b := range bands {
		// A Q of ~1.414 (bandwidth one octave) keeps adjacent ISO-spaced
		// bands from over-interacting while still summing close to flat
		// when all gains are zero.
		bq, err := NewPeaking(channels, sampleRate, b.Freq, b.GainDB, 0, 1.0)
		if err != nil {
			return nil, fmt.Errorf("graphic equalizer band %d (%.0f Hz): %w", i, b.Freq, err)
		}
		cc.stages = append(cc.stages, bq)
	}
	return cc, nil
}
