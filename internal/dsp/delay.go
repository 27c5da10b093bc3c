package dsp

import (
	"encoding/binary"
	"math"

	"github.com/smallnest/ringbuffer"

	dsperrors "github.com/camilladsp-go/camilladsp/internal/errors"
)

// DelayUnit is the unit a configured delay value is expressed in
// (spec.md §4.1 Delay).
type DelayUnit int

const (
	DelayUnitSamples DelayUnit = iota
	DelayUnitMilliseconds
	DelayUnitMillimeters
)

// speedOfSoundMPerS is the constant used to convert a millimeter delay
// (subwoofer/driver physical offset) into a time delay.
const speedOfSoundMPerS = 343.0

// ResolveDelaySamples converts a configured delay value and unit into a
// (possibly fractional) number of samples at sampleRate. Negative delays
// are rejected — a negative delay would require future samples, which the
// pipeline cannot provide (spec.md §4.1 edge case).
func ResolveDelaySamples(value float64, unit DelayUnit, sampleRate float64) (float64, error) {
	if value < 0 {
		return 0, dsperrors.Newf("delay: negative delay %g is not supported", value).
			Category(dsperrors.CategoryConfig).Build()
	}
	switch unit {
	case DelayUnitSamples:
		return value, nil
	case DelayUnitMilliseconds:
		return value / 1000.0 * sampleRate, nil
	case DelayUnitMillimeters:
		seconds := (value / 1000.0) / speedOfSoundMPerS
		return seconds * sampleRate, nil
	default:
		return 0, dsperrors.Newf("delay: unknown unit %d", unit).
			Category(dsperrors.CategoryConfig).Build()
	}
}

// Delay implements an integer-sample ring-buffer delay, optionally cascaded
// with a sub-sample all-pass section for the fractional remainder
// (spec.md §4.1 Delay: "sub-sample precision via an all-pass filter"). The
// integer delay is a per-channel FIFO of exactly `size` samples: writing a
// new sample and reading the oldest one keeps the FIFO's occupancy
// constant, which is exactly the byte-queue semantics
// github.com/smallnest/ringbuffer provides — each channel's delay line is
// backed by one, with float64 samples serialized to its 8-byte wire form.
type Delay struct {
	rings    []*ringbuffer.RingBuffer
	size     int // FIFO depth (samples) per channel
	channels int
	frac     *Biquad
}

// NewDelay builds a Delay for the given number of channels, delaying by
// delaySamples (which may be fractional — the integer part becomes ring
// buffer length, the fractional remainder an all-pass phase shift).
func NewDelay(channels int, delaySamples float64) (*Delay, error) {
	if delaySamples < 0 {
		return nil, dsperrors.Newf("delay: negative delay %g samples", delaySamples).
			Category(dsperrors.CategoryConfig).Build()
	}
	whole := int(math.Floor(delaySamples))
	fracPart := delaySamples - float64(whole)
	size := whole

	d := &Delay{
		rings:    make([]*ringbuffer.RingBuffer, channels),
		size:     size,
		channels: channels,
	}
	for ch := 0; ch < channels; ch++ {
		d.rings[ch] = newZeroedSampleRing(size)
	}

	if fracPart > 1e-9 {
		// A first-order all-pass with coefficient derived from the
		// Thiran-style approximation for a fractional-sample delay d in
		// (0,1): a = (1-d)/(1+d).
		a := (1 - fracPart) / (1 + fracPart)
		bq, err := NewAllpassFO(channels, a)
		if err != nil {
			return nil, err
		}
		d.frac = bq
	}
	return d, nil
}

// newZeroedSampleRing returns a byte ring buffer pre-loaded with `size`
// zero-valued float64 samples, so the FIFO is immediately ready to read
// from on the first call to ProcessChannel.
func newZeroedSampleRing(size int) *ringbuffer.RingBuffer {
	rb := ringbuffer.New(size * 8)
	zero := make([]byte, 8)
	for i := 0; i < size; i++ {
		_, _ = rb.Write(zero)
	}
	return rb
}

func (d *Delay) ProcessChannel(ch int, samples []float64) {
	if d.size > 0 {
		rb := d.rings[ch]
		var word [8]byte
		for i, x := range samples {
			_, _ = rb.Read(word[:])
			out := math.Float64frombits(binary.LittleEndian.Uint64(word[:]))
			binary.LittleEndian.PutUint64(word[:], math.Float64bits(x))
			_, _ = rb.Write(word[:])
			samples[i] = out
		}
	}
	if d.frac != nil {
		d.frac.ProcessChannel(ch, samples)
	}
}

// Reset clears the delay line's history and any fractional all-pass state.
func (d *Delay) Reset() {
	for ch := range d.rings {
		d.rings[ch] = newZeroedSampleRing(d.size)
	}
	if d.frac != nil {
		d.frac.Reset()
	}
}
