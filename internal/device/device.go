// Package device defines the CaptureDevice/PlaybackDevice interfaces the
// engine consumes (spec.md §4.6) and the File/Stdin/Stdout/Null
// implementations used for file-based and headless operation. Real
// hardware backends are reached through a malgo-backed device (see
// malgo.go); ALSA/Pulse/CoreAudio/Wasapi selection itself is malgo's
// concern, not the engine's.
package device

import (
	"context"
	"time"

	"github.com/camilladsp-go/camilladsp/internal/audio"
)

// ErrorClass categorizes a device error the way the Capture/Playback
// stage threads need to react to it (spec.md §4.6).
type ErrorClass int

const (
	ErrorRetryable ErrorClass = iota
	ErrorFatal
	ErrorFormatChange
)

// DeviceError wraps a device-level error with its class and, for
// ErrorFormatChange, the device's newly negotiated sample rate.
type DeviceError struct {
	Err     error
	Class   ErrorClass
	NewRate int
}

func (e *DeviceError) Error() string { return e.Err.Error() }
func (e *DeviceError) Unwrap() error { return e.Err }

// CaptureDevice is a blocking source of float chunks (spec.md §4.6).
type CaptureDevice interface {
	// Open negotiates sample rate, channel count, and format.
	Open(ctx context.Context) error
	// ReadChunk blocks until one chunk of audio is available or ctx ends.
	ReadChunk(ctx context.Context, into *audio.Chunk) error
	// SampleRate returns the device's currently negotiated rate.
	SampleRate() int
	// Channels returns the device's channel count.
	Channels() int
	// SetRate requests the device retune its virtual clock to rate,
	// returning false if the device doesn't support clock tuning.
	SetRate(rate float64) bool
	// Close releases device resources.
	Close() error
}

// PlaybackDevice is a blocking sink for float chunks (spec.md §4.6).
type PlaybackDevice interface {
	Open(ctx context.Context) error
	WriteChunk(ctx context.Context, c *audio.Chunk) error
	// BufferLevel reports the device's remaining output buffer, in
	// frames, and the instant it was sampled — used by the rate-adjust
	// controller. ok is false if the device can't report this.
	BufferLevel() (frames int, at time.Time, ok bool)
	Channels() int
	Close() error
}
