// Package engine runs the three long-lived stage threads of spec.md §4.4:
// Capture, Processing, and Playback, communicating only through the
// bounded queues of internal/audio. Each stage is a straight-line
// synchronous loop; suspension happens only at device calls and queue
// operations, matching the teacher's audiocore processing-pipeline
// goroutine pattern (context.Context + cancel, sync.WaitGroup, a
// component-scoped *slog.Logger) generalized from one worker loop to
// three cooperating ones.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/camilladsp-go/camilladsp/internal/audio"
	"github.com/camilladsp-go/camilladsp/internal/control"
	"github.com/camilladsp-go/camilladsp/internal/device"
	"github.com/camilladsp-go/camilladsp/internal/logging"
)

// Resampler is satisfied by resample.AsyncSinc/AsyncPoly when the capture
// side owns the resampling step (spec.md §4.4 step 2). resample.Sync's
// fixed-block-size ProcessBlock shape doesn't fit this variable-length,
// frame-count-returning call, and the Capture task has no path that drives
// Sync.
type Resampler interface {
	ProcessChannel(ch int, in, out []float64) int
}

// CaptureConfig bundles a Capture task's dependencies.
type CaptureConfig struct {
	Device           device.CaptureDevice
	Out              *audio.Queue // q_cp
	Pool             *audio.Pool
	Status           *control.StatusChannel
	SilenceThreshold float64
	SilenceTimeout   time.Duration
	ReceiveTimeout   time.Duration

	// Resampler, when non-nil, converts each captured chunk from the
	// device's native rate to the pipeline's configured rate before it
	// reaches q_cp (spec.md §4.4 Capture task step 2, "capture-side
	// asynchronous resampler"). ResamplerPool supplies the scratch chunk
	// the device reads into at its native rate/frame count.
	Resampler     Resampler
	ResamplerPool *audio.Pool
}

// Capture is the capture stage thread.
type Capture struct {
	cfg    CaptureConfig
	logger *slog.Logger

	silentSince time.Time
	wasSilent   bool
}

// NewCapture builds a Capture task from cfg.
func NewCapture(cfg CaptureConfig) *Capture {
	return &Capture{cfg: cfg, logger: logging.ForService("capture")}
}

// Run executes the capture loop until ctx is cancelled or a fatal error
// occurs, then emits a Stopped status event and returns (spec.md §4.4
// Capture task).
func (c *Capture) Run(ctx context.Context) {
	if err := c.cfg.Device.Open(ctx); err != nil {
		c.logger.Error("capture device open failed", "error", err)
		c.cfg.Status.Send(control.Event{Kind: control.EventStopped, Reason: control.StopCaptureError, At: time.Now()})
		return
	}
	defer c.cfg.Device.Close()

	c.cfg.Status.Send(control.Event{Kind: control.EventStarted, At: time.Now()})

	for {
		select {
		case <-ctx.Done():
			c.cfg.Status.Send(control.Event{Kind: control.EventStopped, Reason: control.StopDone, At: time.Now()})
			return
		default:
		}

		readInto := c.cfg.Pool.Get()
		if c.cfg.Resampler != nil {
			readInto = c.cfg.ResamplerPool.Get()
		}
		if err := c.cfg.Device.ReadChunk(ctx, readInto); err != nil {
			if ctx.Err() != nil {
				return
			}
			if de, ok := err.(*device.DeviceError); ok {
				switch de.Class {
				case device.ErrorFormatChange:
					c.cfg.Status.Send(control.Event{Kind: control.EventFormatChange, NewRate: de.NewRate, At: time.Now()})
					return
				case device.ErrorRetryable:
					c.logger.Warn("capture read retryable error", "error", err)
					time.Sleep(10 * time.Millisecond)
					continue
				}
			}
			c.logger.Error("capture read failed", "error", err)
			c.cfg.Status.Send(control.Event{Kind: control.EventStopped, Reason: control.StopCaptureError, At: time.Now()})
			return
		}

		chunk := readInto
		if c.cfg.Resampler != nil {
			chunk = c.cfg.Pool.Get()
			valid := 0
			for ch := 0; ch < readInto.Channels && ch < chunk.Channels; ch++ {
				n := c.cfg.Resampler.ProcessChannel(ch, readInto.Data[ch][:readInto.ValidFrames], chunk.Data[ch])
				if n > valid {
					valid = n
				}
			}
			chunk.ValidFrames = valid
			chunk.Timestamp = readInto.Timestamp
		}

		chunk.ComputeMinMax()
		c.trackSilence(chunk)

		if err := c.cfg.Out.Send(ctx, chunk); err != nil {
			return
		}
	}
}

// trackSilence sends an EventSilent status event for every chunk once
// every channel's peak has stayed below SilenceThreshold for
// SilenceTimeout, which moves the Supervisor from Running to Paused
// (spec.md §4.4 step 2). The chunk itself is not marked or modified.
func (c *Capture) trackSilence(chunk *audio.Chunk) {
	if c.cfg.SilenceThreshold <= 0 {
		return
	}
	if !chunk.IsSilent(audio.Sample(c.cfg.SilenceThreshold)) {
		c.wasSilent = false
		return
	}
	if !c.wasSilent {
		c.wasSilent = true
		c.silentSince = time.Now()
		return
	}
	if time.Since(c.silentSince) >= c.cfg.SilenceTimeout {
		c.cfg.Status.Send(control.Event{Kind: control.EventSilent, At: time.Now()})
	}
}
