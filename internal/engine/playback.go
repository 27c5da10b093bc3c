package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/camilladsp-go/camilladsp/internal/audio"
	"github.com/camilladsp-go/camilladsp/internal/control"
	"github.com/camilladsp-go/camilladsp/internal/device"
	"github.com/camilladsp-go/camilladsp/internal/logging"
)

// PlaybackConfig bundles a Playback task's dependencies.
type PlaybackConfig struct {
	Device       device.PlaybackDevice
	In           *audio.Queue // q_pp
	Status       *control.StatusChannel
	AdjustPeriod time.Duration
	UnderrunFatal bool
}

// Playback is the playback stage thread.
type Playback struct {
	cfg    PlaybackConfig
	logger *slog.Logger

	lastAdjustSent time.Time
	underruns      atomic.Int64
}

// NewPlayback builds a Playback task from cfg.
func NewPlayback(cfg PlaybackConfig) *Playback {
	return &Playback{cfg: cfg, logger: logging.ForService("playback")}
}

// Run executes the playback loop until ctx is cancelled or a fatal error
// occurs (spec.md §4.4 Playback task).
func (p *Playback) Run(ctx context.Context) {
	if err := p.cfg.Device.Open(ctx); err != nil {
		p.logger.Error("playback device open failed", "error", err)
		p.cfg.Status.Send(control.Event{Kind: control.EventStopped, Reason: control.StopPlaybackError, At: time.Now()})
		return
	}
	defer p.cfg.Device.Close()

	p.cfg.Status.Send(control.Event{Kind: control.EventStarted, At: time.Now()})

	for {
		chunk, err := p.cfg.In.Receive(ctx, 0)
		if err != nil {
			p.cfg.Status.Send(control.Event{Kind: control.EventStopped, Reason: control.StopDone, At: time.Now()})
			return
		}

		if err := p.cfg.Device.WriteChunk(ctx, chunk); err != nil {
			if ctx.Err() != nil {
				return
			}
			if de, ok := err.(*device.DeviceError); ok {
				switch de.Class {
				case device.ErrorFormatChange:
					p.cfg.Status.Send(control.Event{Kind: control.EventFormatChange, NewRate: de.NewRate, At: time.Now()})
					return
				case device.ErrorRetryable:
					p.underruns.Add(1)
					p.cfg.Status.Send(control.Event{Kind: control.EventUnderrun, At: time.Now()})
					if p.cfg.UnderrunFatal {
						p.cfg.Status.Send(control.Event{Kind: control.EventStopped, Reason: control.StopPlaybackError, At: time.Now()})
						return
					}
					continue
				}
			}
			p.logger.Error("playback write failed", "error", err)
			p.cfg.Status.Send(control.Event{Kind: control.EventStopped, Reason: control.StopPlaybackError, At: time.Now()})
			return
		}

		p.maybeSendBufferLevel()
	}
}

// maybeSendBufferLevel reports the device's remaining output buffer to
// the Supervisor at most once per AdjustPeriod (spec.md §4.4 step 2,
// "send a rate-adjust status to the Supervisor at most once per
// adjust_period").
func (p *Playback) maybeSendBufferLevel() {
	if time.Since(p.lastAdjustSent) < p.cfg.AdjustPeriod {
		return
	}
	frames, at, ok := p.cfg.Device.BufferLevel()
	if !ok {
		return
	}
	p.lastAdjustSent = at
	p.cfg.Status.Send(control.Event{Kind: control.EventPlaybackBufferLevel, BufferLevel: frames, At: at})
}

// Underruns returns the cumulative underrun count.
func (p *Playback) Underruns() int { return int(p.underruns.Load()) }
