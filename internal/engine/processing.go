package engine

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/camilladsp-go/camilladsp/internal/audio"
	"github.com/camilladsp-go/camilladsp/internal/control"
	"github.com/camilladsp-go/camilladsp/internal/logging"
	"github.com/camilladsp-go/camilladsp/internal/pipeline"
)

// ProcessingConfig bundles a Processing task's dependencies.
type ProcessingConfig struct {
	In     *audio.Queue // q_cp
	Out    *audio.Queue // q_pp
	Status *control.StatusChannel
}

// Processing is the processing stage thread. Its pipeline can be hot-
// swapped between chunks by calling SetPipeline from the Supervisor
// (spec.md §4.4 Processing task step 3); the swap is an atomic pointer
// store so the run loop never observes a half-updated tree.
type Processing struct {
	cfg      ProcessingConfig
	logger   *slog.Logger
	pipeline atomic.Pointer[pipeline.Pipeline]

	levelsMu sync.Mutex

	// Current-chunk snapshot (spec.md §6 GetCaptureSignalPeak/RMS,
	// GetPlaybackSignalPeak/RMS).
	capturePeak   []float64
	captureRMS    []float64
	captureRange  float64
	playbackPeak  []float64
	playbackRMS   []float64
	playbackRange float64

	// Running max since the last read of the *SinceLast accessor (spec.md
	// §6 "SinceLast" commands), reset to zero each time it is read.
	capturePeakSinceLast  []float64
	captureRMSSinceLast   []float64
	playbackPeakSinceLast []float64
	playbackRMSSinceLast  []float64

	// Running max since start or since the last ResetSignalPeaksSinceStart
	// (spec.md §6 GetSignalPeaksSinceStart/ResetSignalPeaksSinceStart).
	capturePeakSinceStart  []float64
	playbackPeakSinceStart []float64

	clipped atomic.Int64
}

// NewProcessing builds a Processing task from cfg. An initial pipeline
// must be installed with SetPipeline before Run is called.
func NewProcessing(cfg ProcessingConfig) *Processing {
	return &Processing{cfg: cfg, logger: logging.ForService("processing")}
}

// SetPipeline installs p as the active pipeline, taking effect on the
// next chunk (spec.md §4.4 "swap in the new instance tree atomically
// between chunks").
func (p *Processing) SetPipeline(pl *pipeline.Pipeline) {
	p.pipeline.Store(pl)
}

// Run executes the processing loop until ctx is cancelled or the input
// queue closes.
func (p *Processing) Run(ctx context.Context) {
	p.cfg.Status.Send(control.Event{Kind: control.EventStarted, At: time.Now()})

	for {
		chunk, err := p.cfg.In.Receive(ctx, 0)
		if err != nil {
			p.cfg.Status.Send(control.Event{Kind: control.EventStopped, Reason: control.StopDone, At: time.Now()})
			return
		}

		// Capture-side levels reflect the chunk as it arrived from q_cp,
		// before any mixer step reallocates its channel layout.
		chunk.ComputeMinMax()
		p.trackCaptureLevels(chunk)

		if pl := p.pipeline.Load(); pl != nil {
			pl.Run(chunk)
		}

		// Playback-side levels reflect the chunk as it will reach q_pp,
		// after the pipeline's filters/mixers/processors have run.
		chunk.ComputeMinMax()
		p.clipped.Add(int64(chunk.Clipped))
		p.trackPlaybackLevels(chunk)

		if err := p.cfg.Out.Send(ctx, chunk); err != nil {
			return
		}
	}
}

func (p *Processing) trackCaptureLevels(chunk *audio.Chunk) {
	p.levelsMu.Lock()
	defer p.levelsMu.Unlock()
	if len(p.capturePeak) != chunk.Channels {
		p.capturePeak = make([]float64, chunk.Channels)
		p.captureRMS = make([]float64, chunk.Channels)
		p.capturePeakSinceLast = make([]float64, chunk.Channels)
		p.captureRMSSinceLast = make([]float64, chunk.Channels)
		p.capturePeakSinceStart = make([]float64, chunk.Channels)
	}
	var maxRange float64
	for ch := 0; ch < chunk.Channels; ch++ {
		peak := channelPeak(chunk, ch)
		rms := channelRMS(chunk, ch)
		p.capturePeak[ch] = peak
		p.captureRMS[ch] = rms
		if peak > p.capturePeakSinceLast[ch] {
			p.capturePeakSinceLast[ch] = peak
		}
		if rms > p.captureRMSSinceLast[ch] {
			p.captureRMSSinceLast[ch] = rms
		}
		if peak > p.capturePeakSinceStart[ch] {
			p.capturePeakSinceStart[ch] = peak
		}
		if rng := float64(chunk.SignalRange(ch)); rng > maxRange {
			maxRange = rng
		}
	}
	p.captureRange = maxRange
}

func (p *Processing) trackPlaybackLevels(chunk *audio.Chunk) {
	p.levelsMu.Lock()
	defer p.levelsMu.Unlock()
	if len(p.playbackPeak) != chunk.Channels {
		p.playbackPeak = make([]float64, chunk.Channels)
		p.playbackRMS = make([]float64, chunk.Channels)
		p.playbackPeakSinceLast = make([]float64, chunk.Channels)
		p.playbackRMSSinceLast = make([]float64, chunk.Channels)
		p.playbackPeakSinceStart = make([]float64, chunk.Channels)
	}
	var maxRange float64
	for ch := 0; ch < chunk.Channels; ch++ {
		peak := channelPeak(chunk, ch)
		rms := channelRMS(chunk, ch)
		p.playbackPeak[ch] = peak
		p.playbackRMS[ch] = rms
		if peak > p.playbackPeakSinceLast[ch] {
			p.playbackPeakSinceLast[ch] = peak
		}
		if rms > p.playbackRMSSinceLast[ch] {
			p.playbackRMSSinceLast[ch] = rms
		}
		if peak > p.playbackPeakSinceStart[ch] {
			p.playbackPeakSinceStart[ch] = peak
		}
		if rng := float64(chunk.SignalRange(ch)); rng > maxRange {
			maxRange = rng
		}
	}
	p.playbackRange = maxRange
}

// channelPeak returns a channel's peak absolute magnitude from the most
// recent ComputeMinMax call.
func channelPeak(c *audio.Chunk, ch int) float64 {
	peak := float64(c.MaxVal[ch])
	if neg := -float64(c.MinVal[ch]); neg > peak {
		peak = neg
	}
	return peak
}

// channelRMS computes a channel's root-mean-square level over its valid
// frames (spec.md §4.4 "per-channel RMS/peak").
func channelRMS(c *audio.Chunk, ch int) float64 {
	n := c.ValidFrames
	if n == 0 {
		n = c.Frames
	}
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		v := float64(c.Data[ch][i])
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

func atIndex(s []float64, ch int) float64 {
	if ch < 0 || ch >= len(s) {
		return 0
	}
	return s[ch]
}

// CaptureSignalPeak returns channel ch's peak magnitude over the most
// recently processed chunk (spec.md §6 GetCaptureSignalPeak).
func (p *Processing) CaptureSignalPeak(ch int) float64 {
	p.levelsMu.Lock()
	defer p.levelsMu.Unlock()
	return atIndex(p.capturePeak, ch)
}

// CaptureSignalRMS returns channel ch's RMS level over the most recently
// processed chunk (spec.md §6 GetCaptureSignalRMS).
func (p *Processing) CaptureSignalRMS(ch int) float64 {
	p.levelsMu.Lock()
	defer p.levelsMu.Unlock()
	return atIndex(p.captureRMS, ch)
}

// CaptureSignalPeakSinceLast returns and resets channel ch's running max
// capture peak (spec.md §6 GetCaptureSignalPeakSinceLast).
func (p *Processing) CaptureSignalPeakSinceLast(ch int) float64 {
	p.levelsMu.Lock()
	defer p.levelsMu.Unlock()
	v := atIndex(p.capturePeakSinceLast, ch)
	if ch >= 0 && ch < len(p.capturePeakSinceLast) {
		p.capturePeakSinceLast[ch] = 0
	}
	return v
}

// CaptureSignalRMSSinceLast returns and resets channel ch's running max
// capture RMS (spec.md §6 GetCaptureSignalRMSSinceLast).
func (p *Processing) CaptureSignalRMSSinceLast(ch int) float64 {
	p.levelsMu.Lock()
	defer p.levelsMu.Unlock()
	v := atIndex(p.captureRMSSinceLast, ch)
	if ch >= 0 && ch < len(p.captureRMSSinceLast) {
		p.captureRMSSinceLast[ch] = 0
	}
	return v
}

// PlaybackSignalPeak returns channel ch's peak magnitude over the most
// recently processed chunk (spec.md §6 GetPlaybackSignalPeak).
func (p *Processing) PlaybackSignalPeak(ch int) float64 {
	p.levelsMu.Lock()
	defer p.levelsMu.Unlock()
	return atIndex(p.playbackPeak, ch)
}

// PlaybackSignalRMS returns channel ch's RMS level over the most recently
// processed chunk (spec.md §6 GetPlaybackSignalRMS).
func (p *Processing) PlaybackSignalRMS(ch int) float64 {
	p.levelsMu.Lock()
	defer p.levelsMu.Unlock()
	return atIndex(p.playbackRMS, ch)
}

// PlaybackSignalPeakSinceLast returns and resets channel ch's running max
// playback peak (spec.md §6 GetPlaybackSignalPeakSinceLast).
func (p *Processing) PlaybackSignalPeakSinceLast(ch int) float64 {
	p.levelsMu.Lock()
	defer p.levelsMu.Unlock()
	v := atIndex(p.playbackPeakSinceLast, ch)
	if ch >= 0 && ch < len(p.playbackPeakSinceLast) {
		p.playbackPeakSinceLast[ch] = 0
	}
	return v
}

// PlaybackSignalRMSSinceLast returns and resets channel ch's running max
// playback RMS (spec.md §6 GetPlaybackSignalRMSSinceLast).
func (p *Processing) PlaybackSignalRMSSinceLast(ch int) float64 {
	p.levelsMu.Lock()
	defer p.levelsMu.Unlock()
	v := atIndex(p.playbackRMSSinceLast, ch)
	if ch >= 0 && ch < len(p.playbackRMSSinceLast) {
		p.playbackRMSSinceLast[ch] = 0
	}
	return v
}

// SignalRange returns the largest per-channel max-min spread observed in
// the most recently processed chunk, across all channels (spec.md §9
// "signal range" — distinct from peak/RMS, tracks the chunk's dynamic
// span rather than its magnitude).
func (p *Processing) SignalRange() float64 {
	p.levelsMu.Lock()
	defer p.levelsMu.Unlock()
	if p.playbackRange > p.captureRange {
		return p.playbackRange
	}
	return p.captureRange
}

// PeaksSinceStart returns the running max capture/playback peak per
// channel since start or the last ResetSignalPeaksSinceStart (spec.md §6
// GetSignalPeaksSinceStart).
func (p *Processing) PeaksSinceStart() (capture, playback []float64) {
	p.levelsMu.Lock()
	defer p.levelsMu.Unlock()
	return append([]float64(nil), p.capturePeakSinceStart...), append([]float64(nil), p.playbackPeakSinceStart...)
}

// ResetPeaksSinceStart zeroes the since-start peak trackers (spec.md §6
// ResetSignalPeaksSinceStart).
func (p *Processing) ResetPeaksSinceStart() {
	p.levelsMu.Lock()
	defer p.levelsMu.Unlock()
	for i := range p.capturePeakSinceStart {
		p.capturePeakSinceStart[i] = 0
	}
	for i := range p.playbackPeakSinceStart {
		p.playbackPeakSinceStart[i] = 0
	}
}

// ClippedSamples returns the cumulative count of out-of-range samples
// seen since the last ResetClippedSamples (spec.md §6 GetClippedSamples).
func (p *Processing) ClippedSamples() int { return int(p.clipped.Load()) }

// ResetClippedSamples zeroes the clip counter.
func (p *Processing) ResetClippedSamples() { p.clipped.Store(0) }

// Levels returns the most recently observed per-channel capture/playback
// peak and RMS (spec.md §4.5 "aggregate level meters", §6 GetSignalLevels).
func (p *Processing) Levels() control.SignalLevels {
	p.levelsMu.Lock()
	defer p.levelsMu.Unlock()
	return control.SignalLevels{
		CapturePeak:  append([]float64(nil), p.capturePeak...),
		CaptureRMS:   append([]float64(nil), p.captureRMS...),
		PlaybackPeak: append([]float64(nil), p.playbackPeak...),
		PlaybackRMS:  append([]float64(nil), p.playbackRMS...),
		At:           time.Now(),
	}
}

// LevelsSinceLast returns, then resets, the running max per-channel
// capture/playback peak and RMS observed since the previous call (spec.md
// §6 GetSignalLevelsSinceLast).
func (p *Processing) LevelsSinceLast() control.SignalLevels {
	p.levelsMu.Lock()
	defer p.levelsMu.Unlock()
	levels := control.SignalLevels{
		CapturePeak:  append([]float64(nil), p.capturePeakSinceLast...),
		CaptureRMS:   append([]float64(nil), p.captureRMSSinceLast...),
		PlaybackPeak: append([]float64(nil), p.playbackPeakSinceLast...),
		PlaybackRMS:  append([]float64(nil), p.playbackRMSSinceLast...),
		At:           time.Now(),
	}
	for i := range p.capturePeakSinceLast {
		p.capturePeakSinceLast[i] = 0
		p.captureRMSSinceLast[i] = 0
	}
	for i := range p.playbackPeakSinceLast {
		p.playbackPeakSinceLast[i] = 0
		p.playbackRMSSinceLast[i] = 0
	}
	return levels
}
