package supervisor

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/camilladsp-go/camilladsp/internal/buildinfo"
	"github.com/camilladsp-go/camilladsp/internal/config"
	"github.com/camilladsp-go/camilladsp/internal/control"
	"github.com/camilladsp-go/camilladsp/internal/device"
	"github.com/camilladsp-go/camilladsp/internal/dsp"
	"github.com/camilladsp-go/camilladsp/internal/engine"
	"github.com/camilladsp-go/camilladsp/internal/logging"
)

// Config bundles a Supervisor's dependencies, gathered from the stage
// threads it coordinates.
type Config struct {
	Commands      chan control.Command
	Status        *control.StatusChannel
	Processing    *engine.Processing
	Faders        *dsp.FaderBank
	Configuration *config.Configuration
	ConfigPath    string
	Build         *buildinfo.Context

	// Registry, when non-nil, receives the Supervisor's Prometheus
	// gauges (spec.md §4.5 level meters, clip counter, rate-adjust
	// ratio). A nil Registry disables metrics recording entirely.
	Registry prometheus.Registerer
}

// Supervisor owns the configuration snapshot, the fader array, lifecycle
// state, and the rate-adjust loop (spec.md §4.5). It is the single
// goroutine that mutates all of this state; every other component reads
// it only through the Commands/Status channels or the FaderBank's own
// locking.
type Supervisor struct {
	mu      sync.RWMutex
	cfg     Config
	state   *stateMachine
	rate    *RateAdjust
	metrics *Metrics
	logger  *slog.Logger

	previousConfig *config.Configuration
	lastReloadKind ReloadKind
}

// New builds a Supervisor from cfg.
func New(cfg Config) *Supervisor {
	targetLevel := cfg.Configuration.Raw.Devices.TargetLevel
	chunksize := cfg.Configuration.Raw.Devices.Chunksize
	return &Supervisor{
		cfg:     cfg,
		state:   newStateMachine(),
		rate:    NewRateAdjust(targetLevel, chunksize),
		metrics: NewMetrics(cfg.Registry),
		logger:  logging.ForService("supervisor"),
	}
}

// Run is the Supervisor's single event loop: it multiplexes status
// events from the stage threads and control commands from the
// ControlChannel until ctx is cancelled (spec.md §4.5 "Receives three
// classes of events").
func (s *Supervisor) Run(ctx context.Context) {
	s.mu.Lock()
	s.state.onConfigApply()
	s.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.cfg.Status.C():
			s.handleEvent(ev)
		case cmd := <-s.cfg.Commands:
			s.handleCommand(cmd)
		}
	}
}

func (s *Supervisor) handleEvent(ev control.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch ev.Kind {
	case control.EventStarted:
		s.state.onAllStagesRunning()
	case control.EventSilent:
		s.state.onSilent()
	case control.EventStopped:
		s.state.onStop(ev.Reason)
	case control.EventFormatChange:
		s.state.onStop(control.StopCaptureFormatChange)
	case control.EventPlaybackBufferLevel:
		r := s.rate.Update(ev.BufferLevel)
		s.metrics.RecordRateAdjust(r)
		s.logger.Debug("rate-adjust", "buffer_level", ev.BufferLevel, "ratio", r)
	case control.EventUnderrun, control.EventOverrun:
		s.logger.Warn("stage reported buffer event", "kind", ev.Kind)
	}
}

func (s *Supervisor) handleCommand(cmd control.Command) {
	reply := control.Reply{}
	defer func() {
		if cmd.Reply != nil {
			cmd.Reply <- reply
		}
	}()

	s.mu.Lock()
	defer s.mu.Unlock()

	switch cmd.Kind {
	case control.GetVersion:
		reply.Version = s.cfg.Build.GetVersion()
	case control.GetState:
		reply.State = s.state.state.String()
	case control.GetStopReason:
		reply.StopReason = s.state.stopReason.String()
	case control.GetCaptureRate:
		reply.CaptureRate = s.cfg.Configuration.Raw.Devices.Samplerate
	case control.GetClippedSamples:
		reply.Clipped = s.cfg.Processing.ClippedSamples()
		s.metrics.RecordClipped(reply.Clipped)
	case control.ResetClippedSamples:
		s.cfg.Processing.ResetClippedSamples()
	case control.GetSignalLevels:
		reply.Levels = s.cfg.Processing.Levels()
		s.metrics.RecordLevels(reply.Levels.PlaybackPeak)
	case control.GetSignalLevelsSince, control.GetSignalLevelsSinceLast:
		// Only a "since last read" series is tracked; GetSignalLevelsSince's
		// start-time argument isn't carried on Command, so it degrades to
		// the same running-max-since-last-read snapshot.
		reply.Levels = s.cfg.Processing.LevelsSinceLast()
	case control.GetSignalRange:
		reply.SignalRange = s.cfg.Processing.SignalRange()
	case control.GetCaptureSignalPeak:
		reply.Peak = s.cfg.Processing.CaptureSignalPeak(cmd.Channel)
	case control.GetCaptureSignalRMS:
		reply.RMS = s.cfg.Processing.CaptureSignalRMS(cmd.Channel)
	case control.GetCaptureSignalPeakSinceLast:
		reply.Peak = s.cfg.Processing.CaptureSignalPeakSinceLast(cmd.Channel)
	case control.GetCaptureSignalRMSSinceLast:
		reply.RMS = s.cfg.Processing.CaptureSignalRMSSinceLast(cmd.Channel)
	case control.GetPlaybackSignalPeak:
		reply.Peak = s.cfg.Processing.PlaybackSignalPeak(cmd.Channel)
	case control.GetPlaybackSignalRMS:
		reply.RMS = s.cfg.Processing.PlaybackSignalRMS(cmd.Channel)
	case control.GetPlaybackSignalPeakSinceLast:
		reply.Peak = s.cfg.Processing.PlaybackSignalPeakSinceLast(cmd.Channel)
	case control.GetPlaybackSignalRMSSinceLast:
		reply.RMS = s.cfg.Processing.PlaybackSignalRMSSinceLast(cmd.Channel)
	case control.GetSignalPeaksSinceStart:
		capturePeaks, playbackPeaks := s.cfg.Processing.PeaksSinceStart()
		reply.Levels = control.SignalLevels{CapturePeak: capturePeaks, PlaybackPeak: playbackPeaks}
	case control.ResetSignalPeaksSinceStart:
		s.cfg.Processing.ResetPeaksSinceStart()
	case control.GetBufferLevel:
		reply.BufferLevel = s.rate.BufferLevel()
	case control.GetProcessingLoad:
		reply.ProcessingLoad = processingLoad()
	case control.GetRateAdjust:
		reply.RateAdjust = s.rate.Ratio()
	case control.GetVolume:
		reply.VolumeDB = s.cfg.Faders.Fader(dsp.FaderMain).GainDB()
	case control.SetVolume:
		s.cfg.Faders.Fader(dsp.FaderMain).SetGain(cmd.GainDB, cmd.RampMS, chunkDurationMS(s.cfg.Configuration))
	case control.AdjustVolume:
		f := s.cfg.Faders.Fader(dsp.FaderMain)
		f.SetGain(f.GainDB()+cmd.GainDB, cmd.RampMS, chunkDurationMS(s.cfg.Configuration))
	case control.GetMute:
		reply.Muted = s.cfg.Faders.Fader(dsp.FaderMain).Muted()
	case control.SetMute:
		s.cfg.Faders.Fader(dsp.FaderMain).SetMute(cmd.Mute)
	case control.ToggleMute:
		s.cfg.Faders.Fader(dsp.FaderMain).ToggleMute()
	case control.GetFaderVolume:
		reply.VolumeDB = s.cfg.Faders.Fader(cmd.Fader).GainDB()
	case control.SetFaderVolume:
		s.cfg.Faders.Fader(cmd.Fader).SetGain(cmd.GainDB, cmd.RampMS, chunkDurationMS(s.cfg.Configuration))
	case control.AdjustFaderVolume:
		f := s.cfg.Faders.Fader(cmd.Fader)
		f.SetGain(f.GainDB()+cmd.GainDB, cmd.RampMS, chunkDurationMS(s.cfg.Configuration))
	case control.GetFaderMute:
		reply.Muted = s.cfg.Faders.Fader(cmd.Fader).Muted()
	case control.SetFaderMute:
		s.cfg.Faders.Fader(cmd.Fader).SetMute(cmd.Mute)
	case control.ToggleFaderMute:
		s.cfg.Faders.Fader(cmd.Fader).ToggleMute()
	case control.GetFaders:
		names := []dsp.FaderName{dsp.FaderMain, dsp.FaderAux1, dsp.FaderAux2, dsp.FaderAux3, dsp.FaderAux4}
		for i, n := range names {
			f := s.cfg.Faders.Fader(n)
			reply.Faders[i] = control.FaderStatus{Name: n, GainDB: f.GainDB(), Muted: f.Muted()}
		}
	case control.GetConfig:
		doc, err := yaml.Marshal(s.cfg.Configuration.Raw)
		if err != nil {
			reply.Err = err
		} else {
			reply.ConfigYAML = doc
		}
	case control.GetConfigJson:
		doc, err := json.Marshal(s.cfg.Configuration.Raw)
		if err != nil {
			reply.Err = err
		} else {
			reply.ConfigJSON = doc
		}
	case control.GetConfigTitle:
		reply.ConfigTitle = s.cfg.Configuration.Title
	case control.GetConfigDescription:
		reply.ConfigDesc = s.cfg.Configuration.Description
	case control.GetConfigFilePath:
		reply.ConfigPath = s.cfg.ConfigPath
	case control.SetConfigFilePath:
		s.cfg.ConfigPath = cmd.Path
	case control.GetPreviousConfig:
		if s.previousConfig != nil {
			reply.ConfigTitle = s.previousConfig.Title
		}
	case control.Reload, control.SetConfig, control.SetConfigJson:
		if err := s.reload(cmd); err != nil {
			reply.Err = err
		}
	case control.ReadConfig:
		reply.Validation = validateConfigDoc(cmd.ConfigYAML)
	case control.ReadConfigFile:
		doc, err := os.ReadFile(cmd.Path)
		if err != nil {
			result := buildinfo.NewValidationResult()
			result.AddError(err.Error())
			reply.Validation = result
		} else {
			reply.Validation = validateConfigDoc(doc)
		}
	case control.ValidateConfig:
		reply.Validation = validateConfigDoc(cmd.ConfigYAML)
	case control.GetAvailableCaptureDevices:
		names, err := device.EnumerateCaptureDevices(cmd.Backend)
		if err != nil {
			reply.Err = err
		} else {
			reply.Devices = names
		}
	case control.GetAvailablePlaybackDevices:
		names, err := device.EnumeratePlaybackDevices(cmd.Backend)
		if err != nil {
			reply.Err = err
		} else {
			reply.Devices = names
		}
	case control.Stop:
		s.state.onStop(control.StopDone)
	case control.Exit:
		s.state.onStop(control.StopDone)
	}
}

// reload validates the incoming configuration and, on success, decides a
// hot swap vs. full restart (spec.md §4.5 "Reload"). The actual stage
// teardown/rebuild is driven by the caller that owns the stage
// goroutines (cmd/camilladsp), which reads the recorded ReloadKind via
// LastReloadKind once the command's reply arrives; Supervisor itself only
// owns the snapshot and state transition.
func (s *Supervisor) reload(cmd control.Command) error {
	raw, err := validateYAML(cmd.ConfigYAML)
	if err != nil {
		return err
	}
	next, err := config.Validate(raw)
	if err != nil {
		return err
	}

	s.previousConfig = s.cfg.Configuration
	s.lastReloadKind = ClassifyReload(s.previousConfig, next)
	s.cfg.Configuration = next
	s.state.onConfigApply()
	return nil
}

// LastReloadKind reports whether the most recently applied Reload/SetConfig
// command required a full stage restart or only a pipeline hot swap
// (spec.md §4.5 "Reload"). The caller that owns the stage goroutines
// (cmd/camilladsp) reads this after a reload command completes.
func (s *Supervisor) LastReloadKind() ReloadKind {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastReloadKind
}

// Configuration returns the currently active configuration snapshot.
func (s *Supervisor) Configuration() *config.Configuration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.Configuration
}

// SetProcessing rebinds the Processing task the Supervisor dispatches
// GetSignalLevels/GetClippedSamples/etc. against, used by the stage owner
// (cmd/camilladsp) after a restart-class reload rebuilds the stage
// goroutines with a fresh Processing instance.
func (s *Supervisor) SetProcessing(p *engine.Processing) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Processing = p
}

func validateYAML(doc []byte) (*config.RawConfig, error) {
	return config.Load(doc)
}

// validateConfigDoc parses and validates doc without applying it,
// collecting any error into a ValidationResult (spec.md §6 ReadConfig,
// ReadConfigFile, ValidateConfig — all three check-only operations).
func validateConfigDoc(doc []byte) *buildinfo.ValidationResult {
	result := buildinfo.NewValidationResult()
	raw, err := validateYAML(doc)
	if err != nil {
		result.AddError(err.Error())
		return result
	}
	if _, err := config.Validate(raw); err != nil {
		result.AddError(err.Error())
	}
	return result
}

func chunkDurationMS(cfg *config.Configuration) float64 {
	sr := cfg.Raw.Devices.Samplerate
	if sr == 0 {
		return 0
	}
	return 1000.0 * float64(cfg.Raw.Devices.Chunksize) / float64(sr)
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.state
}

// Stalled marks the current state Stalled (spec.md §4.5 "capture
// produces no data for the stall window"); it takes effect only from
// Running.
func (s *Supervisor) Stalled() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.onStall()
}

// Resumed marks the current state Running after a prior Stalled/Paused.
func (s *Supervisor) Resumed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.onResume()
	s.state.onInputReturns()
}
