// Package control defines the ControlCommand and StatusEvent types that
// carry commands into, and events out of, the Supervisor (spec.md §4.6,
// §6). The engine does not implement the websocket transport that would
// normally produce/consume these values — that is out of scope — but it
// implements every command's semantics against the in-process channels
// defined here.
package control

import (
	"time"

	"github.com/camilladsp-go/camilladsp/internal/buildinfo"
	"github.com/camilladsp-go/camilladsp/internal/dsp"
)

// CommandKind names one of the commands in spec.md §6's full list.
type CommandKind int

const (
	GetVersion CommandKind = iota
	GetState
	GetStopReason
	GetCaptureRate
	GetSignalRange
	GetCaptureSignalPeak
	GetCaptureSignalRMS
	GetCaptureSignalPeakSinceLast
	GetCaptureSignalRMSSinceLast
	GetPlaybackSignalPeak
	GetPlaybackSignalRMS
	GetPlaybackSignalPeakSinceLast
	GetPlaybackSignalRMSSinceLast
	GetSignalLevels
	GetSignalLevelsSince
	GetSignalLevelsSinceLast
	GetSignalPeaksSinceStart
	ResetSignalPeaksSinceStart
	GetRateAdjust
	GetBufferLevel
	GetClippedSamples
	ResetClippedSamples
	GetProcessingLoad
	GetVolume
	SetVolume
	AdjustVolume
	GetMute
	SetMute
	ToggleMute
	GetFaderVolume
	SetFaderVolume
	AdjustFaderVolume
	GetFaderMute
	SetFaderMute
	ToggleFaderMute
	GetFaders
	GetConfig
	GetConfigJson
	GetConfigTitle
	GetConfigDescription
	GetConfigFilePath
	GetPreviousConfig
	SetConfigFilePath
	SetConfig
	SetConfigJson
	Reload
	ReadConfig
	ReadConfigFile
	ValidateConfig
	GetAvailableCaptureDevices
	GetAvailablePlaybackDevices
	Stop
	Exit
)

// Command is one value carried on the ControlChannel. Fields outside the
// ones relevant to Kind are left zero; only the Supervisor's dispatcher
// interprets which fields apply, keeping this a single closed sum type
// rather than one Go type per command.
type Command struct {
	Kind CommandKind

	// SetVolume / AdjustVolume / SetFaderVolume / AdjustFaderVolume
	Fader   dsp.FaderName
	GainDB  float64
	RampMS  float64

	// SetMute / SetFaderMute
	Mute bool

	// SetConfig / SetConfigJson / ValidateConfig / ReadConfig
	ConfigYAML []byte
	ConfigJSON []byte

	// SetConfigFilePath / ReadConfigFile
	Path string

	// GetAvailable{Capture,Playback}Devices
	Backend string

	// GetSignalRange / GetCaptureSignalPeak[SinceLast] / GetCaptureSignalRMS[SinceLast]
	// / GetPlaybackSignalPeak[SinceLast] / GetPlaybackSignalRMS[SinceLast]
	Channel int

	// Reply receives the command's result. The Supervisor always sends
	// exactly one Reply before moving to the next command.
	Reply chan Reply
}

// Reply is the result of executing a Command.
type Reply struct {
	Err error

	Version      string
	State        string
	StopReason   string
	CaptureRate  int
	SignalRange  float64
	Peak         float64
	RMS          float64
	Levels       SignalLevels
	RateAdjust   float64
	BufferLevel  int
	Clipped      int
	ProcessingLoad float64
	VolumeDB     float64
	Muted        bool
	Faders       [5]FaderStatus
	ConfigYAML   []byte
	ConfigJSON   []byte
	ConfigTitle  string
	ConfigDesc   string
	ConfigPath   string
	Devices      []string
	Validation   *buildinfo.ValidationResult
}

// FaderStatus is one fader's current gain/mute state, as returned by
// GetFaders (spec.md §6).
type FaderStatus struct {
	Name   dsp.FaderName
	GainDB float64
	Muted  bool
}

// SignalLevels is the per-channel peak/RMS snapshot returned by
// GetSignalLevels (spec.md §4.5 "Level(...)").
type SignalLevels struct {
	CapturePeak  []float64
	CaptureRMS   []float64
	PlaybackPeak []float64
	PlaybackRMS  []float64
	At           time.Time
}

// EventKind names one of the status events a stage thread emits
// (spec.md §4.5 "1. Status from stages").
type EventKind int

const (
	EventStarted EventKind = iota
	EventStopped
	EventUnderrun
	EventOverrun
	EventFormatChange
	EventSilent
	EventLevel
	EventPlaybackBufferLevel
)

// StopReason is carried by an EventStopped event (spec.md §4.5).
type StopReason int

const (
	StopNone StopReason = iota
	StopDone
	StopCaptureError
	StopPlaybackError
	StopCaptureFormatChange
	StopPlaybackFormatChange
)

func (r StopReason) String() string {
	switch r {
	case StopDone:
		return "Done"
	case StopCaptureError:
		return "CaptureError"
	case StopPlaybackError:
		return "PlaybackError"
	case StopCaptureFormatChange:
		return "CaptureFormatChange"
	case StopPlaybackFormatChange:
		return "PlaybackFormatChange"
	default:
		return "None"
	}
}

// Event is one value carried on the unbounded, drop-oldest StatusChannel
// (spec.md §4.6).
type Event struct {
	Kind   EventKind
	Reason StopReason
	NewRate int
	Levels  SignalLevels
	BufferLevel int
	At      time.Time
}

// StatusChannel is an unbounded, drop-oldest event channel: once the
// buffer is full, the oldest unread event is discarded to make room for
// the newest rather than blocking the sending stage (spec.md §4.6 "an
// unbounded, drop-oldest event channel").
type StatusChannel struct {
	ch chan Event
}

// NewStatusChannel creates a status channel with the given backing
// capacity; sends beyond capacity drop the oldest buffered event.
func NewStatusChannel(capacity int) *StatusChannel {
	return &StatusChannel{ch: make(chan Event, capacity)}
}

// Send delivers an event, dropping the oldest buffered one if full.
func (s *StatusChannel) Send(e Event) {
	for {
		select {
		case s.ch <- e:
			return
		default:
			select {
			case <-s.ch:
			default:
			}
		}
	}
}

// C exposes the receive side for the Supervisor's event loop.
func (s *StatusChannel) C() <-chan Event { return s.ch }
