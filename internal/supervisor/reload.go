package supervisor

import "github.com/camilladsp-go/camilladsp/internal/config"

// ReloadKind classifies a reload decision (spec.md §4.5 "Reload").
type ReloadKind int

const (
	// ReloadHotSwap means the device section is unchanged: only the
	// filter/mixer/processor dictionary and pipeline need rebuilding in
	// the Processing task.
	ReloadHotSwap ReloadKind = iota
	// ReloadRestart means the device section changed: all three stages
	// must be torn down and restarted, preserving fader state.
	ReloadRestart
)

// ClassifyReload compares the device sections of two configurations and
// decides whether a hot swap suffices or a full stage restart is needed
// (spec.md §4.5: "If device section (sample rate, chunk size, channels,
// format, device name or type) is unchanged... If device section
// changed...").
func ClassifyReload(old, next *config.Configuration) ReloadKind {
	o, n := old.Raw.Devices, next.Raw.Devices
	if o.Samplerate != n.Samplerate ||
		o.Chunksize != n.Chunksize ||
		o.Capture.Channels != n.Capture.Channels ||
		o.Playback.Channels != n.Playback.Channels ||
		o.Capture.Format != n.Capture.Format ||
		o.Playback.Format != n.Playback.Format ||
		o.Capture.Device != n.Capture.Device ||
		o.Playback.Device != n.Playback.Device ||
		o.Capture.Type != n.Capture.Type ||
		o.Playback.Type != n.Playback.Type {
		return ReloadRestart
	}
	return ReloadHotSwap
}
