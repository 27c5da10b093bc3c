package device

import (
	"strings"

	"github.com/gen2brain/malgo"

	dsperrors "github.com/camilladsp-go/camilladsp/internal/errors"
)

// backendByName maps a control-surface backend name (spec.md §6
// "GetAvailable{Capture,Playback}Devices(backend)") onto malgo's backend
// enum. An empty or unrecognized name falls back to the platform default
// backendForPlatform already uses for Malgo{Capture,Playback}.
func backendByName(name string) (malgo.Backend, error) {
	switch strings.ToLower(name) {
	case "":
		return backendForPlatform()
	case "alsa":
		return malgo.BackendAlsa, nil
	case "pulse", "pulseaudio":
		return malgo.BackendPulseaudio, nil
	case "jack":
		return malgo.BackendJack, nil
	case "wasapi":
		return malgo.BackendWasapi, nil
	case "coreaudio":
		return malgo.BackendCoreaudio, nil
	default:
		return backendForPlatform()
	}
}

// EnumerateCaptureDevices lists the capture device names malgo reports for
// the given backend (spec.md §6 GetAvailableCaptureDevices).
func EnumerateCaptureDevices(backend string) ([]string, error) {
	return enumerateDevices(backend, malgo.Capture)
}

// EnumeratePlaybackDevices lists the playback device names malgo reports
// for the given backend (spec.md §6 GetAvailablePlaybackDevices).
func EnumeratePlaybackDevices(backend string) ([]string, error) {
	return enumerateDevices(backend, malgo.Playback)
}

func enumerateDevices(backendName string, kind malgo.DeviceType) ([]string, error) {
	b, err := backendByName(backendName)
	if err != nil {
		return nil, err
	}
	ctx, err := malgo.InitContext([]malgo.Backend{b}, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, dsperrors.New(err).Category(dsperrors.CategoryDeviceFatal).Build()
	}
	defer ctx.Uninit() //nolint:errcheck

	infos, err := ctx.Devices(kind)
	if err != nil {
		return nil, dsperrors.New(err).Category(dsperrors.CategoryDeviceFatal).Build()
	}
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.Name()
	}
	return names, nil
}
