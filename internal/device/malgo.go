package device

import (
	"context"
	"encoding/binary"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/camilladsp-go/camilladsp/internal/audio"
	dsperrors "github.com/camilladsp-go/camilladsp/internal/errors"
)

func backendForPlatform() (malgo.Backend, error) {
	switch runtime.GOOS {
	case "linux":
		return malgo.BackendAlsa, nil
	case "windows":
		return malgo.BackendWasapi, nil
	case "darwin":
		return malgo.BackendCoreaudio, nil
	default:
		return malgo.BackendNull, dsperrors.Newf("malgo device: unsupported OS %s", runtime.GOOS).
			Category(dsperrors.CategoryDeviceFatal).Build()
	}
}

// MalgoCapture is a real hardware capture device backed by malgo's
// cross-platform callback API (ALSA on Linux, WASAPI on Windows, CoreAudio
// on macOS, selected by backendForPlatform). The callback delivers interleaved int16
// frames; ReadChunk blocks on an internal channel until enough frames
// have accumulated to fill the caller's chunk.
type MalgoCapture struct {
	deviceID   string
	sampleRate int
	channels   int

	ctx    *malgo.AllocatedContext
	dev    *malgo.Device
	frames chan []int16
	errs   chan error
	closed atomic.Bool
	mu     sync.Mutex

	pending []int16 // leftover samples from a callback not yet consumed
}

// NewMalgoCapture builds a capture device. deviceID is stored but not
// used: Open always opens the backend's default capture device.
func NewMalgoCapture(deviceID string, sampleRate, channels int) *MalgoCapture {
	return &MalgoCapture{
		deviceID:   deviceID,
		sampleRate: sampleRate,
		channels:   channels,
		frames:     make(chan []int16, 16),
		errs:       make(chan error, 1),
	}
}

func (d *MalgoCapture) Open(ctx context.Context) error {
	backend, err := backendForPlatform()
	if err != nil {
		return err
	}
	mctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return dsperrors.New(err).Category(dsperrors.CategoryDeviceFatal).Build()
	}
	d.ctx = mctx

	devCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	devCfg.Capture.Format = malgo.FormatS16
	devCfg.Capture.Channels = uint32(d.channels)
	devCfg.SampleRate = uint32(d.sampleRate)
	devCfg.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, in []byte, frameCount uint32) {
			samples := make([]int16, int(frameCount)*d.channels)
			for i := range samples {
				samples[i] = int16(binary.LittleEndian.Uint16(in[i*2 : i*2+2]))
			}
			select {
			case d.frames <- samples:
			default:
				// drop on backpressure; the Capture stage's silence/stall
				// detection surfaces a sustained overrun upstream.
			}
		},
		Stop: func() {
			select {
			case d.errs <- dsperrors.Newf("malgo device stopped").Category(dsperrors.CategoryDeviceRetryable).Build():
			default:
			}
		},
	}

	dev, err := malgo.InitDevice(d.ctx.Context, devCfg, callbacks)
	if err != nil {
		_ = d.ctx.Uninit()
		return dsperrors.New(err).Category(dsperrors.CategoryDeviceFatal).Build()
	}
	d.dev = dev
	if err := d.dev.Start(); err != nil {
		return dsperrors.New(err).Category(dsperrors.CategoryDeviceFatal).Build()
	}
	return nil
}

func (d *MalgoCapture) ReadChunk(ctx context.Context, into *audio.Chunk) error {
	need := into.Frames * d.channels
	buf := make([]int16, 0, need)
	buf = append(buf, d.pending...)
	d.pending = nil

	for len(buf) < need {
		select {
		case s := <-d.frames:
			buf = append(buf, s...)
		case err := <-d.errs:
			return err
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if len(buf) > need {
		d.pending = append(d.pending, buf[need:]...)
		buf = buf[:need]
	}

	n := len(buf) / d.channels
	for ch := 0; ch < d.channels; ch++ {
		for i := 0; i < n; i++ {
			into.Data[ch][i] = audio.Sample(buf[i*d.channels+ch]) / 32768.0
		}
	}
	into.ValidFrames = n
	return nil
}

func (d *MalgoCapture) SampleRate() int          { return d.sampleRate }
func (d *MalgoCapture) Channels() int             { return d.channels }
func (d *MalgoCapture) SetRate(rate float64) bool { return false } // malgo exposes no virtual-clock API

func (d *MalgoCapture) Close() error {
	if d.closed.Swap(true) {
		return nil
	}
	if d.dev != nil {
		d.dev.Uninit()
	}
	if d.ctx != nil {
		return d.ctx.Uninit()
	}
	return nil
}

// MalgoPlayback is the playback counterpart of MalgoCapture.
type MalgoPlayback struct {
	deviceID string
	channels int

	ctx *malgo.AllocatedContext
	dev *malgo.Device

	mu      sync.Mutex
	pending []int16
	clipped int
}

// NewMalgoPlayback builds a playback device. deviceID is stored but not
// used: Open always opens the backend's default playback device.
func NewMalgoPlayback(deviceID string, sampleRate, channels int) *MalgoPlayback {
	return &MalgoPlayback{deviceID: deviceID, channels: channels}
}

func (d *MalgoPlayback) Open(ctx context.Context) error {
	backend, err := backendForPlatform()
	if err != nil {
		return err
	}
	mctx, err := malgo.InitContext([]malgo.Backend{backend}, malgo.ContextConfig{}, nil)
	if err != nil {
		return dsperrors.New(err).Category(dsperrors.CategoryDeviceFatal).Build()
	}
	d.ctx = mctx

	devCfg := malgo.DefaultDeviceConfig(malgo.Playback)
	devCfg.Playback.Format = malgo.FormatS16
	devCfg.Playback.Channels = uint32(d.channels)

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, in []byte, frameCount uint32) {
			d.mu.Lock()
			need := int(frameCount) * d.channels
			n := min(need, len(d.pending))
			for i := 0; i < n; i++ {
				binary.LittleEndian.PutUint16(out[i*2:i*2+2], uint16(d.pending[i]))
			}
			d.pending = d.pending[n:]
			d.mu.Unlock()
		},
	}
	dev, err := malgo.InitDevice(d.ctx.Context, devCfg, callbacks)
	if err != nil {
		_ = d.ctx.Uninit()
		return dsperrors.New(err).Category(dsperrors.CategoryDeviceFatal).Build()
	}
	d.dev = dev
	return d.dev.Start()
}

func (d *MalgoPlayback) WriteChunk(ctx context.Context, c *audio.Chunk) error {
	buf := make([]int16, c.ValidFrames*d.channels)
	for i := 0; i < c.ValidFrames; i++ {
		for ch := 0; ch < d.channels; ch++ {
			v := float64(c.Data[ch][i]) * 32768.0
			if v > 32767 {
				v, d.clipped = 32767, d.clipped+1
			} else if v < -32768 {
				v, d.clipped = -32768, d.clipped+1
			}
			buf[i*d.channels+ch] = int16(v)
		}
	}
	d.mu.Lock()
	d.pending = append(d.pending, buf...)
	d.mu.Unlock()
	return nil
}

// BufferLevel reports frames still queued in the pending buffer, used by
// the rate-adjust controller.
func (d *MalgoPlayback) BufferLevel() (int, time.Time, bool) {
	d.mu.Lock()
	n := len(d.pending) / d.channels
	d.mu.Unlock()
	return n, time.Now(), true
}

func (d *MalgoPlayback) Channels() int { return d.channels }

func (d *MalgoPlayback) Close() error {
	if d.dev != nil {
		d.dev.Uninit()
	}
	if d.ctx != nil {
		return d.ctx.Uninit()
	}
	return nil
}
