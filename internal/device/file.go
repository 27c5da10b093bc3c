package device

import (
	"bufio"
	"context"
	"encoding/binary"
	"io"
	"math"
	"os"
	"time"

	"github.com/camilladsp-go/camilladsp/internal/audio"
	dsperrors "github.com/camilladsp-go/camilladsp/internal/errors"
)

// SampleFormat is the on-the-wire PCM format for File/Stdin/Stdout
// devices — the engine only ever holds float64 internally, so these
// devices' entire job is the format conversion at their boundary.
type SampleFormat int

const (
	FormatS16LE SampleFormat = iota
	FormatS24LE
	FormatS32LE
	FormatFloat32LE
	FormatFloat64LE
)

func (f SampleFormat) bytesPerSample() int {
	switch f {
	case FormatS16LE:
		return 2
	case FormatS24LE:
		return 3
	case FormatS32LE, FormatFloat32LE:
		return 4
	default:
		return 8
	}
}

func decodeSample(f SampleFormat, b []byte) float64 {
	switch f {
	case FormatS16LE:
		return float64(int16(binary.LittleEndian.Uint16(b))) / 32768.0
	case FormatS24LE:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= -(1 << 24)
		}
		return float64(v) / 8388608.0
	case FormatS32LE:
		return float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648.0
	case FormatFloat32LE:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	default:
		return math.Float64frombits(binary.LittleEndian.Uint64(b))
	}
}

func encodeSample(f SampleFormat, x float64, b []byte) (clipped bool) {
	switch f {
	case FormatS16LE:
		v := x * 32768.0
		if v > 32767 {
			v, clipped = 32767, true
		} else if v < -32768 {
			v, clipped = -32768, true
		}
		binary.LittleEndian.PutUint16(b, uint16(int16(v)))
	case FormatS24LE:
		v := x * 8388608.0
		if v > 8388607 {
			v, clipped = 8388607, true
		} else if v < -8388608 {
			v, clipped = -8388608, true
		}
		iv := int32(v)
		b[0] = byte(iv)
		b[1] = byte(iv >> 8)
		b[2] = byte(iv >> 16)
	case FormatS32LE:
		v := x * 2147483648.0
		if v > 2147483647 {
			v, clipped = 2147483647, true
		} else if v < -2147483648 {
			v, clipped = -2147483648, true
		}
		binary.LittleEndian.PutUint32(b, uint32(int32(v)))
	case FormatFloat32LE:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(x)))
	default:
		binary.LittleEndian.PutUint64(b, math.Float64bits(x))
	}
	return clipped
}

// FileCapture reads raw interleaved PCM from a file (or stdin, via
// NewStdinCapture) as a capture device (spec.md §4.6, §1 "File/Stdin").
type FileCapture struct {
	r          *bufio.Reader
	closer     io.Closer
	format     SampleFormat
	sampleRate int
	channels   int
	frameBuf   []byte
}

// NewFileCapture opens path for raw PCM reading.
func NewFileCapture(path string, format SampleFormat, sampleRate, channels int) (*FileCapture, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, dsperrors.New(err).Category(dsperrors.CategoryDeviceFatal).Build()
	}
	return newFileCapture(f, f, format, sampleRate, channels), nil
}

// NewStdinCapture reads raw PCM from stdin as a capture device.
func NewStdinCapture(format SampleFormat, sampleRate, channels int) *FileCapture {
	return newFileCapture(os.Stdin, nil, format, sampleRate, channels)
}

func newFileCapture(r io.Reader, closer io.Closer, format SampleFormat, sampleRate, channels int) *FileCapture {
	return &FileCapture{
		r:          bufio.NewReaderSize(r, 1<<16),
		closer:     closer,
		format:     format,
		sampleRate: sampleRate,
		channels:   channels,
		frameBuf:   make([]byte, format.bytesPerSample()*channels),
	}
}

func (d *FileCapture) Open(ctx context.Context) error { return nil }

func (d *FileCapture) ReadChunk(ctx context.Context, into *audio.Chunk) error {
	bps := d.format.bytesPerSample()
	frame := make([]byte, bps*d.channels)
	n := 0
	for ; n < into.Frames; n++ {
		if _, err := io.ReadFull(d.r, frame); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return dsperrors.New(err).Category(dsperrors.CategoryDeviceFatal).Build()
		}
		for ch := 0; ch < d.channels; ch++ {
			into.Data[ch][n] = audio.Sample(decodeSample(d.format, frame[ch*bps:(ch+1)*bps]))
		}
	}
	into.ValidFrames = n
	if n == 0 {
		return dsperrors.Newf("file capture: end of stream").Category(dsperrors.CategoryDeviceFatal).Build()
	}
	return nil
}

func (d *FileCapture) SampleRate() int         { return d.sampleRate }
func (d *FileCapture) Channels() int            { return d.channels }
func (d *FileCapture) SetRate(rate float64) bool { return false }
func (d *FileCapture) Close() error {
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}

// FilePlayback writes raw interleaved PCM to a file (or stdout, via
// NewStdoutPlayback) as a playback device.
type FilePlayback struct {
	w        *bufio.Writer
	closer   io.Closer
	format   SampleFormat
	channels int
	clipped  int
}

// NewFilePlayback creates (or truncates) path for raw PCM writing.
func NewFilePlayback(path string, format SampleFormat, channels int) (*FilePlayback, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, dsperrors.New(err).Category(dsperrors.CategoryDeviceFatal).Build()
	}
	return newFilePlayback(f, f, format, channels), nil
}

// NewStdoutPlayback writes raw PCM to stdout as a playback device.
func NewStdoutPlayback(format SampleFormat, channels int) *FilePlayback {
	return newFilePlayback(os.Stdout, nil, format, channels)
}

func newFilePlayback(w io.Writer, closer io.Closer, format SampleFormat, channels int) *FilePlayback {
	return &FilePlayback{w: bufio.NewWriterSize(w, 1<<16), closer: closer, format: format, channels: channels}
}

func (d *FilePlayback) Open(ctx context.Context) error { return nil }

func (d *FilePlayback) WriteChunk(ctx context.Context, c *audio.Chunk) error {
	bps := d.format.bytesPerSample()
	frame := make([]byte, bps*d.channels)
	for i := 0; i < c.ValidFrames; i++ {
		for ch := 0; ch < d.channels; ch++ {
			if encodeSample(d.format, float64(c.Data[ch][i]), frame[ch*bps:(ch+1)*bps]) {
				d.clipped++
			}
		}
		if _, err := d.w.Write(frame); err != nil {
			return dsperrors.New(err).Category(dsperrors.CategoryDeviceFatal).Build()
		}
	}
	return nil
}

// BufferLevel is unsupported for a plain file sink: its bufio.Writer
// reports no playback fill level, so there is nothing for rate-adjust to
// read.
func (d *FilePlayback) BufferLevel() (int, time.Time, bool) { return 0, time.Time{}, false }
func (d *FilePlayback) Channels() int                        { return d.channels }
func (d *FilePlayback) Close() error {
	if err := d.w.Flush(); err != nil {
		return err
	}
	if d.closer != nil {
		return d.closer.Close()
	}
	return nil
}

// NullPlayback discards every chunk written to it — used for dry-run
// pipeline validation and benchmarking (spec.md §4.6 "Null").
type NullPlayback struct {
	channels int
}

// NewNullPlayback creates a NullPlayback sink.
func NewNullPlayback(channels int) *NullPlayback {
	return &NullPlayback{channels: channels}
}

func (d *NullPlayback) Open(ctx context.Context) error                    { return nil }
func (d *NullPlayback) WriteChunk(ctx context.Context, c *audio.Chunk) error { return nil }
func (d *NullPlayback) BufferLevel() (int, time.Time, bool)                { return 0, time.Time{}, false }
func (d *NullPlayback) Channels() int                                      { return d.channels }
func (d *NullPlayback) Close() error                                      { return nil }

// NullCapture produces silent chunks, returning each one immediately with
// no pacing to the sample rate — used for pipeline validation without a
// real input.
type NullCapture struct {
	sampleRate int
	channels   int
}

// NewNullCapture creates a NullCapture source.
func NewNullCapture(sampleRate, channels int) *NullCapture {
	return &NullCapture{sampleRate: sampleRate, channels: channels}
}

func (d *NullCapture) Open(ctx context.Context) error { return nil }
func (d *NullCapture) ReadChunk(ctx context.Context, into *audio.Chunk) error {
	into.Reset()
	into.ValidFrames = into.Frames
	return nil
}
func (d *NullCapture) SampleRate() int          { return d.sampleRate }
func (d *NullCapture) Channels() int             { return d.channels }
func (d *NullCapture) SetRate(rate float64) bool { return false }
func (d *NullCapture) Close() error              { return nil }
