package device

import (
	"context"
	"errors"
	"io"

	"github.com/tphakala/flac"
	"github.com/tphakala/flac/frame"

	"github.com/camilladsp-go/camilladsp/internal/audio"
	dsperrors "github.com/camilladsp-go/camilladsp/internal/errors"
)

// FLACCapture reads PCM from a FLAC-encoded file as a capture device
// (spec.md §4.6 "File", extended to the codec the teacher already uses
// for ingesting recorded audio — a FLAC-encoded test corpus is a natural
// File-device variant).
type FLACCapture struct {
	stream     *flac.Stream
	sampleRate int
	channels   int
	bitDepth   int

	cur    *frame.Frame
	curPos int
}

// NewFLACCapture opens path and reads its STREAMINFO block.
func NewFLACCapture(path string) (*FLACCapture, error) {
	stream, err := flac.ParseFile(path)
	if err != nil {
		return nil, dsperrors.New(err).Category(dsperrors.CategoryDeviceFatal).Build()
	}
	return &FLACCapture{
		stream:     stream,
		sampleRate: int(stream.Info.SampleRate),
		channels:   int(stream.Info.NChannels),
		bitDepth:   int(stream.Info.BitsPerSample),
	}, nil
}

func (d *FLACCapture) Open(ctx context.Context) error { return nil }

func (d *FLACCapture) ReadChunk(ctx context.Context, into *audio.Chunk) error {
	scale := float64(int64(1) << uint(d.bitDepth-1))
	n := 0
	for n < into.Frames {
		if d.cur == nil || d.curPos >= int(d.cur.BlockSize) {
			f, err := d.stream.ParseNext()
			if err != nil {
				if errors.Is(err, io.EOF) {
					break
				}
				return dsperrors.New(err).Category(dsperrors.CategoryDeviceFatal).Build()
			}
			d.cur = f
			d.curPos = 0
		}
		for d.curPos < int(d.cur.BlockSize) && n < into.Frames {
			for ch := 0; ch < d.channels && ch < len(d.cur.Subframes); ch++ {
				into.Data[ch][n] = audio.Sample(float64(d.cur.Subframes[ch].Samples[d.curPos]) / scale)
			}
			d.curPos++
			n++
		}
	}
	into.ValidFrames = n
	if n == 0 {
		return dsperrors.Newf("flac capture: end of stream").Category(dsperrors.CategoryDeviceFatal).Build()
	}
	return nil
}

func (d *FLACCapture) SampleRate() int          { return d.sampleRate }
func (d *FLACCapture) Channels() int            { return d.channels }
func (d *FLACCapture) SetRate(rate float64) bool { return false }
func (d *FLACCapture) Close() error             { return d.stream.Close() }
