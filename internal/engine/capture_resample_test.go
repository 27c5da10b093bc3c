package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camilladsp-go/camilladsp/internal/audio"
	"github.com/camilladsp-go/camilladsp/internal/control"
	"github.com/camilladsp-go/camilladsp/internal/device"
	"github.com/camilladsp-go/camilladsp/internal/resample"
)

// TestCapture_ResamplesNativeRateChunksBeforeEnqueue asserts that when a
// Resampler/ResamplerPool pair is configured, Capture reads the device at
// its native rate and delivers pipeline-rate chunks to Out rather than
// the raw native-rate chunk (spec.md §4.4 Capture task step 2).
func TestCapture_ResamplesNativeRateChunksBeforeEnqueue(t *testing.T) {
	t.Parallel()

	nativeFrames := 16
	pipelineFrames := 32
	cap := device.NewNullCapture(44100, 1)
	out := audio.NewQueue(2)
	status := control.NewStatusChannel(8)

	rs, err := resample.NewAsyncPoly(1, resample.PolyLinear, float64(pipelineFrames)/float64(nativeFrames))
	require.NoError(t, err)

	c := NewCapture(CaptureConfig{
		Device:        cap,
		Out:           out,
		Pool:          audio.NewPool(1, pipelineFrames),
		Status:        status,
		Resampler:     rs,
		ResamplerPool: audio.NewPool(1, nativeFrames),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() { c.Run(ctx); close(done) }()

	chunk, err := out.Receive(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, chunk.Channels)
	assert.Equal(t, pipelineFrames, len(chunk.Data[0]))

	<-done
}
