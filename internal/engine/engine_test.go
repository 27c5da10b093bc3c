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
	"github.com/camilladsp-go/camilladsp/internal/pipeline"
)

func TestCapture_ForwardsChunksToOutputQueue(t *testing.T) {
	t.Parallel()

	cap := device.NewNullCapture(48000, 2)
	out := audio.NewQueue(2)
	status := control.NewStatusChannel(8)
	c := NewCapture(CaptureConfig{
		Device: cap,
		Out:    out,
		Pool:   audio.NewPool(2, 16),
		Status: status,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() { c.Run(ctx); close(done) }()

	chunk, err := out.Receive(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, 16, chunk.ValidFrames)

	<-done
}

func TestProcessing_AppliesHotSwappedPipeline(t *testing.T) {
	t.Parallel()

	in := audio.NewQueue(2)
	out := audio.NewQueue(2)
	status := control.NewStatusChannel(8)
	p := NewProcessing(ProcessingConfig{In: in, Out: out, Status: status})
	p.SetPipeline(pipeline.NewPipeline(nil, nil)) // empty pipeline is a pass-through

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	c := audio.NewChunk(1, 4)
	c.ValidFrames = 4
	c.Data[0][0] = 0.5
	require.NoError(t, in.Send(context.Background(), c))

	got, err := out.Receive(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, audio.Sample(0.5), got.Data[0][0])
}

func TestProcessing_TracksClippedSamples(t *testing.T) {
	t.Parallel()

	in := audio.NewQueue(2)
	out := audio.NewQueue(2)
	p := NewProcessing(ProcessingConfig{In: in, Out: out, Status: control.NewStatusChannel(8)})
	p.SetPipeline(pipeline.NewPipeline(nil, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	c := audio.NewChunk(1, 2)
	c.ValidFrames = 2
	c.Data[0][0] = 1.5
	require.NoError(t, in.Send(context.Background(), c))
	_, err := out.Receive(context.Background(), time.Second)
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return p.ClippedSamples() > 0 }, time.Second, time.Millisecond)
}

func TestPlayback_ConsumesInputQueue(t *testing.T) {
	t.Parallel()

	pb := device.NewNullPlayback(2)
	in := audio.NewQueue(2)
	status := control.NewStatusChannel(8)
	p := NewPlayback(PlaybackConfig{Device: pb, In: in, Status: status, AdjustPeriod: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go p.Run(ctx)

	c := audio.NewChunk(2, 4)
	c.ValidFrames = 4
	require.NoError(t, in.Send(context.Background(), c))

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 0, p.Underruns())
}
