package audio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewChunk_Shape(t *testing.T) {
	t.Parallel()

	c := NewChunk(2, 1024)
	require.Len(t, c.Data, 2)
	assert.Len(t, c.Data[0], 1024)
	assert.Len(t, c.Data[1], 1024)
	assert.Len(t, c.MaxVal, 2)
	assert.Len(t, c.MinVal, 2)
}

func TestChunk_ComputeMinMaxAndClipping(t *testing.T) {
	t.Parallel()

	c := NewChunk(1, 4)
	c.ValidFrames = 4
	copy(c.Data[0], []Sample{0.5, -0.25, 1.5, -2.0})

	c.ComputeMinMax()

	assert.InDelta(t, 1.5, c.MaxVal[0], 1e-12)
	assert.InDelta(t, -2.0, c.MinVal[0], 1e-12)
	assert.Equal(t, 2, c.Clipped, "two samples exceed full scale")
}

func TestChunk_IsSilent(t *testing.T) {
	t.Parallel()

	c := NewChunk(2, 8)
	c.ValidFrames = 8
	for ch := range c.Data {
		for i := range c.Data[ch] {
			c.Data[ch][i] = 0.0001
		}
	}
	c.ComputeMinMax()

	assert.True(t, c.IsSilent(0.001))
	assert.False(t, c.IsSilent(0.00001))
}

func TestChunk_SignalRange(t *testing.T) {
	t.Parallel()

	c := NewChunk(1, 3)
	c.ValidFrames = 3
	copy(c.Data[0], []Sample{0.2, -0.3, 0.1})
	c.ComputeMinMax()

	assert.InDelta(t, 0.5, c.SignalRange(0), 1e-12)
}

func TestChunk_ResetClearsDataAndMetadata(t *testing.T) {
	t.Parallel()

	c := NewChunk(1, 4)
	copy(c.Data[0], []Sample{1, 2, 3, 4})
	c.ValidFrames = 4
	c.Clipped = 9
	c.Timestamp = 42

	c.Reset()

	assert.Equal(t, []Sample{0, 0, 0, 0}, c.Data[0])
	assert.Equal(t, 0, c.ValidFrames)
	assert.Equal(t, 0, c.Clipped)
	assert.Equal(t, int64(0), c.Timestamp)
}

func TestPool_GetPutRecyclesAndResets(t *testing.T) {
	t.Parallel()

	p := NewPool(2, 16)
	c1 := p.Get()
	c1.Data[0][0] = 1.0
	c1.ValidFrames = 16
	p.Put(c1)

	c2 := p.Get()
	assert.Equal(t, Sample(0), c2.Data[0][0], "pooled chunk must come back zeroed")
	assert.Equal(t, 0, c2.ValidFrames)
}

func TestPool_ShapeMismatchIsDropped(t *testing.T) {
	t.Parallel()

	p := NewPool(2, 16)
	wrongShape := NewChunk(4, 32)
	p.Put(wrongShape) // must not panic; silently dropped
}
