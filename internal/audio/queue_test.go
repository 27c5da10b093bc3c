package audio

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_CapacityIsTwiceQueueLimit(t *testing.T) {
	t.Parallel()

	q := NewQueue(4)
	assert.Equal(t, 8, q.Cap())
}

func TestQueue_DefaultQueueLimit(t *testing.T) {
	t.Parallel()

	q := NewQueue(0)
	assert.Equal(t, 2*DefaultQueueLimit, q.Cap())
}

func TestQueue_SendReceiveFIFO(t *testing.T) {
	t.Parallel()

	q := NewQueue(2)
	ctx := context.Background()

	for i := int64(0); i < 3; i++ {
		c := NewChunk(1, 4)
		c.Timestamp = i
		require.NoError(t, q.Send(ctx, c))
	}

	for i := int64(0); i < 3; i++ {
		c, err := q.Receive(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, i, c.Timestamp, "chunks must come out in FIFO order")
	}
}

func TestQueue_SendBlocksWhenFull(t *testing.T) {
	t.Parallel()

	q := NewQueue(1) // capacity 2
	ctx := context.Background()
	require.NoError(t, q.Send(ctx, NewChunk(1, 1)))
	require.NoError(t, q.Send(ctx, NewChunk(1, 1)))

	sendCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := q.Send(sendCtx, NewChunk(1, 1))
	assert.ErrorIs(t, err, context.DeadlineExceeded, "a full queue must block the producer")
}

func TestQueue_ReceiveTimesOutWhenEmpty(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	_, err := q.Receive(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestQueue_ReceiveAfterCloseDrainsThenErrors(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	c := NewChunk(1, 1)
	require.NoError(t, q.Send(context.Background(), c))
	q.Close()

	got, err := q.Receive(context.Background(), 0)
	require.NoError(t, err)
	assert.Same(t, c, got)

	_, err = q.Receive(context.Background(), 0)
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestQueue_TrySendNonBlocking(t *testing.T) {
	t.Parallel()

	q := NewQueue(1) // capacity 2
	assert.True(t, q.TrySend(NewChunk(1, 1)))
	assert.True(t, q.TrySend(NewChunk(1, 1)))
	assert.False(t, q.TrySend(NewChunk(1, 1)), "full queue must reject without blocking")
}
