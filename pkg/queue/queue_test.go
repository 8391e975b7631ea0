package queue

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillback/quill/pkg/types"
)

func testQueue(t *testing.T) *RedisQueue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisQueueWithClient(client)
}

func TestEnqueueDequeue(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	job := &types.IngestJob{
		DocumentID:  uuid.New(),
		WorkspaceID: uuid.New(),
		Attempt:     1,
	}
	require.NoError(t, q.Enqueue(ctx, job))

	got, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, job.DocumentID, got.DocumentID)
	assert.Equal(t, job.WorkspaceID, got.WorkspaceID)
	assert.Equal(t, 1, got.Attempt)
}

func TestFIFOOrder(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	first := uuid.New()
	second := uuid.New()
	require.NoError(t, q.Enqueue(ctx, &types.IngestJob{DocumentID: first}))
	require.NoError(t, q.Enqueue(ctx, &types.IngestJob{DocumentID: second}))

	got, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, first, got.DocumentID)

	got, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, second, got.DocumentID)
}

func TestDequeueEmpty(t *testing.T) {
	q := testQueue(t)

	_, err := q.Dequeue(context.Background(), 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestDepth(t *testing.T) {
	q := testQueue(t)
	ctx := context.Background()

	n, err := q.Depth(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, q.Enqueue(ctx, &types.IngestJob{DocumentID: uuid.New()}))
	require.NoError(t, q.Enqueue(ctx, &types.IngestJob{DocumentID: uuid.New()}))

	n, err = q.Depth(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}
