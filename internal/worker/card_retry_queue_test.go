package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestQueue(t *testing.T, clock *fakeClock, maxAttempts int) (*CardRetryQueue, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	queue := NewCardRetryQueue(client, QueueOptions{
		Key:         "test:cards",
		MaxAttempts: maxAttempts,
		Backoff:     10 * time.Second,
		Now:         clock.Now,
	})
	return queue, mr
}

func TestCardRetryQueue_EnqueueCollapsesDuplicates(t *testing.T) {
	clock := newFakeClock()
	queue, _ := newTestQueue(t, clock, 3)
	ctx := context.Background()

	require.NoError(t, queue.Enqueue(ctx, "1001"))
	clock.Advance(time.Second)
	require.NoError(t, queue.Enqueue(ctx, "1001"))
	require.NoError(t, queue.Enqueue(ctx, "1002"))

	n, err := queue.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	claimed, err := queue.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1001", "1002"}, claimed)

	claimed, err = queue.Claim(ctx)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestCardRetryQueue_RetryBacksOffThenGivesUp(t *testing.T) {
	clock := newFakeClock()
	queue, mr := newTestQueue(t, clock, 3)
	ctx := context.Background()

	require.NoError(t, queue.Retry(ctx, "1001"))
	claimed, err := queue.Claim(ctx)
	require.NoError(t, err)
	assert.Empty(t, claimed, "not due before the backoff elapses")

	clock.Advance(10 * time.Second)
	claimed, err = queue.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1001"}, claimed)

	require.NoError(t, queue.Retry(ctx, "1001"))
	clock.Advance(15 * time.Second)
	claimed, err = queue.Claim(ctx)
	require.NoError(t, err)
	assert.Empty(t, claimed, "second retry waits twice as long")
	clock.Advance(5 * time.Second)
	claimed, err = queue.Claim(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"1001"}, claimed)

	assert.ErrorIs(t, queue.Retry(ctx, "1001"), ErrGaveUp)
	n, err := queue.Len(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, mr.HGet("test:cards:attempts", "1001"))
}

func TestCardRetryQueue_DoneResetsAttempts(t *testing.T) {
	clock := newFakeClock()
	queue, mr := newTestQueue(t, clock, 3)
	ctx := context.Background()

	require.NoError(t, queue.Retry(ctx, "1001"))
	assert.Equal(t, "1", mr.HGet("test:cards:attempts", "1001"))
	require.NoError(t, queue.Done(ctx, "1001"))
	assert.Empty(t, mr.HGet("test:cards:attempts", "1001"))
}

func TestCardRetryQueue_UnavailableRedis(t *testing.T) {
	clock := newFakeClock()
	queue, mr := newTestQueue(t, clock, 3)
	mr.Close()

	assert.Error(t, queue.Enqueue(context.Background(), "1001"))
	_, err := queue.Claim(context.Background())
	assert.Error(t, err)
}
