package state

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(ttl time.Duration) (*MemoryStore, *clock) {
	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	s := NewMemoryStore(ttl)
	s.now = c.Now
	return s, c
}

func TestMemoryStore_Pending(t *testing.T) {
	s, _ := newTestStore(time.Minute)
	ctx := context.Background()

	_, ok, err := s.TakePending(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetPending(ctx, 1, "order_item"))
	token, ok, err := s.TakePending(ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "order_item", token)

	// Take clears the slot
	_, ok, err = s.TakePending(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_PendingIsSingleSlot(t *testing.T) {
	s, _ := newTestStore(time.Minute)
	ctx := context.Background()

	require.NoError(t, s.SetPending(ctx, 1, "first"))
	require.NoError(t, s.SetPending(ctx, 1, "second"))
	require.NoError(t, s.SetPending(ctx, 2, "other"))

	token, ok, err := s.TakePending(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second", token)

	token, ok, err = s.TakePending(ctx, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "other", token)
}

func TestMemoryStore_PendingExpires(t *testing.T) {
	s, c := newTestStore(time.Minute)
	ctx := context.Background()

	require.NoError(t, s.SetPending(ctx, 1, "order_item"))
	c.Advance(time.Minute)

	_, ok, err := s.TakePending(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_ClearPending(t *testing.T) {
	s, _ := newTestStore(time.Minute)
	ctx := context.Background()

	require.NoError(t, s.SetPending(ctx, 1, "order_item"))
	require.NoError(t, s.ClearPending(ctx, 1))
	require.NoError(t, s.ClearPending(ctx, 99))

	_, ok, err := s.TakePending(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryStore_MarkUpdate(t *testing.T) {
	s, c := newTestStore(time.Minute)
	ctx := context.Background()

	first, err := s.MarkUpdate(ctx, 10, time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	first, err = s.MarkUpdate(ctx, 10, time.Hour)
	require.NoError(t, err)
	assert.False(t, first, "redelivery must be reported as duplicate")

	require.NoError(t, s.ReleaseUpdate(ctx, 10))
	first, err = s.MarkUpdate(ctx, 10, time.Hour)
	require.NoError(t, err)
	assert.True(t, first, "released ids are processed again")

	c.Advance(2 * time.Hour)
	first, err = s.MarkUpdate(ctx, 10, time.Hour)
	require.NoError(t, err)
	assert.True(t, first, "expired marks are forgotten")
}

func TestMemoryStore_SweepBoundsGrowth(t *testing.T) {
	s, c := newTestStore(time.Minute)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		require.NoError(t, s.SetPending(ctx, int64(i), "order_item"))
		_, err := s.MarkUpdate(ctx, i, time.Minute)
		require.NoError(t, err)
	}
	c.Advance(2 * time.Minute)
	require.NoError(t, s.SetPending(ctx, 1000, "order_item"))

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Len(t, s.pending, 1)
	assert.Empty(t, s.updates)
}

func TestMemoryStore_Concurrent(t *testing.T) {
	s := NewMemoryStore(time.Minute)
	ctx := context.Background()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		firsts int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first, err := s.MarkUpdate(ctx, 7, time.Minute)
			assert.NoError(t, err)
			if first {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, firsts)
}
