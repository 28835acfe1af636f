package cache

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryClient_SetGetDelete(t *testing.T) {
	c := NewMemoryClient(10)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	val, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)

	require.NoError(t, c.Delete(ctx, "k"))
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_ExpiredEntryMisses(t *testing.T) {
	c := NewMemoryClient(10)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), -time.Second))

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestMemoryClient_DeleteByPrefix(t *testing.T) {
	c := NewMemoryClient(10)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ans:fp1:a", []byte("1"), time.Minute))
	require.NoError(t, c.Set(ctx, "ans:fp1:b", []byte("2"), time.Minute))
	require.NoError(t, c.Set(ctx, "ans:fp2:a", []byte("3"), time.Minute))

	require.NoError(t, c.DeleteByPrefix(ctx, "ans:fp1:"))

	_, err := c.Get(ctx, "ans:fp1:a")
	assert.ErrorIs(t, err, ErrCacheMiss)
	_, err = c.Get(ctx, "ans:fp2:a")
	assert.NoError(t, err)
}

func TestMemoryClient_CloseStopsCleanup(t *testing.T) {
	before := runtime.NumGoroutine()

	clients := make([]*MemoryClient, 10)
	for i := range clients {
		clients[i] = NewMemoryClient(10)
	}
	for _, c := range clients {
		require.NoError(t, c.Close())
	}

	assert.Eventually(t, func() bool {
		return runtime.NumGoroutine() <= before
	}, 2*time.Second, 10*time.Millisecond, "cleanup goroutines must exit on Close")
}

func TestMemoryClient_CloseIsIdempotent(t *testing.T) {
	c := NewMemoryClient(10)
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}
