package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigStore_SetAndGet(t *testing.T) {
	store := NewConfigStore()

	require.NoError(t, store.Set("http.addr", ":9090"))

	val, ok := store.Get("http.addr")
	assert.True(t, ok)
	assert.Equal(t, ":9090", val)

	_, ok = store.Get("missing")
	assert.False(t, ok)
}

func TestConfigStore_TypedGetters(t *testing.T) {
	store := NewConfigStore()
	require.NoError(t, store.Set("s", "text"))
	require.NoError(t, store.Set("i", 4))
	require.NoError(t, store.Set("i64", int64(7)))
	require.NoError(t, store.Set("f", 0.4))
	require.NoError(t, store.Set("b", true))
	require.NoError(t, store.Set("d", "45s"))
	require.NoError(t, store.Set("bad", "soon"))

	assert.Equal(t, "text", store.GetString("s"))
	assert.Equal(t, "", store.GetString("i"))
	assert.Equal(t, 4, store.GetInt("i"))
	assert.Equal(t, 7, store.GetInt("i64"))
	assert.Equal(t, 0, store.GetInt("s"))
	assert.InDelta(t, 0.4, store.GetFloat("f"), 1e-9)
	assert.InDelta(t, 4.0, store.GetFloat("i"), 1e-9)
	assert.True(t, store.GetBool("b"))
	assert.False(t, store.GetBool("s"))
	assert.Equal(t, 45*time.Second, store.GetDuration("d"))
	assert.Equal(t, time.Duration(0), store.GetDuration("bad"))
	assert.Equal(t, time.Duration(0), store.GetDuration("missing"))
}

func TestConfigStore_LoadAndPath(t *testing.T) {
	store := NewConfigStore()
	assert.NoError(t, store.Load())
	assert.Equal(t, ":memory:", store.Path())
}

func TestConfigStore_Watch(t *testing.T) {
	store := NewConfigStore()
	ctx, cancel := context.WithCancel(context.Background())

	var calls atomic.Int32
	done := make(chan struct{})
	go func() {
		_ = store.Watch(ctx, func() { calls.Add(1) })
		close(done)
	}()

	require.Eventually(t, func() bool {
		store.mu.RLock()
		defer store.mu.RUnlock()
		return len(store.watchers) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, store.Set("search.top_k", 5))
	assert.Equal(t, int32(1), calls.Load())

	cancel()
	<-done

	require.NoError(t, store.Set("search.top_k", 6))
	assert.Equal(t, int32(1), calls.Load())
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := NewConfigStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_ = store.Set("worker.concurrency", n)
			_ = store.GetInt("worker.concurrency")
		}(i)
	}
	wg.Wait()

	_, ok := store.Get("worker.concurrency")
	assert.True(t, ok)
}
