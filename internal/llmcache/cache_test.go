package llmcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/fyrsmithlabs/pacer/internal/logging"
)

func newTestCache(t *testing.T, capacity int) *Cache {
	t.Helper()
	c, err := New(Options{Capacity: capacity})
	require.NoError(t, err)
	return c
}

func TestNew(t *testing.T) {
	c, err := New(Options{})
	require.NoError(t, err)
	assert.Equal(t, DefaultCapacity, c.Stats().Capacity)

	_, err = New(Options{Capacity: -1})
	assert.Error(t, err)
}

func TestGetOrLoad_MemoizesPerKey(t *testing.T) {
	c := newTestCache(t, 10)
	ctx := context.Background()

	var calls atomic.Int32
	load := func(context.Context) (string, error) {
		calls.Add(1)
		return `{"gender":"male"}`, nil
	}

	key := Key{Text: "mam 30 lat", Model: "gpt-4o-mini"}
	for i := 0; i < 3; i++ {
		reply, err := c.GetOrLoad(ctx, key, load)
		require.NoError(t, err)
		assert.Equal(t, `{"gender":"male"}`, reply)
	}
	assert.Equal(t, int32(1), calls.Load())

	// Same text, different model is a different entry.
	_, err := c.GetOrLoad(ctx, Key{Text: key.Text, Model: "gpt-4o"}, load)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(2), stats.Misses)
	assert.Equal(t, 2, stats.Len)
}

func TestGetOrLoad_TextIsVerbatim(t *testing.T) {
	c := newTestCache(t, 10)
	ctx := context.Background()

	var calls atomic.Int32
	load := func(context.Context) (string, error) {
		calls.Add(1)
		return "{}", nil
	}

	_, _ = c.GetOrLoad(ctx, Key{Text: "30 lat", Model: "m"}, load)
	_, _ = c.GetOrLoad(ctx, Key{Text: "30 lat ", Model: "m"}, load)
	_, _ = c.GetOrLoad(ctx, Key{Text: "30 LAT", Model: "m"}, load)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetOrLoad_ErrorsAreNotCached(t *testing.T) {
	c := newTestCache(t, 10)
	ctx := context.Background()
	key := Key{Text: "x", Model: "m"}

	_, err := c.GetOrLoad(ctx, key, func(context.Context) (string, error) {
		return "", errors.New("backend down")
	})
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())

	reply, err := c.GetOrLoad(ctx, key, func(context.Context) (string, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
}

func TestGetOrLoad_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newTestCache(t, 2)
	ctx := context.Background()
	load := func(v string) Loader {
		return func(context.Context) (string, error) { return v, nil }
	}

	_, _ = c.GetOrLoad(ctx, Key{Text: "a", Model: "m"}, load("a"))
	_, _ = c.GetOrLoad(ctx, Key{Text: "b", Model: "m"}, load("b"))
	_, _ = c.GetOrLoad(ctx, Key{Text: "a", Model: "m"}, load("a")) // touch a
	_, _ = c.GetOrLoad(ctx, Key{Text: "c", Model: "m"}, load("c"))

	_, ok := c.Get(Key{Text: "b", Model: "m"})
	assert.False(t, ok, "b was least recently used")
	_, ok = c.Get(Key{Text: "a", Model: "m"})
	assert.True(t, ok)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestGetOrLoad_ConcurrentMissesShareOneLoad(t *testing.T) {
	c := newTestCache(t, 10)
	ctx := context.Background()
	key := Key{Text: "female 45 25 min", Model: "m"}

	release := make(chan struct{})
	var calls atomic.Int32
	load := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "shared", nil
	}

	const callers = 8
	var wg sync.WaitGroup
	results := make([]string, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := c.GetOrLoad(ctx, key, load)
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
}

func TestGetOrLoad_CallerCancellation(t *testing.T) {
	c := newTestCache(t, 10)
	key := Key{Text: "slow", Model: "m"}

	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		reply, err := c.GetOrLoad(context.Background(), key, func(context.Context) (string, error) {
			<-release
			return "late", nil
		})
		assert.NoError(t, err)
		assert.Equal(t, "late", reply)
	}()

	time.Sleep(20 * time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetOrLoad(ctx, key, func(context.Context) (string, error) {
		return "unused", nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	close(release)
	<-done

	reply, ok := c.Get(key)
	assert.True(t, ok)
	assert.Equal(t, "late", reply)
}

func TestClear(t *testing.T) {
	tl := logging.NewTestLogger()
	c, err := New(Options{Capacity: 10, Logger: tl.Logger})
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := c.GetOrLoad(ctx, Key{Text: fmt.Sprint(i), Model: "m"}, func(context.Context) (string, error) {
			return "r", nil
		})
		require.NoError(t, err)
	}

	n, err := c.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), c.Stats().Evictions)
	tl.AssertLogged(t, zapcore.InfoLevel, "llm reply cache cleared")
	tl.AssertField(t, "llm reply cache cleared", "entries", int64(3))
}

type memStore struct {
	mu      sync.Mutex
	entries map[Key]string
	getErr  error
}

func newMemStore() *memStore { return &memStore{entries: map[Key]string{}} }

func (m *memStore) Get(_ context.Context, k Key) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.entries[k]
	return v, ok, nil
}

func (m *memStore) Put(_ context.Context, k Key, v string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[k] = v
	return nil
}

func (m *memStore) Clear(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.entries)
	m.entries = map[Key]string{}
	return n, nil
}

func (m *memStore) Close() error { return nil }

func TestGetOrLoad_PersistentTier(t *testing.T) {
	store := newMemStore()
	key := Key{Text: "k 28 lat 26:00", Model: "m"}
	store.entries[key] = "persisted"

	c, err := New(Options{Capacity: 10, Store: store})
	require.NoError(t, err)

	reply, err := c.GetOrLoad(context.Background(), key, func(context.Context) (string, error) {
		t.Fatal("loader must not run when the store has the reply")
		return "", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "persisted", reply)

	other := Key{Text: "new", Model: "m"}
	_, err = c.GetOrLoad(context.Background(), other, func(context.Context) (string, error) {
		return "fresh", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "fresh", store.entries[other], "loads are written through")

	_, err = c.Clear(context.Background())
	require.NoError(t, err)
	assert.Empty(t, store.entries)
}

func TestGetOrLoad_StoreReadFailureFallsThrough(t *testing.T) {
	store := newMemStore()
	store.getErr = errors.New("disk I/O error")
	tl := logging.NewTestLogger()

	c, err := New(Options{Capacity: 10, Store: store, Logger: tl.Logger})
	require.NoError(t, err)

	reply, err := c.GetOrLoad(context.Background(), Key{Text: "t", Model: "m"}, func(context.Context) (string, error) {
		return "loaded", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "loaded", reply)
	tl.AssertLogged(t, zapcore.WarnLevel, "persistent cache read failed")
}
