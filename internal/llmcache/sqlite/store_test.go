package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/pacer/internal/llmcache"
)

func newTestStore(t *testing.T, ttl time.Duration) *Store {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "replies.db"), ttl)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestHashText(t *testing.T) {
	assert.Equal(t, HashText("30 lat, 24:30"), HashText("30 lat, 24:30"))
	assert.NotEqual(t, HashText("30 lat, 24:30"), HashText("30 lat, 24:31"))
	assert.Len(t, HashText(""), 64)
}

func TestStore_PutAndGet(t *testing.T) {
	s := newTestStore(t, time.Hour)
	ctx := context.Background()
	key := llmcache.Key{Text: "kobieta 41 lat", Model: "gpt-4o-mini"}

	require.NoError(t, s.Put(ctx, key, `{"gender":"female","age":41}`))

	reply, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"gender":"female","age":41}`, reply)

	_, ok, err = s.Get(ctx, llmcache.Key{Text: key.Text, Model: "gpt-4o"})
	require.NoError(t, err)
	assert.False(t, ok, "different model must miss")

	hits, misses := s.Counts()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestStore_TTLExpiration(t *testing.T) {
	s := newTestStore(t, time.Minute)
	ctx := context.Background()
	key := llmcache.Key{Text: "m 30", Model: "llama3.1"}

	base := time.Unix(1_700_000_000, 0)
	s.now = func() time.Time { return base }
	require.NoError(t, s.Put(ctx, key, "{}"))

	s.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, ok, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	n, err := s.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_Clear(t *testing.T) {
	s := newTestStore(t, 0)
	ctx := context.Background()

	for _, text := range []string{"a", "b", "c"} {
		require.NoError(t, s.Put(ctx, llmcache.Key{Text: text, Model: "m"}, "{}"))
	}

	n, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, ok, err := s.Get(ctx, llmcache.Key{Text: "a", Model: "m"})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_BacksCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replies.db")
	ctx := context.Background()
	key := llmcache.Key{Text: "male, 35, 5k 22:10", Model: "gpt-4o-mini"}
	calls := 0
	load := func(context.Context) (string, error) {
		calls++
		return `{"age":35}`, nil
	}

	first, err := New(path, time.Hour)
	require.NoError(t, err)
	c1, err := llmcache.New(llmcache.Options{Capacity: 4, Store: first})
	require.NoError(t, err)
	_, err = c1.GetOrLoad(ctx, key, load)
	require.NoError(t, err)
	require.NoError(t, c1.Close())

	second, err := New(path, time.Hour)
	require.NoError(t, err)
	c2, err := llmcache.New(llmcache.Options{Capacity: 4, Store: second})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c2.Close() })

	reply, err := c2.GetOrLoad(ctx, key, load)
	require.NoError(t, err)
	assert.Equal(t, `{"age":35}`, reply)
	assert.Equal(t, 1, calls, "reply should survive a restart")
}
