package store

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kahncode1/narrasync/internal/cache"
	"github.com/kahncode1/narrasync/timing"
	"github.com/kahncode1/narrasync/timing/collection"
)

// setupTestStore creates a temporary store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(filepath.Join(t.TempDir(), "docs.db"), Options{CompressionLevel: 3}, log.New(io.Discard))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutGetDelete(t *testing.T) {
	s := setupTestStore(t)

	require.NoError(t, s.Put("doc-1", []byte(`{"words":[],"sentences":[]}`)))

	got, err := s.Get("doc-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"words":[],"sentences":[]}`, string(got))

	require.NoError(t, s.Delete("doc-1"))
	_, err = s.Get("doc-1")
	assert.ErrorIs(t, err, timing.ErrCacheMiss)

	assert.NoError(t, s.Delete("never-stored"))
	assert.ErrorIs(t, s.Put("", []byte("x")), cache.ErrInvalidKey)
}

func TestKeysAndEntries(t *testing.T) {
	s := setupTestStore(t)

	for _, k := range []string{"b", "a", "c"} {
		require.NoError(t, s.Put(k, []byte("value-"+k)))
	}

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, keys)

	entries, err := s.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, int64(len("value-"+e.Key)), e.Size)
		assert.Equal(t, cache.LevelL2, e.Level)
		assert.False(t, e.Created.IsZero())
	}

	require.NoError(t, s.Clear())
	keys, err = s.Keys()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestInMemory(t *testing.T) {
	s, err := Open("", Options{InMemory: true}, nil)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put("k", []byte("v")))
	got, err := s.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}

func TestReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "docs.db")

	s, err := Open(path, Options{}, nil)
	require.NoError(t, err)
	require.NoError(t, s.Put("kept", []byte("data")))
	require.NoError(t, s.Close())

	s, err = Open(path, Options{}, nil)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get("kept")
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))
}

func TestAsManagerL2(t *testing.T) {
	s := setupTestStore(t)
	m := cache.NewManager(1, cache.WithStore(s), cache.WithLogger(log.New(io.Discard)))
	ctx := context.Background()

	doc := &timing.Document{
		Words: []timing.WordTiming{
			{Word: "Hi", StartMs: 0, EndMs: 200},
			{Word: "there", StartMs: 200, EndMs: 500},
		},
		Sentences: []timing.SentenceTiming{
			{Text: "Hi there", StartMs: 0, EndMs: 500, WordEndIndex: 1},
		},
		TotalDurationMs: 500,
	}
	require.NoError(t, m.Put(ctx, "a", collection.New(doc)))
	require.NoError(t, m.Put(ctx, "b", collection.New(doc)))

	// "a" was pushed out of L1 and comes back from badger.
	c, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, c.FindActiveWordIndex(300))
	assert.Equal(t, int64(1), m.Stats().L2Hits)

	entries, err := m.Entries()
	require.NoError(t, err)
	assert.Len(t, entries, 3) // one in L1, two in L2
}
