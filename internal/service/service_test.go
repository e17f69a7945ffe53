package service

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kahncode1/narrasync/internal/provider"
	"github.com/kahncode1/narrasync/internal/watcher"
	"github.com/kahncode1/narrasync/internal/worker"
	"github.com/kahncode1/narrasync/timing"
	tsync "github.com/kahncode1/narrasync/timing/sync"
)

const (
	narrationText  = "Hello world. Dr. Smith won."
	narrationMarks = `[
		{"word":"Hello","start_ms":0,"end_ms":400},
		{"word":"world.","start_ms":400,"end_ms":900},
		{"word":"Dr.","start_ms":1300,"end_ms":1600},
		{"word":"Smith","start_ms":1600,"end_ms":2000},
		{"word":"won.","start_ms":2000,"end_ms":2400}
	]`
)

// executors runs each test against both executors with the same fixtures.
var executors = map[string]func() worker.Executor{
	"inline": func() worker.Executor { return worker.New(0) },
	"pool":   func() worker.Executor { return worker.New(2) },
}

func newTestService(t *testing.T, exec worker.Executor, dir string, modify ...func(*timing.Config)) *TimingService {
	t.Helper()
	cfg := timing.DefaultConfig()
	cfg.Cache.Backend = "memory"
	for _, m := range modify {
		m(&cfg)
	}
	s := New(cfg,
		WithExecutor(exec),
		WithDocumentsDir(dir),
		WithLogger(log.New(io.Discard)))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestAlignEndToEnd(t *testing.T) {
	for name, exec := range executors {
		t.Run(name, func(t *testing.T) {
			s := newTestService(t, exec(), "")

			res, err := s.Align(context.Background(), Request{
				Source:  "narration.json",
				Payload: []byte(narrationMarks),
				Text:    narrationText,
			})
			require.NoError(t, err)
			assert.Equal(t, provider.KindWordMarks, res.Kind)
			assert.False(t, res.Synthetic)

			doc := res.Document
			require.Len(t, doc.Sentences, 2)
			assert.Equal(t, "Hello world.", doc.Sentences[0].Text)
			assert.Equal(t, "Dr. Smith won.", doc.Sentences[1].Text)
			assert.Equal(t, []int{0, 0, 1, 1, 1}, sentenceIndices(doc.Words))

			// Punctuation is stripped and the 400ms gap closed.
			assert.Equal(t, "world", doc.Words[1].Word)
			assert.Equal(t, "Dr", doc.Words[2].Word)
			assert.Equal(t, int64(1300), doc.Words[1].EndMs)
			assert.Equal(t, int64(1300), doc.Sentences[0].EndMs)
			assert.Equal(t, int64(1300), doc.Sentences[1].StartMs)
			assert.Equal(t, 1, res.Gaps.Gaps)

			assert.Equal(t, int64(2400), doc.TotalDurationMs)
			assert.Equal(t, timing.DocumentVersion, doc.Version)
			assert.Equal(t, "narration.json", doc.Source)
			require.NotNil(t, doc.Metadata)
			assert.Equal(t, timing.Metadata{
				WordCount:               5,
				CharacterCount:          27,
				EstimatedReadingMinutes: 1,
				Language:                "en",
			}, *doc.Metadata)
			assert.Nil(t, doc.LookupTable)
		})
	}
}

func TestAlignFallsBackToSyntheticTiming(t *testing.T) {
	s := newTestService(t, worker.New(0), "")

	for _, payload := range []string{`not json`, `{"foo":1}`, `[]`} {
		res, err := s.Align(context.Background(), Request{
			Payload: []byte(payload),
			Text:    "One two. Three four.",
		})
		require.NoError(t, err, payload)
		assert.True(t, res.Synthetic, payload)
		require.Len(t, res.Document.Words, 4)
		assert.Equal(t, int64(400), res.Document.Words[0].EndMs)
		assert.Len(t, res.Document.Sentences, 2)
		assert.Equal(t, int64(1600), res.Document.TotalDurationMs)
	}

	_, err := s.Align(context.Background(), Request{Payload: []byte(`oops`)})
	require.ErrorIs(t, err, timing.ErrEmptyText)
	var aerr *timing.AlignmentError
	assert.ErrorAs(t, err, &aerr)
}

func TestAlignCharacterAlignment(t *testing.T) {
	s := newTestService(t, worker.New(0), "")

	res, err := s.Align(context.Background(), Request{Payload: []byte(`{"alignment":{
		"characters":["H","i"," ","y","o","u","."],
		"character_start_times_seconds":[0,0.1,0.2,0.3,0.4,0.5,0.6],
		"character_end_times_seconds":[0.1,0.2,0.3,0.4,0.5,0.6,0.7]}}`)})
	require.NoError(t, err)

	doc := res.Document
	assert.Equal(t, provider.KindCharAlignment, res.Kind)
	assert.Equal(t, "Hi you.", doc.DisplayText)
	require.Len(t, doc.Words, 2)
	assert.Equal(t, "you", doc.Words[1].Word)
	require.Len(t, doc.Sentences, 1)
	assert.Equal(t, "Hi you.", doc.Sentences[0].Text)
	assert.Equal(t, int64(700), doc.TotalDurationMs)
}

func TestAlignPreprocessedDocument(t *testing.T) {
	s := newTestService(t, worker.New(0), "", func(c *timing.Config) {
		c.Collection.BuildLookup = true
	})

	payload := `{"timing":{"words":[
		{"word":"Yes","startMs":0,"endMs":300,"sentenceIndex":0},
		{"word":"no","startMs":300,"endMs":600,"sentenceIndex":1}],
		"sentences":[
		{"text":"Yes.","startMs":0,"endMs":300,"wordStartIndex":0,"wordEndIndex":0,"sentenceIndex":0},
		{"text":"No.","startMs":300,"endMs":600,"wordStartIndex":1,"wordEndIndex":1,"sentenceIndex":1}],
		"totalDurationMs":600}}`

	res, err := s.Align(context.Background(), Request{Payload: []byte(payload), Text: "Yes. No."})
	require.NoError(t, err)
	assert.Equal(t, provider.KindDocument, res.Kind)

	doc := res.Document
	assert.Equal(t, "Yes. No.", doc.DisplayText)
	assert.Equal(t, "no", doc.Words[1].Word, "documents are loaded without inference")
	require.NotNil(t, doc.LookupTable)
	assert.Equal(t, int64(10), doc.LookupTable.Interval)
	require.NotNil(t, doc.Metadata)
	assert.Equal(t, 2, doc.Metadata.WordCount)
}

func TestLoadFromDocumentsDir(t *testing.T) {
	for name, exec := range executors {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeDoc(t, dir, "chapter.json", `[
				{"word":"Title","start_ms":0,"end_ms":300},
				{"word":"Hello","start_ms":350,"end_ms":600},
				{"word":"world.","start_ms":600,"end_ms":900}]`)
			writeDoc(t, dir, "chapter.md", "# Title\n\nHello world.")

			s := newTestService(t, exec(), dir)
			ctx := context.Background()

			c, err := s.Load(ctx, "chapter")
			require.NoError(t, err)
			require.Equal(t, 2, c.SentenceCount())
			first, _ := c.Sentence(0)
			assert.Equal(t, "Title", first.Text)
			assert.Equal(t, 1, c.FindActiveSentenceIndex(700))
			assert.Equal(t, []string{"Title"}, c.Document().Headers)

			again, err := s.Load(ctx, "chapter")
			require.NoError(t, err)
			assert.Same(t, c, again)
			assert.Equal(t, int64(1), s.Cache().Stats().L1Hits)

			require.NoError(t, s.Invalidate("chapter"))
			reloaded, err := s.Load(ctx, "chapter")
			require.NoError(t, err)
			assert.NotSame(t, c, reloaded)

			_, err = s.Load(ctx, "missing")
			assert.ErrorIs(t, err, timing.ErrCacheMiss)
			_, err = s.Load(ctx, "../escape")
			assert.Error(t, err)
		})
	}
}

func TestPrefetch(t *testing.T) {
	for name, exec := range executors {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			ids := []string{"a", "b", "c"}
			for _, id := range ids {
				writeDoc(t, dir, id+".json", narrationMarks)
				writeDoc(t, dir, id+".txt", narrationText)
			}

			s := newTestService(t, exec(), dir)
			require.NoError(t, s.Prefetch(context.Background(), ids...))
			assert.ElementsMatch(t, ids, s.Cache().Resident())

			assert.ErrorIs(t, s.Prefetch(context.Background(), "a", "nope"), timing.ErrCacheMiss)
		})
	}
}

func TestActivateAndFollow(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "one.json", narrationMarks)
	writeDoc(t, dir, "one.txt", narrationText)
	writeDoc(t, dir, "two.json", narrationMarks)
	writeDoc(t, dir, "two.txt", narrationText)

	s := newTestService(t, worker.New(0), dir, func(c *timing.Config) {
		c.Emitter.Interval = 5 * time.Millisecond
		c.Collection.SeekDebounce = 0
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	assert.False(t, s.Seek(), "no active document")

	_, err := s.Activate(ctx, "one")
	require.NoError(t, err)
	id, _, ok := s.Active()
	require.True(t, ok)
	assert.Equal(t, "one", id)

	var pos atomic.Int64
	emitter, err := s.Follow(ctx, timing.PositionFunc(func() time.Duration {
		return time.Duration(pos.Load()) * time.Millisecond
	}))
	require.NoError(t, err)
	sub, err := emitter.Subscribe()
	require.NoError(t, err)

	pos.Store(1500)
	waitForPair(t, sub.C, 2, 1)

	_, err = s.Activate(ctx, "two")
	require.NoError(t, err)
	waitForPair(t, sub.C, 2, 1)

	assert.True(t, s.Seek())
}

func TestInvalidateOn(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "doc.json", narrationMarks)

	s := newTestService(t, worker.New(0), dir)
	ctx := context.Background()
	_, err := s.Load(ctx, "doc")
	require.NoError(t, err)

	events := make(chan watcher.Event, 1)
	events <- watcher.Event{ID: "doc"}
	close(events)
	s.InvalidateOn(ctx, events)

	_, ok := s.Cache().Peek("doc")
	assert.False(t, ok)
}

func waitForPair(t *testing.T, c <-chan tsync.Pair, word, sentence int) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case p := <-c:
			if p.WordIndex == word && p.SentenceIndex == sentence {
				return
			}
		case <-deadline:
			t.Fatalf("no pair (%d, %d) emitted", word, sentence)
		}
	}
}

func sentenceIndices(words []timing.WordTiming) []int {
	out := make([]int, len(words))
	for i, w := range words {
		out[i] = w.SentenceIndex
	}
	return out
}
