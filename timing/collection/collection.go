// Package collection answers "which word and sentence are active at this
// position" for one loaded document.
package collection

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kahncode1/narrasync/timing"
)

// Collection is an immutable set of word and sentence timings with a
// locality cursor for sequential playback. Lookups are safe for concurrent
// use; the cursor only speeds them up and never changes a result.
type Collection struct {
	doc       timing.Document
	words     intervals
	sentences intervals
	total     int64
	table     *timing.LookupTable

	mu             sync.Mutex
	wordCursor     int
	sentenceCursor int
	resets         *rate.Limiter
}

// Option configures a Collection.
type Option func(*Collection)

// WithSeekDebounce sets the minimum spacing between effective locality
// resets. Zero disables debouncing.
func WithSeekDebounce(d time.Duration) Option {
	return func(c *Collection) {
		if d <= 0 {
			c.resets = nil
			return
		}
		c.resets = rate.NewLimiter(rate.Every(d), 1)
	}
}

// WithLookupTable uses t as a hint when the cursor misses.
func WithLookupTable(t *timing.LookupTable) Option {
	return func(c *Collection) {
		c.table = t
	}
}

// New builds a collection from doc. The document is copied, so later
// changes to it are not observed. Start times are made non-decreasing and
// every end is raised to at least its start; the total duration covers the
// last word and sentence.
func New(doc *timing.Document, opts ...Option) *Collection {
	c := &Collection{
		wordCursor:     -1,
		sentenceCursor: -1,
		resets:         rate.NewLimiter(rate.Every(timing.DefaultSeekDebounce), 1),
	}
	if doc != nil {
		c.doc = *doc
		c.table = doc.LookupTable
	}
	c.doc.Words = repairWords(c.doc.Words)
	c.doc.Sentences = repairSentences(c.doc.Sentences)
	c.doc.Paragraphs = append([]string(nil), c.doc.Paragraphs...)
	c.doc.Headers = append([]string(nil), c.doc.Headers...)

	c.words = wordIntervals(c.doc.Words)
	c.sentences = sentenceIntervals(c.doc.Sentences)

	c.total = max(c.doc.TotalDurationMs, c.words.lastEnd(), c.sentences.lastEnd())
	c.doc.TotalDurationMs = c.total

	for _, opt := range opts {
		opt(c)
	}
	c.doc.LookupTable = c.table
	return c
}

func repairWords(in []timing.WordTiming) []timing.WordTiming {
	out := make([]timing.WordTiming, len(in))
	copy(out, in)
	for i := range out {
		w := &out[i]
		w.StartMs = timing.ClampMs(w.StartMs)
		if i > 0 {
			w.StartMs = max(w.StartMs, out[i-1].StartMs)
		}
		w.EndMs = max(w.EndMs, w.StartMs)
		if s, e, ok := w.CharRange(); ok {
			*w = w.WithCharRange(s, e)
		}
	}
	return out
}

func repairSentences(in []timing.SentenceTiming) []timing.SentenceTiming {
	out := make([]timing.SentenceTiming, len(in))
	copy(out, in)
	for i := range out {
		s := &out[i]
		s.StartMs = timing.ClampMs(s.StartMs)
		if i > 0 {
			s.StartMs = max(s.StartMs, out[i-1].StartMs)
		}
		s.EndMs = max(s.EndMs, s.StartMs)
		if s.CharStart != nil {
			s.CharStart = timing.IntPtr(*s.CharStart)
		}
		if s.CharEnd != nil {
			s.CharEnd = timing.IntPtr(*s.CharEnd)
		}
	}
	return out
}

// FindActiveWordIndex returns the word spoken at positionMs. Between words
// it returns the next word, past the end the last word, and -1 before the
// first word or when the collection is empty.
func (c *Collection) FindActiveWordIndex(positionMs int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	hint := -1
	if w, _, ok := c.table.At(positionMs); ok {
		hint = w
	}
	i := c.words.find(positionMs, c.total, c.wordCursor, hint)
	if i >= 0 {
		c.wordCursor = i
	}
	return i
}

// FindActiveSentenceIndex is FindActiveWordIndex over sentences.
func (c *Collection) FindActiveSentenceIndex(positionMs int64) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	hint := -1
	if _, s, ok := c.table.At(positionMs); ok {
		hint = s
	}
	i := c.sentences.find(positionMs, c.total, c.sentenceCursor, hint)
	if i >= 0 {
		c.sentenceCursor = i
	}
	return i
}

// ResetLocality clears the cursors after a seek. See ResetLocalityAt.
func (c *Collection) ResetLocality() bool {
	return c.ResetLocalityAt(time.Now())
}

// ResetLocalityAt clears the cursors as of now. Resets closer together
// than the seek debounce are dropped; it reports whether this one took
// effect.
func (c *Collection) ResetLocalityAt(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.resets != nil && !c.resets.AllowN(now, 1) {
		return false
	}
	c.wordCursor = -1
	c.sentenceCursor = -1
	return true
}

// Words returns a copy of the word timings.
func (c *Collection) Words() []timing.WordTiming {
	return repairWords(c.doc.Words)
}

// Sentences returns a copy of the sentence timings.
func (c *Collection) Sentences() []timing.SentenceTiming {
	return repairSentences(c.doc.Sentences)
}

// Word returns word i.
func (c *Collection) Word(i int) (timing.WordTiming, bool) {
	if i < 0 || i >= len(c.doc.Words) {
		return timing.WordTiming{}, false
	}
	return repairWords(c.doc.Words[i : i+1])[0], true
}

// Sentence returns sentence i.
func (c *Collection) Sentence(i int) (timing.SentenceTiming, bool) {
	if i < 0 || i >= len(c.doc.Sentences) {
		return timing.SentenceTiming{}, false
	}
	return repairSentences(c.doc.Sentences[i : i+1])[0], true
}

// WordCount returns the number of words.
func (c *Collection) WordCount() int { return len(c.doc.Words) }

// SentenceCount returns the number of sentences.
func (c *Collection) SentenceCount() int { return len(c.doc.Sentences) }

// TotalDurationMs returns the narration length.
func (c *Collection) TotalDurationMs() int64 { return c.total }

// IsEmpty reports whether there is nothing to highlight.
func (c *Collection) IsEmpty() bool { return len(c.doc.Words) == 0 }

// HasLookupTable reports whether a lookup table is attached.
func (c *Collection) HasLookupTable() bool { return c.table != nil }

// Document returns a copy of the underlying document.
func (c *Collection) Document() *timing.Document {
	d := c.doc
	d.Words = c.Words()
	d.Sentences = c.Sentences()
	d.Paragraphs = append([]string(nil), c.doc.Paragraphs...)
	d.Headers = append([]string(nil), c.doc.Headers...)
	if c.doc.Metadata != nil {
		m := *c.doc.Metadata
		d.Metadata = &m
	}
	if c.table != nil {
		t := *c.table
		t.Lookup = append([][2]int(nil), c.table.Lookup...)
		d.LookupTable = &t
	}
	return &d
}

// intervals holds the start and end columns of words or sentences.
type intervals struct {
	starts []int64
	ends   []int64
}

func wordIntervals(words []timing.WordTiming) intervals {
	iv := intervals{starts: make([]int64, len(words)), ends: make([]int64, len(words))}
	for i, w := range words {
		iv.starts[i], iv.ends[i] = w.StartMs, w.EndMs
	}
	return iv
}

func sentenceIntervals(sentences []timing.SentenceTiming) intervals {
	iv := intervals{starts: make([]int64, len(sentences)), ends: make([]int64, len(sentences))}
	for i, s := range sentences {
		iv.starts[i], iv.ends[i] = s.StartMs, s.EndMs
	}
	return iv
}

func (iv intervals) len() int { return len(iv.starts) }

func (iv intervals) lastEnd() int64 {
	var end int64
	for _, e := range iv.ends {
		end = max(end, e)
	}
	return end
}

// find checks the cursor, its successor and the hint before falling back
// to search. A candidate is only accepted when it is exactly what search
// would return.
func (iv intervals) find(p, total int64, cursor, hint int) int {
	n := iv.len()
	if n == 0 || p < iv.starts[0] {
		return -1
	}
	if p > total {
		return n - 1
	}
	if cursor >= 0 {
		if iv.settled(cursor, p) {
			return cursor
		}
		if iv.settled(cursor+1, p) {
			return cursor + 1
		}
	}
	if iv.settled(hint, p) {
		return hint
	}
	return iv.search(p)
}

// settled reports whether i is the last interval starting at or before p
// and contains p.
func (iv intervals) settled(i int, p int64) bool {
	n := iv.len()
	if i < 0 || i >= n {
		return false
	}
	if iv.starts[i] > p || p > iv.ends[i] {
		return false
	}
	return i+1 == n || iv.starts[i+1] > p
}

// search requires n > 0 and p >= starts[0].
func (iv intervals) search(p int64) int {
	n := iv.len()
	i := sort.Search(n, func(j int) bool { return iv.starts[j] > p }) - 1

	switch {
	case iv.ends[i] >= p:
		return i
	case i > 0 && iv.ends[i-1] >= p:
		return i - 1
	case i+1 < n:
		return i + 1
	default:
		return n - 1
	}
}
