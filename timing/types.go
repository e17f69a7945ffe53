// Package timing defines the word and sentence timing model shared by the
// alignment pipeline, the query engine and the persisted document format.
package timing

import "time"

// WordTiming locates one spoken word on the audio timeline.
type WordTiming struct {
	Word          string `json:"word"`
	StartMs       int64  `json:"startMs"`
	EndMs         int64  `json:"endMs"`
	SentenceIndex int    `json:"sentenceIndex"`

	// Half-open byte offsets into the display text. Nil when unresolved.
	CharStart *int `json:"charStart,omitempty"`
	CharEnd   *int `json:"charEnd,omitempty"`
}

// CharRange returns the word's display text span and whether it is known.
func (w WordTiming) CharRange() (start, end int, ok bool) {
	if w.CharStart == nil || w.CharEnd == nil {
		return 0, 0, false
	}
	return *w.CharStart, *w.CharEnd, true
}

// WithCharRange returns a copy of w spanning [start, end).
func (w WordTiming) WithCharRange(start, end int) WordTiming {
	if end < start {
		end = start
	}
	w.CharStart = IntPtr(start)
	w.CharEnd = IntPtr(end)
	return w
}

// Contains reports whether positionMs falls inside [StartMs, EndMs].
func (w WordTiming) Contains(positionMs int64) bool {
	return w.StartMs <= positionMs && positionMs <= w.EndMs
}

// Duration returns the spoken length of the word.
func (w WordTiming) Duration() time.Duration {
	return time.Duration(w.EndMs-w.StartMs) * time.Millisecond
}

// SentenceTiming is one sentence span. Word indices are inclusive.
type SentenceTiming struct {
	Text           string `json:"text"`
	StartMs        int64  `json:"startMs"`
	EndMs          int64  `json:"endMs"`
	WordStartIndex int    `json:"wordStartIndex"`
	WordEndIndex   int    `json:"wordEndIndex"`
	SentenceIndex  int    `json:"sentenceIndex"`
	CharStart      *int   `json:"charStart,omitempty"`
	CharEnd        *int   `json:"charEnd,omitempty"`
}

// Contains reports whether positionMs falls inside [StartMs, EndMs].
func (s SentenceTiming) Contains(positionMs int64) bool {
	return s.StartMs <= positionMs && positionMs <= s.EndMs
}

// WordCount returns the number of words the sentence covers.
func (s SentenceTiming) WordCount() int {
	if s.WordEndIndex < s.WordStartIndex {
		return 0
	}
	return s.WordEndIndex - s.WordStartIndex + 1
}

// Metadata describes a processed document.
type Metadata struct {
	WordCount               int    `json:"wordCount"`
	CharacterCount          int    `json:"characterCount"`
	EstimatedReadingMinutes int    `json:"estimatedReadingMinutes"`
	Language                string `json:"language,omitempty"`
}

// LookupTable maps fixed time slots to [word, sentence] index pairs.
// Entry i covers position i*Interval.
type LookupTable struct {
	Version         string   `json:"version"`
	Interval        int64    `json:"interval"`
	TotalDurationMs int64    `json:"totalDurationMs"`
	Lookup          [][2]int `json:"lookup"`
}

// At returns the entry covering positionMs.
func (t *LookupTable) At(positionMs int64) (word, sentence int, ok bool) {
	if t == nil || t.Interval <= 0 || positionMs < 0 || len(t.Lookup) == 0 {
		return -1, -1, false
	}
	slot := positionMs / t.Interval
	if slot >= int64(len(t.Lookup)) {
		slot = int64(len(t.Lookup)) - 1
	}
	e := t.Lookup[slot]
	return e[0], e[1], true
}

// Document is the persisted, pre-processed layout of one narrated text.
// The words, sentences and totalDurationMs fields are required; the rest
// are carried when the producing pipeline knows them.
type Document struct {
	Version     string    `json:"version,omitempty"`
	Source      string    `json:"source,omitempty"`
	DisplayText string    `json:"displayText,omitempty"`
	Paragraphs  []string  `json:"paragraphs,omitempty"`
	Headers     []string  `json:"headers,omitempty"`
	Metadata    *Metadata `json:"metadata,omitempty"`

	Words           []WordTiming     `json:"words"`
	Sentences       []SentenceTiming `json:"sentences"`
	TotalDurationMs int64            `json:"totalDurationMs"`

	LookupTable *LookupTable `json:"lookupTable,omitempty"`
}

// DocumentVersion is written to every document produced by this module.
const DocumentVersion = "1.0"

// IsEmpty reports whether the document has nothing to highlight.
func (d *Document) IsEmpty() bool {
	return d == nil || len(d.Words) == 0
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int {
	return &v
}

// ClampMs clamps negative provider timestamps to zero.
func ClampMs(ms int64) int64 {
	if ms < 0 {
		return 0
	}
	return ms
}

// SecondsToMs converts fractional provider seconds to whole milliseconds.
func SecondsToMs(s float64) int64 {
	return ClampMs(int64(s*1000 + 0.5))
}
