// Package chars turns per-character provider timestamps into word timings.
package chars

import (
	"strings"
	"time"

	"github.com/kahncode1/narrasync/timing"
	"github.com/kahncode1/narrasync/timing/align"
)

// Mark is one character and the time it starts being spoken.
type Mark struct {
	Char    string
	StartMs int64
	// EndMs is used when the provider reports it; nil means it is derived
	// from the next mark.
	EndMs *int64
}

// Alignment is the columnar character layout some providers return, with
// times in seconds.
type Alignment struct {
	Characters []string  `json:"characters"`
	Starts     []float64 `json:"character_start_times_seconds"`
	Ends       []float64 `json:"character_end_times_seconds"`
}

// Marks converts the columns to marks. Rows missing a start time are
// dropped; a missing end time is derived.
func (a Alignment) Marks() []Mark {
	n := min(len(a.Characters), len(a.Starts))
	marks := make([]Mark, 0, n)
	for i := 0; i < n; i++ {
		m := Mark{Char: a.Characters[i], StartMs: timing.SecondsToMs(a.Starts[i])}
		if i < len(a.Ends) {
			end := timing.SecondsToMs(a.Ends[i])
			m.EndMs = &end
		}
		marks = append(marks, m)
	}
	return marks
}

// Text reconstructs the spoken text from the characters.
func (a Alignment) Text() string {
	return strings.Join(a.Characters, "")
}

// Transformer groups character marks into words.
type Transformer struct {
	lastCharDuration int64
}

// NewTransformer creates a transformer. lastCharDuration is the length
// given to the final character, which has no successor to end it.
func NewTransformer(lastCharDuration time.Duration) *Transformer {
	if lastCharDuration < 0 {
		lastCharDuration = 0
	}
	return &Transformer{lastCharDuration: lastCharDuration.Milliseconds()}
}

// Transform groups marks into words separated by spaces, newlines and tabs.
// Every word gets sentence index 0. Character offsets are byte offsets into
// the concatenation of the mark characters, not into any display text;
// sentence inference resolves them against the display text later. Empty
// or all-whitespace input yields an empty, non-nil slice.
func (t *Transformer) Transform(marks []Mark) []timing.WordTiming {
	words := make([]timing.WordTiming, 0, len(marks)/5+1)

	var (
		buf       strings.Builder
		wordStart int64
		charStart int
		offset    int
		open      bool
	)

	flush := func(endMs int64) {
		if !open {
			return
		}
		raw := buf.String()
		w := timing.WordTiming{
			Word:    surface(raw),
			StartMs: wordStart,
			EndMs:   max(endMs, wordStart),
		}
		words = append(words, w.WithCharRange(charStart, charStart+len(raw)))
		buf.Reset()
		open = false
	}

	for i, m := range marks {
		end := t.endOf(marks, i)

		if isBoundary(m.Char) {
			flush(end)
			offset += len(m.Char)
			continue
		}

		if !open {
			open = true
			wordStart = timing.ClampMs(m.StartMs)
			charStart = offset
		}
		buf.WriteString(m.Char)
		offset += len(m.Char)

		if i == len(marks)-1 {
			flush(end)
		}
	}

	return words
}

// endOf is the end of mark i: the provider's value when present, else the
// next mark's start, else start plus the last character duration.
func (t *Transformer) endOf(marks []Mark, i int) int64 {
	m := marks[i]
	start := timing.ClampMs(m.StartMs)
	if m.EndMs != nil {
		return max(timing.ClampMs(*m.EndMs), start)
	}
	if i+1 < len(marks) {
		return max(timing.ClampMs(marks[i+1].StartMs), start)
	}
	return start + t.lastCharDuration
}

func isBoundary(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !align.IsWordBoundaryRune(r) {
			return false
		}
	}
	return true
}

// surface strips trailing punctuation. Tokens made only of punctuation keep
// their raw form so they can still be located in the text.
func surface(raw string) string {
	if w := align.TrimTrailingPunctuation(raw); w != "" {
		return w
	}
	return raw
}
