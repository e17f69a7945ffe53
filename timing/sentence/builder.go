package sentence

import (
	"strings"

	"github.com/kahncode1/narrasync/timing"
	"github.com/kahncode1/narrasync/timing/align"
)

// Build groups words into sentences. Runs of equal sentence index become
// one sentence, and the returned words are renumbered so indices are dense
// and non-decreasing even when a provider skipped or reused numbers.
// Sentence text is cut from displayText when every word has a span, and
// joined from the words otherwise.
func Build(words []timing.WordTiming, displayText string) ([]timing.WordTiming, []timing.SentenceTiming) {
	out := make([]timing.WordTiming, len(words))
	copy(out, words)
	sentences := make([]timing.SentenceTiming, 0, len(out)/8+1)

	start := 0
	for i := 1; i <= len(out); i++ {
		if i < len(out) && out[i].SentenceIndex == out[start].SentenceIndex {
			continue
		}
		idx := len(sentences)
		for j := start; j < i; j++ {
			out[j].SentenceIndex = idx
		}
		sentences = append(sentences, span(out, start, i-1, idx, displayText))
		start = i
	}

	return out, sentences
}

func span(words []timing.WordTiming, first, last, idx int, text string) timing.SentenceTiming {
	s := timing.SentenceTiming{
		StartMs:        words[first].StartMs,
		EndMs:          words[last].EndMs,
		WordStartIndex: first,
		WordEndIndex:   last,
		SentenceIndex:  idx,
	}
	for j := first; j <= last; j++ {
		s.EndMs = max(s.EndMs, words[j].EndMs)
	}

	if cs, ce, ok := textRange(words[first:last+1], text); ok {
		s.Text = strings.TrimSpace(text[cs:ce])
		s.CharStart = timing.IntPtr(cs)
		s.CharEnd = timing.IntPtr(ce)
		return s
	}

	parts := make([]string, 0, last-first+1)
	for _, w := range words[first : last+1] {
		parts = append(parts, w.Word)
	}
	s.Text = strings.Join(parts, " ")
	return s
}

// textRange returns the display text range covering words, extended over
// punctuation attached to the last word.
func textRange(words []timing.WordTiming, text string) (int, int, bool) {
	if text == "" {
		return 0, 0, false
	}
	cs, _, ok := words[0].CharRange()
	if !ok {
		return 0, 0, false
	}
	ls, le, ok := words[len(words)-1].CharRange()
	if !ok || cs > le || le > len(text) {
		return 0, 0, false
	}
	for _, w := range words {
		if _, _, ok := w.CharRange(); !ok {
			return 0, 0, false
		}
	}
	if tok := align.TokenAt(text, ls); ls+len(tok) > le {
		le = ls + len(tok)
	}
	return cs, le, true
}
