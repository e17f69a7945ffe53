package provider

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/kahncode1/narrasync/timing"
)

// Synthesize spreads the words of text evenly at wpm words per minute. It
// stands in for provider timing that is missing or unusable. Each word
// carries its byte span in text and sentence index 0.
func Synthesize(text string, wpm int) ([]timing.WordTiming, error) {
	if strings.TrimSpace(text) == "" {
		return nil, timing.ErrEmptyText
	}
	if wpm <= 0 {
		wpm = timing.DefaultWordsPerMinute
	}
	perWord := int64(60000 / wpm)
	if perWord < 1 {
		return nil, fmt.Errorf("%w: %d words per minute", timing.ErrInvalidConfig, wpm)
	}

	var (
		words []timing.WordTiming
		at    int64
		start = -1
	)
	emit := func(end int) {
		words = append(words, timing.WordTiming{
			Word:    text[start:end],
			StartMs: at,
			EndMs:   at + perWord,
		}.WithCharRange(start, end))
		at += perWord
		start = -1
	}

	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				emit(i)
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		emit(len(text))
	}
	return words, nil
}
