package collection

import (
	"time"

	"github.com/kahncode1/narrasync/timing"
)

// BuildLookupTable samples the words every interval over [0, total] and
// records the active [word, sentence] pair for each slot, -1 in gaps.
func BuildLookupTable(words []timing.WordTiming, totalMs int64, interval time.Duration) *timing.LookupTable {
	step := interval.Milliseconds()
	if step <= 0 {
		step = timing.DefaultLookupInterval.Milliseconds()
	}

	t := &timing.LookupTable{
		Version:         timing.DocumentVersion,
		Interval:        step,
		TotalDurationMs: max(totalMs, 0),
		Lookup:          make([][2]int, 0, max(totalMs, 0)/step+1),
	}
	if len(words) == 0 {
		return t
	}

	idx := 0
	for at := int64(0); at <= t.TotalDurationMs; at += step {
		for idx+1 < len(words) && words[idx+1].StartMs <= at {
			idx++
		}

		w := -1
		switch {
		case words[idx].Contains(at):
			w = idx
		case idx > 0 && words[idx-1].Contains(at):
			w = idx - 1
		}

		s := -1
		if w >= 0 {
			s = words[w].SentenceIndex
		}
		t.Lookup = append(t.Lookup, [2]int{w, s})
	}
	return t
}
