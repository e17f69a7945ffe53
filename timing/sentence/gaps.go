package sentence

import (
	"time"

	"github.com/kahncode1/narrasync/timing"
)

// GapStats summarizes what EliminateGaps changed.
type GapStats struct {
	Gaps       int
	Overlaps   int
	TotalGapMs int64
	MaxGapMs   int64
}

// EliminateGaps closes silences between words so every position inside the
// narration maps to a word. A gap shorter than splitThreshold is absorbed
// by extending the earlier word to the next start. A longer one is split
// at its midpoint: the earlier word ends and the next word starts there.
// An overlap truncates the earlier word.
func EliminateGaps(words []timing.WordTiming, splitThreshold time.Duration) ([]timing.WordTiming, GapStats) {
	out := make([]timing.WordTiming, len(words))
	copy(out, words)

	var stats GapStats
	limit := splitThreshold.Milliseconds()

	for i := 0; i+1 < len(out); i++ {
		cur, next := &out[i], &out[i+1]
		gap := next.StartMs - cur.EndMs

		switch {
		case gap > 0:
			stats.Gaps++
			stats.TotalGapMs += gap
			stats.MaxGapMs = max(stats.MaxGapMs, gap)
			if gap < limit {
				cur.EndMs = next.StartMs
			} else {
				mid := cur.EndMs + gap/2
				cur.EndMs, next.StartMs = mid, mid
			}
		case gap < 0:
			stats.Overlaps++
			cur.EndMs = max(next.StartMs, cur.StartMs)
		}
	}

	return out, stats
}
