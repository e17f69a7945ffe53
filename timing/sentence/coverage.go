package sentence

import "github.com/kahncode1/narrasync/timing"

// EnsureContinuousCoverage makes adjacent sentences meet. A gap between
// two sentences is split at its midpoint; an overlap is resolved by ending
// the earlier sentence where the next begins. Word membership is untouched.
func EnsureContinuousCoverage(sentences []timing.SentenceTiming) []timing.SentenceTiming {
	out := make([]timing.SentenceTiming, len(sentences))
	copy(out, sentences)

	for i := 0; i+1 < len(out); i++ {
		cur, next := &out[i], &out[i+1]
		switch {
		case cur.EndMs < next.StartMs:
			mid := (cur.EndMs + next.StartMs) / 2
			cur.EndMs = mid
			next.StartMs = mid
		case cur.EndMs > next.StartMs:
			cur.EndMs = max(next.StartMs, cur.StartMs)
		}
	}

	return out
}
