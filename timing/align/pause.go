package align

import "time"

// Pause classifies the silence between two consecutive words.
type Pause int

const (
	// PauseNone is a gap at or under the threshold.
	PauseNone Pause = iota
	// PauseBreak is a gap over the threshold.
	PauseBreak
	// PauseLong is a gap over twice the threshold. It breaks even after
	// an abbreviation.
	PauseLong
)

// Gap returns the silence between a word ending at prevEndMs and the next
// starting at nextStartMs. Overlaps yield zero.
func Gap(prevEndMs, nextStartMs int64) int64 {
	if nextStartMs <= prevEndMs {
		return 0
	}
	return nextStartMs - prevEndMs
}

// ClassifyPause compares gapMs against threshold.
func ClassifyPause(gapMs int64, threshold time.Duration) Pause {
	limit := threshold.Milliseconds()
	switch {
	case gapMs > 2*limit:
		return PauseLong
	case gapMs > limit:
		return PauseBreak
	default:
		return PauseNone
	}
}
