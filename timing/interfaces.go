package timing

import "time"

// PositionSource reports the current playback position. Implementations
// must not block; the emitter reads them from its sampling loop.
type PositionSource interface {
	Position() time.Duration
}

// PositionFunc adapts a function to PositionSource.
type PositionFunc func() time.Duration

// Position implements PositionSource.
func (f PositionFunc) Position() time.Duration {
	return f()
}

// Locator answers position queries for one document.
type Locator interface {
	FindActiveWordIndex(positionMs int64) int
	FindActiveSentenceIndex(positionMs int64) int
}
