// Package sync pushes the active word and sentence to subscribers while
// narration plays.
package sync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/time/rate"

	"github.com/kahncode1/narrasync/timing"
)

// Pair is one emitted highlight state.
type Pair struct {
	WordIndex     int
	SentenceIndex int
	PositionMs    int64
}

// Same reports whether p and o highlight the same word and sentence.
func (p Pair) Same(o Pair) bool {
	return p.WordIndex == o.WordIndex && p.SentenceIndex == o.SentenceIndex
}

// Subscription receives pairs. C holds at most Buffer pending values; when
// it is full the oldest is replaced, so a slow reader sees the latest state.
type Subscription struct {
	ID string
	C  <-chan Pair

	ch chan Pair
}

// Emitter samples a position source and broadcasts changes to every
// subscriber. There is a single producer; subscribers never block it.
type Emitter struct {
	interval time.Duration
	buffer   int
	logger   *log.Logger
	limiter  *rate.Limiter

	mu      sync.RWMutex
	locator timing.Locator
	subs    map[string]*Subscription
	last    Pair
	hasLast bool

	// pubMu orders publishes so subscribers receive pairs in the order
	// they were recorded as last.
	pubMu sync.Mutex

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}
}

// NewEmitter creates an emitter over locator. A nil logger uses
// log.Default().
func NewEmitter(locator timing.Locator, cfg timing.EmitterConfig, logger *log.Logger) *Emitter {
	if cfg.Interval <= 0 {
		cfg.Interval = timing.DefaultEmitInterval
	}
	if cfg.Buffer < 1 {
		cfg.Buffer = 1
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Emitter{
		interval: cfg.Interval,
		buffer:   cfg.Buffer,
		logger:   logger,
		limiter:  rate.NewLimiter(rate.Every(cfg.Interval), 1),
		locator:  locator,
		subs:     make(map[string]*Subscription),
	}
}

// Subscribe registers a new subscriber.
func (e *Emitter) Subscribe() (*Subscription, error) {
	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate subscriber id: %w", err)
	}

	ch := make(chan Pair, e.buffer)
	sub := &Subscription{ID: "sub-" + id, C: ch, ch: ch}

	e.mu.Lock()
	e.subs[sub.ID] = sub
	n := len(e.subs)
	e.mu.Unlock()

	e.logger.Debug("subscriber added", "id", sub.ID, "subscribers", n)
	return sub, nil
}

// Unsubscribe removes a subscriber and closes its channel.
func (e *Emitter) Unsubscribe(id string) {
	e.mu.Lock()
	sub, ok := e.subs[id]
	if ok {
		delete(e.subs, id)
	}
	e.mu.Unlock()

	if ok {
		close(sub.ch)
	}
}

// Subscribers returns the number of subscribers.
func (e *Emitter) Subscribers() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subs)
}

// SetLocator switches the emitter to another document. The next sample is
// always emitted.
func (e *Emitter) SetLocator(locator timing.Locator) {
	e.mu.Lock()
	e.locator = locator
	e.hasLast = false
	e.mu.Unlock()
}

// Last returns the most recently emitted pair.
func (e *Emitter) Last() (Pair, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last, e.hasLast
}

// Start samples source every interval until ctx is done or Stop is
// called.
func (e *Emitter) Start(ctx context.Context, source timing.PositionSource) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if e.running {
		return fmt.Errorf("emitter already running")
	}
	e.running = true
	e.stopCh = make(chan struct{})
	e.done = make(chan struct{})

	go e.loop(ctx, source, e.stopCh, e.done)
	return nil
}

// Stop halts sampling and waits for the loop to exit. Subscriptions stay
// open so the emitter can be restarted.
func (e *Emitter) Stop() {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if !e.running {
		return
	}
	close(e.stopCh)
	<-e.done
	e.running = false
}

// IsRunning reports whether the sampling loop is active.
func (e *Emitter) IsRunning() bool {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	return e.running
}

// Close stops the emitter and closes every subscription.
func (e *Emitter) Close() error {
	e.Stop()

	e.mu.Lock()
	subs := e.subs
	e.subs = make(map[string]*Subscription)
	e.mu.Unlock()

	for _, sub := range subs {
		close(sub.ch)
	}
	return nil
}

func (e *Emitter) loop(ctx context.Context, source timing.PositionSource, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.publish(source.Position().Milliseconds())
	for {
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-ticker.C:
			e.publish(source.Position().Milliseconds())
		}
	}
}

// Update pushes a position from a source that reports on its own
// schedule. Updates arriving faster than the interval are dropped; it
// reports whether a pair was emitted.
func (e *Emitter) Update(now time.Time, positionMs int64) bool {
	if !e.limiter.AllowN(now, 1) {
		return false
	}
	return e.publish(positionMs)
}

// publish emits the pair at positionMs unless it repeats the last one.
func (e *Emitter) publish(positionMs int64) bool {
	e.pubMu.Lock()
	defer e.pubMu.Unlock()

	e.mu.Lock()
	if e.locator == nil {
		e.mu.Unlock()
		return false
	}
	p := Pair{
		WordIndex:     e.locator.FindActiveWordIndex(positionMs),
		SentenceIndex: e.locator.FindActiveSentenceIndex(positionMs),
		PositionMs:    positionMs,
	}
	if e.hasLast && p.Same(e.last) {
		e.mu.Unlock()
		return false
	}
	e.last, e.hasLast = p, true
	e.mu.Unlock()

	e.broadcast(p)
	return true
}

func (e *Emitter) broadcast(p Pair) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var replaced int
	for _, sub := range e.subs {
		select {
		case sub.ch <- p:
			continue
		default:
		}
		// Full: drop the stale value for the new one.
		select {
		case <-sub.ch:
			replaced++
		default:
		}
		select {
		case sub.ch <- p:
		default:
		}
	}

	if replaced > 0 {
		e.logger.Debug("replaced stale pairs", "subscribers", replaced, "word", p.WordIndex)
	}
}
