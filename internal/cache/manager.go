package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/kahncode1/narrasync/timing"
	"github.com/kahncode1/narrasync/timing/collection"
)

// Manager coordinates the L1 collection cache and an optional L2 store.
type Manager struct {
	l1     *DocumentCache
	l2     BlobStore
	opts   []collection.Option
	logger *log.Logger

	mu    sync.Mutex
	stats ManagerStats
}

// ManagerStats aggregates both tiers.
type ManagerStats struct {
	L1Hits     int64
	L2Hits     int64
	Misses     int64
	Promotions int64
	Writes     int64
	HitRate    float64

	L1 Stats
	L2 *Stats // nil when the store does not report stats
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithStore sets the L2 store.
func WithStore(store BlobStore) ManagerOption {
	return func(m *Manager) { m.l2 = store }
}

// WithCollectionOptions applies opts to collections decoded from L2.
func WithCollectionOptions(opts ...collection.Option) ManagerOption {
	return func(m *Manager) { m.opts = append(m.opts, opts...) }
}

// WithLogger sets the logger. The default is log.Default().
func WithLogger(logger *log.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a manager whose L1 holds maxDocuments collections.
func NewManager(maxDocuments int, opts ...ManagerOption) *Manager {
	m := &Manager{logger: log.Default()}
	for _, opt := range opts {
		opt(m)
	}
	m.l1 = NewDocumentCache(maxDocuments, func(id string, _ *collection.Collection) {
		m.logger.Debug("evicted document", "id", id)
	})
	return m
}

// Get returns the collection for id from L1, or decodes it from L2 and
// promotes it. It returns timing.ErrCacheMiss when neither tier has it.
func (m *Manager) Get(ctx context.Context, id string) (*collection.Collection, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Join(timing.ErrCanceled, err)
	}

	if c, ok := m.l1.Get(id); ok {
		m.count(func(s *ManagerStats) { s.L1Hits++ })
		return c, nil
	}

	if m.l2 != nil {
		data, err := m.l2.Get(id)
		switch {
		case err == nil:
			c, derr := collection.Load(data, m.opts...)
			if derr != nil {
				m.logger.Warn("dropping undecodable document", "id", id, "err", derr)
				_ = m.l2.Delete(id)
				break
			}
			m.l1.Put(id, c)
			m.count(func(s *ManagerStats) { s.L2Hits++; s.Promotions++ })
			return c, nil
		case !errors.Is(err, timing.ErrCacheMiss):
			m.logger.Warn("L2 read failed", "id", id, "err", err)
		}
	}

	m.count(func(s *ManagerStats) { s.Misses++ })
	return nil, fmt.Errorf("%w: %s", timing.ErrCacheMiss, id)
}

// Put stores c under id in L1 and writes its document to L2.
func (m *Manager) Put(ctx context.Context, id string, c *collection.Collection) error {
	if id == "" {
		return ErrInvalidKey
	}
	if err := ctx.Err(); err != nil {
		return errors.Join(timing.ErrCanceled, err)
	}

	m.l1.Put(id, c)
	m.count(func(s *ManagerStats) { s.Writes++ })

	if m.l2 == nil {
		return nil
	}
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Errorf("L2 encode: %w", err)
	}
	if err := m.l2.Put(id, data); err != nil {
		return fmt.Errorf("L2 put: %w", err)
	}
	return nil
}

// Peek returns a resident collection without touching recency.
func (m *Manager) Peek(id string) (*collection.Collection, bool) {
	return m.l1.Peek(id)
}

// Invalidate drops id from both tiers.
func (m *Manager) Invalidate(id string) error {
	m.l1.Delete(id)
	if m.l2 == nil {
		return nil
	}
	if err := m.l2.Delete(id); err != nil {
		return fmt.Errorf("L2 delete: %w", err)
	}
	return nil
}

// Clear drops every document from both tiers.
func (m *Manager) Clear() error {
	m.l1.Clear()
	if m.l2 == nil {
		return nil
	}
	if c, ok := m.l2.(Clearer); ok {
		return c.Clear()
	}

	keys, err := m.l2.Keys()
	if err != nil {
		return fmt.Errorf("L2 keys: %w", err)
	}
	var errs []error
	for _, k := range keys {
		if err := m.l2.Delete(k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Resident returns the L1 ids, most recently used first.
func (m *Manager) Resident() []string {
	return m.l1.Keys()
}

// Entries describes documents in both tiers, L1 first.
func (m *Manager) Entries() ([]Entry, error) {
	entries := m.l1.Entries()
	if l, ok := m.l2.(Lister); ok {
		more, err := l.Entries()
		if err != nil {
			return entries, fmt.Errorf("L2 entries: %w", err)
		}
		entries = append(entries, more...)
	}
	return entries, nil
}

// Stats returns aggregated statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	stats := m.stats
	m.mu.Unlock()

	if total := stats.L1Hits + stats.L2Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.L1Hits+stats.L2Hits) / float64(total)
	}
	stats.L1 = m.l1.Stats()
	if s, ok := m.l2.(interface{ Stats() Stats }); ok {
		l2 := s.Stats()
		stats.L2 = &l2
	}
	return stats
}

// Close closes the L2 store.
func (m *Manager) Close() error {
	if m.l2 == nil {
		return nil
	}
	if err := m.l2.Close(); err != nil {
		return fmt.Errorf("failed to close store: %w", err)
	}
	return nil
}

func (m *Manager) count(f func(*ManagerStats)) {
	m.mu.Lock()
	f(&m.stats)
	m.mu.Unlock()
}
