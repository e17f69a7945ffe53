package cache

import (
	"errors"
	"time"
)

var (
	// ErrInvalidKey is returned for empty document ids.
	ErrInvalidKey = errors.New("invalid cache key")

	// ErrCorrupted is returned when a stored blob cannot be decoded.
	ErrCorrupted = errors.New("cache data corrupted")
)

// Level identifies a cache tier.
type Level int

const (
	// LevelL1 holds loaded collections in memory.
	LevelL1 Level = iota

	// LevelL2 holds encoded documents in a blob store.
	LevelL2
)

func (l Level) String() string {
	switch l {
	case LevelL1:
		return "L1-Memory"
	case LevelL2:
		return "L2-Store"
	default:
		return "Unknown"
	}
}

// Stats holds counters for one cache tier.
type Stats struct {
	Capacity  int64 // entries for L1, bytes for L2 (0 = unbounded)
	Items     int64
	Size      int64 // bytes, L2 only
	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64
	LastEvict time.Time
}

func (s *Stats) updateHitRate() {
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
}

// Entry describes one cached document.
type Entry struct {
	Key        string
	Size       int64 // stored bytes
	RawSize    int64 // bytes before compression
	Created    time.Time
	LastAccess time.Time
	Hits       int64
	Level      Level
}

// BlobStore persists encoded documents by id. Get returns
// timing.ErrCacheMiss for unknown ids.
type BlobStore interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
	Keys() ([]string, error)
	Close() error
}

// Lister is implemented by stores that can describe their entries.
type Lister interface {
	Entries() ([]Entry, error)
}

// Clearer is implemented by stores that can drop everything at once.
type Clearer interface {
	Clear() error
}
