// Package store is a badger-backed document store usable as the L2 cache
// tier.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/kahncode1/narrasync/internal/cache"
	"github.com/kahncode1/narrasync/timing"
)

const (
	docPrefix  = "docs:"
	metaPrefix = "meta:"
)

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *log.Logger
}

// meta is stored next to each document.
type meta struct {
	Size    int64     `json:"size"`
	Created time.Time `json:"created"`
}

// Options configures Open.
type Options struct {
	// CompressionLevel is the zstd level for table blocks; 0 disables
	// compression.
	CompressionLevel int
	// InMemory keeps everything in memory; path is ignored.
	InMemory bool
}

// Open opens or creates a store at path. A nil logger silences badger.
func Open(path string, opts Options, logger *log.Logger) (*Store, error) {
	bopts := badger.DefaultOptions(path)
	bopts.Logger = nil
	if logger != nil {
		bopts.Logger = badgerLogger{logger.WithPrefix("badger")}
	}
	bopts.SyncWrites = true
	bopts.CompactL0OnClose = true
	if opts.InMemory {
		bopts = bopts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	if opts.CompressionLevel > 0 {
		bopts = bopts.WithCompression(options.ZSTD).WithZSTDCompressionLevel(opts.CompressionLevel)
	} else {
		bopts = bopts.WithCompression(options.None)
	}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	if logger != nil {
		logger.Debug("badger database opened", "path", path, "in_memory", opts.InMemory)
	}
	return &Store{db: db, logger: logger}, nil
}

// Get returns the document blob for key.
func (s *Store) Get(key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(docPrefix + key))
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, timing.ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return out, nil
}

// Put stores value under key.
func (s *Store) Put(key string, value []byte) error {
	if key == "" {
		return cache.ErrInvalidKey
	}
	m, err := json.Marshal(meta{Size: int64(len(value)), Created: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal meta: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(docPrefix+key), value); err != nil {
			return err
		}
		return txn.Set([]byte(metaPrefix+key), m)
	})
}

// Delete removes key. Unknown keys are not an error.
func (s *Store) Delete(key string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Delete([]byte(docPrefix + key)); err != nil {
			return err
		}
		return txn.Delete([]byte(metaPrefix + key))
	})
}

// Keys returns every stored id in key order.
func (s *Store) Keys() ([]string, error) {
	prefix := []byte(docPrefix)
	var keys []string

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false // Only need keys

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			keys = append(keys, string(it.Item().Key()[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}

// Entries describes stored documents.
func (s *Store) Entries() ([]cache.Entry, error) {
	prefix := []byte(metaPrefix)
	var entries []cache.Entry

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			key := string(item.Key()[len(prefix):])
			err := item.Value(func(val []byte) error {
				var m meta
				if err := json.Unmarshal(val, &m); err != nil {
					return nil //nolint:nilerr // skip malformed entries
				}
				entries = append(entries, cache.Entry{
					Key:        key,
					Size:       m.Size,
					RawSize:    m.Size,
					Created:    m.Created,
					LastAccess: m.Created,
					Level:      cache.LevelL2,
				})
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// Clear drops every document.
func (s *Store) Clear() error {
	if err := s.db.DropPrefix([]byte(docPrefix), []byte(metaPrefix)); err != nil {
		return fmt.Errorf("clear store: %w", err)
	}
	return nil
}

// Close gracefully closes the database.
func (s *Store) Close() error {
	if s.logger != nil {
		s.logger.Debug("closing badger database")
	}
	return s.db.Close()
}

// badgerLogger forwards badger's log output to a charm logger. Badger is
// chatty at info level, so info goes to debug.
type badgerLogger struct {
	l *log.Logger
}

func (b badgerLogger) Errorf(format string, args ...any)   { b.l.Errorf(format, args...) }
func (b badgerLogger) Warningf(format string, args ...any) { b.l.Warnf(format, args...) }
func (b badgerLogger) Infof(format string, args ...any)    { b.l.Debugf(format, args...) }
func (b badgerLogger) Debugf(format string, args ...any)   { b.l.Debugf(format, args...) }
