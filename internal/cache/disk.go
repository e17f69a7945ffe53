package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/kahncode1/narrasync/timing"
)

const (
	indexFile = "cache.index"
	blobExt   = ".cache"
)

// DiskStore is an L2 BlobStore keeping one zstd-compressed file per
// document, named by a hash of the id. An index file maps ids to files so
// Keys and Entries do not touch the blobs.
type DiskStore struct {
	basePath string
	capacity int64 // bytes, 0 = unbounded
	size     int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index map[string]*diskEntry

	mu    sync.Mutex
	stats Stats
}

// diskEntry is one record of the index file.
type diskEntry struct {
	Key        string
	File       string
	Size       int64
	RawSize    int64
	Compressed bool
	Created    time.Time
	LastAccess time.Time
	Hits       int64
}

// NewDiskStore opens or creates a store under basePath. A compression
// level of 0 stores blobs uncompressed.
func NewDiskStore(basePath string, capacity int64, compressionLevel int) (*DiskStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	ds := &DiskStore{
		basePath: basePath,
		capacity: capacity,
		index:    make(map[string]*diskEntry),
		stats:    Stats{Capacity: capacity},
	}

	if compressionLevel > 0 {
		var err error
		ds.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(compressionLevel)))
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
		}
	}
	// Always able to read, so lowering the level keeps old blobs readable.
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	ds.decoder = dec

	if err := ds.loadIndex(); err != nil {
		ds.index = make(map[string]*diskEntry)
	}
	ds.calculateSize()

	return ds, nil
}

// Get returns the decoded blob for key.
func (ds *DiskStore) Get(key string) ([]byte, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	entry, ok := ds.index[key]
	if !ok {
		ds.stats.Misses++
		return nil, timing.ErrCacheMiss
	}

	data, err := os.ReadFile(ds.path(entry.File))
	if err != nil {
		// File missing, drop it from the index.
		ds.removeEntry(entry)
		ds.stats.Misses++
		return nil, timing.ErrCacheMiss
	}

	if entry.Compressed {
		data, err = ds.decoder.DecodeAll(data, nil)
		if err != nil {
			ds.removeEntry(entry)
			ds.stats.Misses++
			return nil, fmt.Errorf("%w: %s: %v", ErrCorrupted, key, err)
		}
	}

	entry.LastAccess = time.Now()
	entry.Hits++
	ds.stats.Hits++
	return data, nil
}

// Put stores value under key, replacing any previous blob.
func (ds *DiskStore) Put(key string, value []byte) error {
	if key == "" {
		return ErrInvalidKey
	}

	ds.mu.Lock()
	defer ds.mu.Unlock()

	data, compressed := value, false
	if ds.encoder != nil {
		if enc := ds.encoder.EncodeAll(value, nil); len(enc) < len(value) {
			data, compressed = enc, true
		}
	}

	if existing, ok := ds.index[key]; ok {
		ds.removeEntry(existing)
	}

	size := int64(len(data))
	if ds.capacity > 0 {
		for ds.size+size > ds.capacity && len(ds.index) > 0 {
			ds.evictOldest()
		}
	}

	name := fileName(key)
	if err := writeFileAtomic(ds.path(name), data); err != nil {
		return fmt.Errorf("failed to write cache file: %w", err)
	}

	now := time.Now()
	ds.index[key] = &diskEntry{
		Key:        key,
		File:       name,
		Size:       size,
		RawSize:    int64(len(value)),
		Compressed: compressed,
		Created:    now,
		LastAccess: now,
	}
	ds.size += size

	return ds.saveIndex()
}

// Delete removes key. Unknown keys are not an error.
func (ds *DiskStore) Delete(key string) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	entry, ok := ds.index[key]
	if !ok {
		return nil
	}
	ds.removeEntry(entry)
	return ds.saveIndex()
}

// Keys returns the stored ids in lexical order.
func (ds *DiskStore) Keys() ([]string, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	keys := make([]string, 0, len(ds.index))
	for k := range ds.index {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Entries describes stored documents, most recently used first.
func (ds *DiskStore) Entries() ([]Entry, error) {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	entries := make([]Entry, 0, len(ds.index))
	for _, e := range ds.index {
		entries = append(entries, Entry{
			Key:        e.Key,
			Size:       e.Size,
			RawSize:    e.RawSize,
			Created:    e.Created,
			LastAccess: e.LastAccess,
			Hits:       e.Hits,
			Level:      LevelL2,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastAccess.After(entries[j].LastAccess)
	})
	return entries, nil
}

// Clear removes every blob and the index.
func (ds *DiskStore) Clear() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	for _, entry := range ds.index {
		_ = os.Remove(ds.path(entry.File))
	}
	ds.index = make(map[string]*diskEntry)
	ds.size = 0

	return ds.saveIndex()
}

// Stats returns store statistics.
func (ds *DiskStore) Stats() Stats {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	stats := ds.stats
	stats.Size = ds.size
	stats.Items = int64(len(ds.index))
	stats.updateHitRate()
	return stats
}

// Path returns the store directory.
func (ds *DiskStore) Path() string {
	return ds.basePath
}

// Close saves the index and releases the codecs.
func (ds *DiskStore) Close() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	err := ds.saveIndex()
	if ds.encoder != nil {
		err = errors.Join(err, ds.encoder.Close())
	}
	ds.decoder.Close()
	return err
}

func (ds *DiskStore) path(name string) string {
	return filepath.Join(ds.basePath, name)
}

// removeEntry drops an entry and its file (must be called with lock held).
func (ds *DiskStore) removeEntry(entry *diskEntry) {
	_ = os.Remove(ds.path(entry.File))
	delete(ds.index, entry.Key)
	ds.size -= entry.Size
}

// evictOldest removes the least recently accessed entry (must be called with lock held).
func (ds *DiskStore) evictOldest() {
	var oldest *diskEntry
	for _, e := range ds.index {
		if oldest == nil || e.LastAccess.Before(oldest.LastAccess) {
			oldest = e
		}
	}
	if oldest != nil {
		ds.removeEntry(oldest)
		ds.stats.Evictions++
		ds.stats.LastEvict = time.Now()
	}
}

func (ds *DiskStore) loadIndex() error {
	file, err := os.Open(ds.path(indexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	return gob.NewDecoder(file).Decode(&ds.index)
}

func (ds *DiskStore) saveIndex() error {
	path := ds.path(indexFile)
	tmp := path + ".tmp"

	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to save cache index: %w", err)
	}
	err = gob.NewEncoder(file).Encode(ds.index)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to save cache index: %w", err)
	}
	return os.Rename(tmp, path)
}

func (ds *DiskStore) calculateSize() {
	ds.size = 0
	for key, e := range ds.index {
		if !strings.HasSuffix(e.File, blobExt) {
			delete(ds.index, key)
			continue
		}
		ds.size += e.Size
	}
}

// fileName hashes key so arbitrary ids are safe file names.
func fileName(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:16]) + blobExt
}

// writeFileAtomic writes to a temporary file and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
