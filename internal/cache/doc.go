// Package cache keeps loaded timing collections resident. It has a bounded
// in-memory LRU of collections (L1) backed by a persistent store of encoded
// documents (L2), either zstd files on disk or a badger database.
package cache
