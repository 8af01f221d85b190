package nodestore

import (
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"go.etcd.io/bbolt"

	"github.com/LeJamon/gotrie/internal/storage/nodestore/compression"
	"github.com/LeJamon/gotrie/internal/types"
)

var bboltBucket = []byte("nodes")

// BBoltBackend stores records in a single-file bbolt database. It is the
// slowest of the persistent backends but the simplest to operate: one
// file, no compaction, fully transactional. It shares the record encoding
// with the pebble and leveldb backends.
type BBoltBackend struct {
	db         *bbolt.DB
	compressor compression.Compressor
	config     *Config

	open       int64 // atomic open flag
	deletePath int64

	stats struct {
		reads        int64
		writes       int64
		bytesRead    int64
		bytesWritten int64
	}
}

// NewBBoltBackend creates a new bbolt backend.
func NewBBoltBackend(config *Config) (Backend, error) {
	if config == nil {
		config = DefaultConfig()
	}

	compressor, err := compression.Get(config.Compressor)
	if err != nil {
		return nil, fmt.Errorf("failed to get compressor %s: %w", config.Compressor, err)
	}

	return &BBoltBackend{
		compressor: compressor,
		config:     config,
	}, nil
}

// Name returns the name of this backend.
func (b *BBoltBackend) Name() string {
	return fmt.Sprintf("bbolt(%s)", b.config.Path)
}

// Open opens the backend for use.
func (b *BBoltBackend) Open(createIfMissing bool) error {
	if !atomic.CompareAndSwapInt64(&b.open, 0, 1) {
		return fmt.Errorf("backend already open")
	}

	if !createIfMissing {
		if _, err := os.Stat(b.config.Path); err != nil {
			atomic.StoreInt64(&b.open, 0)
			return fmt.Errorf("bbolt database missing at %s: %w", b.config.Path, err)
		}
	}

	db, err := bbolt.Open(b.config.Path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		atomic.StoreInt64(&b.open, 0)
		return fmt.Errorf("failed to open bbolt at %s: %w", b.config.Path, err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bboltBucket)
		return err
	})
	if err != nil {
		db.Close()
		atomic.StoreInt64(&b.open, 0)
		return fmt.Errorf("failed to create bucket: %w", err)
	}

	b.db = db
	return nil
}

// Close closes the backend and releases resources.
func (b *BBoltBackend) Close() error {
	if !atomic.CompareAndSwapInt64(&b.open, 1, 0) {
		return nil
	}

	var err error
	if b.db != nil {
		err = b.db.Close()
		b.db = nil
	}

	if atomic.LoadInt64(&b.deletePath) != 0 && b.config.Path != "" {
		if removeErr := os.RemoveAll(b.config.Path); removeErr != nil && err == nil {
			err = removeErr
		}
	}

	return err
}

// IsOpen reports whether the backend is currently open.
func (b *BBoltBackend) IsOpen() bool {
	return atomic.LoadInt64(&b.open) != 0
}

// Fetch retrieves a single object by content address.
func (b *BBoltBackend) Fetch(key types.Hash256) (*Node, Status) {
	if !b.IsOpen() {
		return nil, BackendError
	}

	var value []byte
	err := b.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bboltBucket).Get(key[:])
		if v == nil {
			return ErrNotFound
		}
		// bbolt values are only valid inside the transaction.
		value = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		if err == ErrNotFound {
			return nil, NotFound
		}
		return nil, BackendError
	}

	node, err := decodeRecord(key, value, b.compressor)
	if err != nil {
		return nil, DataCorrupt
	}

	atomic.AddInt64(&b.stats.reads, 1)
	atomic.AddInt64(&b.stats.bytesRead, int64(len(value)))

	return node, OK
}

// FetchBatch retrieves multiple objects, positionally aligned.
func (b *BBoltBackend) FetchBatch(keys []types.Hash256) ([]*Node, Status) {
	if !b.IsOpen() {
		return nil, BackendError
	}

	results := make([]*Node, len(keys))
	for i, key := range keys {
		node, status := b.Fetch(key)
		switch status {
		case OK:
			results[i] = node
		case NotFound:
		default:
			return nil, status
		}
	}

	return results, OK
}

// Store saves a single object.
func (b *BBoltBackend) Store(node *Node) Status {
	if node == nil {
		return BackendError
	}
	return b.StoreBatch([]*Node{node})
}

// StoreBatch saves multiple objects in a single transaction.
func (b *BBoltBackend) StoreBatch(nodes []*Node) Status {
	if !b.IsOpen() {
		return BackendError
	}
	if len(nodes) == 0 {
		return OK
	}

	var totalBytes int64
	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bboltBucket)
		for _, node := range nodes {
			if node == nil {
				continue
			}
			value, err := encodeRecord(node, b.compressor, b.config.CompressionLevel)
			if err != nil {
				return err
			}
			if err := bucket.Put(node.Hash[:], value); err != nil {
				return err
			}
			totalBytes += int64(len(value))
		}
		return nil
	})
	if err != nil {
		return BackendError
	}

	atomic.AddInt64(&b.stats.writes, int64(len(nodes)))
	atomic.AddInt64(&b.stats.bytesWritten, totalBytes)

	return OK
}

// Sync forces pending writes to be flushed. bbolt commits every update
// transaction durably, so there is nothing left to flush.
func (b *BBoltBackend) Sync() Status {
	if !b.IsOpen() {
		return BackendError
	}
	return OK
}

// ForEach iterates over all objects in the backend.
func (b *BBoltBackend) ForEach(fn func(*Node) error) error {
	if !b.IsOpen() {
		return ErrBackendClosed
	}

	return b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bboltBucket).ForEach(func(k, v []byte) error {
			if len(k) != 32 {
				return nil
			}

			var hash types.Hash256
			copy(hash[:], k)

			node, err := decodeRecord(hash, v, b.compressor)
			if err != nil {
				return &StoreError{Operation: "foreach", Hash: hash, Backend: b.Name(), Cause: err}
			}

			return fn(node)
		})
	})
}

// SetDeletePath marks the backend's on-disk state for removal on Close.
func (b *BBoltBackend) SetDeletePath() {
	atomic.StoreInt64(&b.deletePath, 1)
}

// Stats returns raw backend counters.
func (b *BBoltBackend) Stats() BackendStats {
	return BackendStats{
		Reads:        atomic.LoadInt64(&b.stats.reads),
		Writes:       atomic.LoadInt64(&b.stats.writes),
		BytesRead:    atomic.LoadInt64(&b.stats.bytesRead),
		BytesWritten: atomic.LoadInt64(&b.stats.bytesWritten),
	}
}

func init() {
	RegisterBackend("bbolt", NewBBoltBackend)
}
