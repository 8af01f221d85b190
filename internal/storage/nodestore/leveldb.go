package nodestore

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"github.com/LeJamon/gotrie/internal/storage/nodestore/compression"
	"github.com/LeJamon/gotrie/internal/types"
)

// LevelDBBackend stores records in a goleveldb instance. It shares the
// record encoding with the pebble backend, so data written by one can be
// read by the other at the same path format version.
type LevelDBBackend struct {
	db         *leveldb.DB
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

// NewLevelDBBackend creates a new goleveldb backend.
func NewLevelDBBackend(config *Config) (Backend, error) {
	if config == nil {
		config = DefaultConfig()
	}

	compressor, err := compression.Get(config.Compressor)
	if err != nil {
		return nil, fmt.Errorf("failed to get compressor %s: %w", config.Compressor, err)
	}

	return &LevelDBBackend{
		compressor: compressor,
		config:     config,
	}, nil
}

// Name returns the name of this backend.
func (l *LevelDBBackend) Name() string {
	return fmt.Sprintf("leveldb(%s)", l.config.Path)
}

// Open opens the backend for use.
func (l *LevelDBBackend) Open(createIfMissing bool) error {
	if !atomic.CompareAndSwapInt64(&l.open, 0, 1) {
		return fmt.Errorf("backend already open")
	}

	opts := &opt.Options{
		ErrorIfMissing: !createIfMissing,
		// Records are compressed per entry before they reach leveldb.
		Compression: opt.NoCompression,
	}

	db, err := leveldb.OpenFile(l.config.Path, opts)
	if err != nil {
		atomic.StoreInt64(&l.open, 0)
		return fmt.Errorf("failed to open leveldb at %s: %w", l.config.Path, err)
	}

	l.db = db
	return nil
}

// Close closes the backend and releases resources.
func (l *LevelDBBackend) Close() error {
	if !atomic.CompareAndSwapInt64(&l.open, 1, 0) {
		return nil
	}

	var err error
	if l.db != nil {
		err = l.db.Close()
		l.db = nil
	}

	if atomic.LoadInt64(&l.deletePath) != 0 && l.config.Path != "" {
		if removeErr := os.RemoveAll(l.config.Path); removeErr != nil && err == nil {
			err = removeErr
		}
	}

	return err
}

// IsOpen reports whether the backend is currently open.
func (l *LevelDBBackend) IsOpen() bool {
	return atomic.LoadInt64(&l.open) != 0
}

// Fetch retrieves a single object by content address.
func (l *LevelDBBackend) Fetch(key types.Hash256) (*Node, Status) {
	if !l.IsOpen() {
		return nil, BackendError
	}

	value, err := l.db.Get(key[:], nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, NotFound
		}
		return nil, BackendError
	}

	node, err := decodeRecord(key, value, l.compressor)
	if err != nil {
		return nil, DataCorrupt
	}

	atomic.AddInt64(&l.stats.reads, 1)
	atomic.AddInt64(&l.stats.bytesRead, int64(len(value)))

	return node, OK
}

// FetchBatch retrieves multiple objects, positionally aligned.
func (l *LevelDBBackend) FetchBatch(keys []types.Hash256) ([]*Node, Status) {
	if !l.IsOpen() {
		return nil, BackendError
	}

	results := make([]*Node, len(keys))
	for i, key := range keys {
		node, status := l.Fetch(key)
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
func (l *LevelDBBackend) Store(node *Node) Status {
	if node == nil {
		return BackendError
	}
	if !l.IsOpen() {
		return BackendError
	}

	value, err := encodeRecord(node, l.compressor, l.config.CompressionLevel)
	if err != nil {
		return BackendError
	}

	if err := l.db.Put(node.Hash[:], value, nil); err != nil {
		return BackendError
	}

	atomic.AddInt64(&l.stats.writes, 1)
	atomic.AddInt64(&l.stats.bytesWritten, int64(len(value)))

	return OK
}

// StoreBatch saves multiple objects in a single atomic write batch.
func (l *LevelDBBackend) StoreBatch(nodes []*Node) Status {
	if !l.IsOpen() {
		return BackendError
	}
	if len(nodes) == 0 {
		return OK
	}

	batch := new(leveldb.Batch)
	var totalBytes int64

	for _, node := range nodes {
		if node == nil {
			continue
		}

		value, err := encodeRecord(node, l.compressor, l.config.CompressionLevel)
		if err != nil {
			return BackendError
		}
		batch.Put(node.Hash[:], value)
		totalBytes += int64(len(value))
	}

	if err := l.db.Write(batch, nil); err != nil {
		return BackendError
	}

	atomic.AddInt64(&l.stats.writes, int64(len(nodes)))
	atomic.AddInt64(&l.stats.bytesWritten, totalBytes)

	return OK
}

// Sync forces pending writes to be flushed.
func (l *LevelDBBackend) Sync() Status {
	if !l.IsOpen() {
		return BackendError
	}
	// goleveldb has no explicit flush; a synced empty write forces the
	// journal to stable storage.
	if err := l.db.Write(new(leveldb.Batch), &opt.WriteOptions{Sync: true}); err != nil {
		return BackendError
	}
	return OK
}

// ForEach iterates over all objects in the backend.
func (l *LevelDBBackend) ForEach(fn func(*Node) error) error {
	if !l.IsOpen() {
		return ErrBackendClosed
	}

	iter := l.db.NewIterator(nil, nil)
	defer iter.Release()

	for iter.Next() {
		key := iter.Key()
		if len(key) != 32 {
			continue
		}

		var hash types.Hash256
		copy(hash[:], key)

		node, err := decodeRecord(hash, iter.Value(), l.compressor)
		if err != nil {
			return &StoreError{Operation: "foreach", Hash: hash, Backend: l.Name(), Cause: err}
		}

		if err := fn(node); err != nil {
			return err
		}
	}

	return iter.Error()
}

// SetDeletePath marks the backend's on-disk state for removal on Close.
func (l *LevelDBBackend) SetDeletePath() {
	atomic.StoreInt64(&l.deletePath, 1)
}

// Stats returns raw backend counters.
func (l *LevelDBBackend) Stats() BackendStats {
	return BackendStats{
		Reads:        atomic.LoadInt64(&l.stats.reads),
		Writes:       atomic.LoadInt64(&l.stats.writes),
		BytesRead:    atomic.LoadInt64(&l.stats.bytesRead),
		BytesWritten: atomic.LoadInt64(&l.stats.bytesWritten),
	}
}

func init() {
	RegisterBackend("leveldb", NewLevelDBBackend)
}
