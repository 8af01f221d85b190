package nodestore

import (
	"fmt"
	"os"
	"runtime"
	"sync/atomic"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/bloom"

	"github.com/LeJamon/gotrie/internal/storage/nodestore/compression"
	"github.com/LeJamon/gotrie/internal/types"
)

// PebbleBackend stores records in a PebbleDB instance. It is the default
// persistent backend: the workload is pure point lookups by 32-byte hash
// with append-only writes, which an LSM tree with bloom filters handles
// well.
type PebbleBackend struct {
	db         *pebble.DB
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

// NewPebbleBackend creates a new PebbleDB backend.
func NewPebbleBackend(config *Config) (Backend, error) {
	if config == nil {
		config = DefaultConfig()
	}

	compressor, err := compression.Get(config.Compressor)
	if err != nil {
		return nil, fmt.Errorf("failed to get compressor %s: %w", config.Compressor, err)
	}

	return &PebbleBackend{
		compressor: compressor,
		config:     config,
	}, nil
}

// Name returns the name of this backend.
func (p *PebbleBackend) Name() string {
	return fmt.Sprintf("pebble(%s)", p.config.Path)
}

// Open opens the backend for use.
func (p *PebbleBackend) Open(createIfMissing bool) error {
	if !atomic.CompareAndSwapInt64(&p.open, 0, 1) {
		return fmt.Errorf("backend already open")
	}

	if createIfMissing {
		if err := os.MkdirAll(p.config.Path, 0o755); err != nil {
			atomic.StoreInt64(&p.open, 0)
			return fmt.Errorf("failed to create directory %s: %w", p.config.Path, err)
		}
	}

	db, err := pebble.Open(p.config.Path, p.buildOptions())
	if err != nil {
		atomic.StoreInt64(&p.open, 0)
		return fmt.Errorf("failed to open pebble at %s: %w", p.config.Path, err)
	}

	p.db = db
	return nil
}

// buildOptions tunes PebbleDB for hash-keyed point lookups.
func (p *PebbleBackend) buildOptions() *pebble.Options {
	opts := &pebble.Options{
		Cache:                       pebble.NewCache(256 << 20),
		MaxOpenFiles:                4096,
		MemTableSize:                64 << 20,
		MemTableStopWritesThreshold: 4,
		MaxConcurrentCompactions: func() int {
			return runtime.NumCPU()
		},
		L0CompactionThreshold: 4,
		L0StopWritesThreshold: 20,
		LBaseMaxBytes:         256 << 20,
		Levels:                make([]pebble.LevelOptions, 7),
	}

	for i := range opts.Levels {
		opts.Levels[i] = pebble.LevelOptions{
			BlockSize:      32 << 10,
			IndexBlockSize: 256 << 10,
			FilterPolicy:   bloom.FilterPolicy(10),
			FilterType:     pebble.TableFilter,
			TargetFileSize: int64(8<<20) << uint(i),
			// Records are compressed per entry before they reach pebble.
			Compression: pebble.NoCompression,
		}
		if opts.Levels[i].TargetFileSize > 256<<20 {
			opts.Levels[i].TargetFileSize = 256 << 20
		}
	}

	return opts
}

// Close closes the backend and releases resources.
func (p *PebbleBackend) Close() error {
	if !atomic.CompareAndSwapInt64(&p.open, 1, 0) {
		return nil
	}

	var err error
	if p.db != nil {
		if flushErr := p.db.Flush(); flushErr != nil {
			err = flushErr
		}
		if closeErr := p.db.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
		p.db = nil
	}

	if atomic.LoadInt64(&p.deletePath) != 0 && p.config.Path != "" {
		if removeErr := os.RemoveAll(p.config.Path); removeErr != nil && err == nil {
			err = removeErr
		}
	}

	return err
}

// IsOpen reports whether the backend is currently open.
func (p *PebbleBackend) IsOpen() bool {
	return atomic.LoadInt64(&p.open) != 0
}

// Fetch retrieves a single object by content address.
func (p *PebbleBackend) Fetch(key types.Hash256) (*Node, Status) {
	if !p.IsOpen() {
		return nil, BackendError
	}

	value, closer, err := p.db.Get(key[:])
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, NotFound
		}
		return nil, BackendError
	}
	defer closer.Close()

	node, err := decodeRecord(key, value, p.compressor)
	if err != nil {
		return nil, DataCorrupt
	}

	atomic.AddInt64(&p.stats.reads, 1)
	atomic.AddInt64(&p.stats.bytesRead, int64(len(value)))

	return node, OK
}

// FetchBatch retrieves multiple objects, positionally aligned. Pebble has
// no native multi-get, so this is point lookups against the block cache.
func (p *PebbleBackend) FetchBatch(keys []types.Hash256) ([]*Node, Status) {
	if !p.IsOpen() {
		return nil, BackendError
	}

	results := make([]*Node, len(keys))
	for i, key := range keys {
		node, status := p.Fetch(key)
		switch status {
		case OK:
			results[i] = node
		case NotFound:
			// results[i] stays nil
		default:
			return nil, status
		}
	}

	return results, OK
}

// Store saves a single object.
func (p *PebbleBackend) Store(node *Node) Status {
	if node == nil {
		return BackendError
	}
	if !p.IsOpen() {
		return BackendError
	}

	value, err := encodeRecord(node, p.compressor, p.config.CompressionLevel)
	if err != nil {
		return BackendError
	}

	// NoSync: durability comes from the WAL, Sync() forces a flush.
	if err := p.db.Set(node.Hash[:], value, pebble.NoSync); err != nil {
		return BackendError
	}

	atomic.AddInt64(&p.stats.writes, 1)
	atomic.AddInt64(&p.stats.bytesWritten, int64(len(value)))

	return OK
}

// StoreBatch saves multiple objects in a single atomic pebble batch.
func (p *PebbleBackend) StoreBatch(nodes []*Node) Status {
	if !p.IsOpen() {
		return BackendError
	}
	if len(nodes) == 0 {
		return OK
	}

	batch := p.db.NewBatch()
	defer batch.Close()

	var totalBytes int64
	for _, node := range nodes {
		if node == nil {
			continue
		}

		value, err := encodeRecord(node, p.compressor, p.config.CompressionLevel)
		if err != nil {
			return BackendError
		}
		if err := batch.Set(node.Hash[:], value, nil); err != nil {
			return BackendError
		}
		totalBytes += int64(len(value))
	}

	if err := batch.Commit(pebble.NoSync); err != nil {
		return BackendError
	}

	atomic.AddInt64(&p.stats.writes, int64(len(nodes)))
	atomic.AddInt64(&p.stats.bytesWritten, totalBytes)

	return OK
}

// Sync forces pending writes to be flushed.
func (p *PebbleBackend) Sync() Status {
	if !p.IsOpen() {
		return BackendError
	}
	if err := p.db.Flush(); err != nil {
		return BackendError
	}
	return OK
}

// ForEach iterates over all objects in the backend.
func (p *PebbleBackend) ForEach(fn func(*Node) error) error {
	if !p.IsOpen() {
		return ErrBackendClosed
	}

	iter, err := p.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		key := iter.Key()
		if len(key) != 32 {
			continue
		}

		var hash types.Hash256
		copy(hash[:], key)

		node, err := decodeRecord(hash, iter.Value(), p.compressor)
		if err != nil {
			return &StoreError{Operation: "foreach", Hash: hash, Backend: p.Name(), Cause: err}
		}

		if err := fn(node); err != nil {
			return err
		}
	}

	return iter.Error()
}

// SetDeletePath marks the backend's on-disk state for removal on Close.
func (p *PebbleBackend) SetDeletePath() {
	atomic.StoreInt64(&p.deletePath, 1)
}

// Stats returns raw backend counters.
func (p *PebbleBackend) Stats() BackendStats {
	return BackendStats{
		Reads:        atomic.LoadInt64(&p.stats.reads),
		Writes:       atomic.LoadInt64(&p.stats.writes),
		BytesRead:    atomic.LoadInt64(&p.stats.bytesRead),
		BytesWritten: atomic.LoadInt64(&p.stats.bytesWritten),
	}
}

// Compact triggers manual compaction of the whole key range.
func (p *PebbleBackend) Compact() error {
	if !p.IsOpen() {
		return ErrBackendClosed
	}
	var start, end [32]byte
	for i := range end {
		end[i] = 0xFF
	}
	return p.db.Compact(start[:], end[:], true)
}

func init() {
	RegisterBackend("pebble", NewPebbleBackend)
}
