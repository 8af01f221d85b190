package nodestore

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/LeJamon/gotrie/internal/types"
)

// DatabaseImpl wraps a Backend with a read cache to implement Database.
type DatabaseImpl struct {
	backend Backend
	cache   *Cache
	stats   struct {
		reads       uint64
		cacheHits   uint64
		cacheMisses uint64
		writes      uint64
		readBytes   uint64
		writeBytes  uint64
	}
}

// NewDatabase creates a Database from an opened Backend. A cacheSize of
// zero disables the read cache.
func NewDatabase(backend Backend, cacheSize int, cacheTTL time.Duration) *DatabaseImpl {
	var cache *Cache
	if cacheSize > 0 {
		cache = NewCache(cacheSize, cacheTTL)
	}
	return &DatabaseImpl{
		backend: backend,
		cache:   cache,
	}
}

// Backend returns the wrapped backend.
func (d *DatabaseImpl) Backend() Backend {
	return d.backend
}

// Store persists a node.
func (d *DatabaseImpl) Store(ctx context.Context, node *Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !node.IsValid() {
		return ErrInvalidNode
	}

	if status := d.backend.Store(node); status != OK {
		return wrapStatus("store", d.backend.Name(), node.Hash, status)
	}

	atomic.AddUint64(&d.stats.writes, 1)
	atomic.AddUint64(&d.stats.writeBytes, uint64(len(node.Data)))

	if d.cache != nil {
		d.cache.Put(node)
	}

	return nil
}

// Fetch retrieves a node by content address. A missing node is (nil, nil).
func (d *DatabaseImpl) Fetch(ctx context.Context, hash types.Hash256) (*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	atomic.AddUint64(&d.stats.reads, 1)

	if d.cache != nil {
		if node, found := d.cache.Get(hash); found {
			atomic.AddUint64(&d.stats.cacheHits, 1)
			return node, nil
		}
		atomic.AddUint64(&d.stats.cacheMisses, 1)
	}

	node, status := d.backend.Fetch(hash)
	if status == NotFound {
		return nil, nil
	}
	if status != OK {
		return nil, wrapStatus("fetch", d.backend.Name(), hash, status)
	}

	atomic.AddUint64(&d.stats.readBytes, uint64(len(node.Data)))
	if d.cache != nil {
		d.cache.Put(node)
	}

	return node, nil
}

// FetchBatch retrieves multiple nodes, positionally aligned.
func (d *DatabaseImpl) FetchBatch(ctx context.Context, hashes []types.Hash256) ([]*Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := make([]*Node, len(hashes))
	missing := make([]types.Hash256, 0, len(hashes))
	missingIdx := make([]int, 0, len(hashes))

	for i, hash := range hashes {
		atomic.AddUint64(&d.stats.reads, 1)
		if d.cache != nil {
			if node, found := d.cache.Get(hash); found {
				atomic.AddUint64(&d.stats.cacheHits, 1)
				results[i] = node
				continue
			}
			atomic.AddUint64(&d.stats.cacheMisses, 1)
		}
		missing = append(missing, hash)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return results, nil
	}

	fetched, status := d.backend.FetchBatch(missing)
	if status != OK {
		return nil, wrapStatus("fetch-batch", d.backend.Name(), types.Hash256{}, status)
	}

	for j, node := range fetched {
		if node == nil {
			continue
		}
		results[missingIdx[j]] = node
		atomic.AddUint64(&d.stats.readBytes, uint64(len(node.Data)))
		if d.cache != nil {
			d.cache.Put(node)
		}
	}

	return results, nil
}

// FetchAsync retrieves a node asynchronously.
func (d *DatabaseImpl) FetchAsync(ctx context.Context, hash types.Hash256) <-chan Result {
	resultCh := make(chan Result, 1)

	go func() {
		node, err := d.Fetch(ctx, hash)
		resultCh <- Result{Node: node, Err: err}
		close(resultCh)
	}()

	return resultCh
}

// StoreBatch persists multiple nodes in one backend write.
func (d *DatabaseImpl) StoreBatch(ctx context.Context, nodes []*Node) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, node := range nodes {
		if !node.IsValid() {
			return ErrInvalidNode
		}
	}

	if status := d.backend.StoreBatch(nodes); status != OK {
		return wrapStatus("store-batch", d.backend.Name(), types.Hash256{}, status)
	}

	for _, node := range nodes {
		atomic.AddUint64(&d.stats.writes, 1)
		atomic.AddUint64(&d.stats.writeBytes, uint64(len(node.Data)))
		if d.cache != nil {
			d.cache.Put(node)
		}
	}

	return nil
}

// Sweep evicts expired cache entries.
func (d *DatabaseImpl) Sweep() error {
	if d.cache != nil {
		d.cache.Sweep()
	}
	return nil
}

// Stats returns performance counters.
func (d *DatabaseImpl) Stats() Statistics {
	stats := Statistics{
		Reads:       atomic.LoadUint64(&d.stats.reads),
		CacheHits:   atomic.LoadUint64(&d.stats.cacheHits),
		CacheMisses: atomic.LoadUint64(&d.stats.cacheMisses),
		ReadBytes:   atomic.LoadUint64(&d.stats.readBytes),
		Writes:      atomic.LoadUint64(&d.stats.writes),
		WriteBytes:  atomic.LoadUint64(&d.stats.writeBytes),
		BackendName: d.backend.Name(),
	}

	if d.cache != nil {
		cacheStats := d.cache.Stats()
		stats.CacheSize = uint64(cacheStats.CurrentSize)
		stats.CacheMaxSize = uint64(cacheStats.MaxSize)
	}

	return stats
}

// Close gracefully closes the database.
func (d *DatabaseImpl) Close() error {
	return d.backend.Close()
}

// Sync forces pending writes to disk.
func (d *DatabaseImpl) Sync() error {
	if status := d.backend.Sync(); status != OK {
		return wrapStatus("sync", d.backend.Name(), types.Hash256{}, status)
	}
	return nil
}
