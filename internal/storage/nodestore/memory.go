package nodestore

import (
	"sync"
	"sync/atomic"

	"github.com/LeJamon/gotrie/internal/types"
)

// MemoryBackend implements an in-memory Backend. It is the default for
// tests and for ephemeral tries that never need to survive a restart.
type MemoryBackend struct {
	mu   sync.RWMutex
	data map[types.Hash256]*Node

	open int64 // atomic open flag

	stats struct {
		reads        int64
		writes       int64
		bytesRead    int64
		bytesWritten int64
	}
}

// NewMemoryBackend creates a new in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		data: make(map[types.Hash256]*Node),
	}
}

// NewMemoryBackendFromConfig adapts NewMemoryBackend to the
// BackendFactory signature. The config is ignored.
func NewMemoryBackendFromConfig(*Config) (Backend, error) {
	return NewMemoryBackend(), nil
}

// Name returns the name of this backend.
func (m *MemoryBackend) Name() string {
	return "memory"
}

// Open opens the backend for use.
func (m *MemoryBackend) Open(bool) error {
	if !atomic.CompareAndSwapInt64(&m.open, 0, 1) {
		return ErrBackendClosed
	}
	return nil
}

// Close closes the backend and clears all data.
func (m *MemoryBackend) Close() error {
	if !atomic.CompareAndSwapInt64(&m.open, 1, 0) {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[types.Hash256]*Node)
	return nil
}

// IsOpen reports whether the backend is currently open.
func (m *MemoryBackend) IsOpen() bool {
	return atomic.LoadInt64(&m.open) != 0
}

// Fetch retrieves a single object by content address.
func (m *MemoryBackend) Fetch(key types.Hash256) (*Node, Status) {
	if !m.IsOpen() {
		return nil, BackendError
	}

	m.mu.RLock()
	node, found := m.data[key]
	m.mu.RUnlock()

	if !found {
		return nil, NotFound
	}

	atomic.AddInt64(&m.stats.reads, 1)
	atomic.AddInt64(&m.stats.bytesRead, int64(len(node.Data)))

	return copyNode(node), OK
}

// FetchBatch retrieves multiple objects, positionally aligned.
func (m *MemoryBackend) FetchBatch(keys []types.Hash256) ([]*Node, Status) {
	if !m.IsOpen() {
		return nil, BackendError
	}

	results := make([]*Node, len(keys))

	m.mu.RLock()
	defer m.mu.RUnlock()

	for i, key := range keys {
		if node, found := m.data[key]; found {
			results[i] = copyNode(node)
			atomic.AddInt64(&m.stats.reads, 1)
			atomic.AddInt64(&m.stats.bytesRead, int64(len(node.Data)))
		}
	}

	return results, OK
}

// Store saves a single object.
func (m *MemoryBackend) Store(node *Node) Status {
	if node == nil {
		return BackendError
	}
	if !m.IsOpen() {
		return BackendError
	}

	m.mu.Lock()
	m.data[node.Hash] = copyNode(node)
	m.mu.Unlock()

	atomic.AddInt64(&m.stats.writes, 1)
	atomic.AddInt64(&m.stats.bytesWritten, int64(len(node.Data)))

	return OK
}

// StoreBatch saves multiple objects.
func (m *MemoryBackend) StoreBatch(nodes []*Node) Status {
	if !m.IsOpen() {
		return BackendError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var totalBytes int64
	for _, node := range nodes {
		if node == nil {
			continue
		}
		m.data[node.Hash] = copyNode(node)
		totalBytes += int64(len(node.Data))
	}

	atomic.AddInt64(&m.stats.writes, int64(len(nodes)))
	atomic.AddInt64(&m.stats.bytesWritten, totalBytes)

	return OK
}

// Sync is a no-op for the memory backend.
func (m *MemoryBackend) Sync() Status {
	if !m.IsOpen() {
		return BackendError
	}
	return OK
}

// ForEach iterates over all objects in the backend.
func (m *MemoryBackend) ForEach(fn func(*Node) error) error {
	if !m.IsOpen() {
		return ErrBackendClosed
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, node := range m.data {
		if err := fn(copyNode(node)); err != nil {
			return err
		}
	}

	return nil
}

// SetDeletePath is a no-op for the memory backend.
func (m *MemoryBackend) SetDeletePath() {}

// Has reports whether a node with the given content address exists.
func (m *MemoryBackend) Has(hash types.Hash256) bool {
	if !m.IsOpen() {
		return false
	}

	m.mu.RLock()
	_, found := m.data[hash]
	m.mu.RUnlock()

	return found
}

// Size returns the number of nodes stored in the backend.
func (m *MemoryBackend) Size() int {
	m.mu.RLock()
	size := len(m.data)
	m.mu.RUnlock()
	return size
}

// Stats returns raw backend counters.
func (m *MemoryBackend) Stats() BackendStats {
	return BackendStats{
		Reads:        atomic.LoadInt64(&m.stats.reads),
		Writes:       atomic.LoadInt64(&m.stats.writes),
		BytesRead:    atomic.LoadInt64(&m.stats.bytesRead),
		BytesWritten: atomic.LoadInt64(&m.stats.bytesWritten),
		NodeCount:    int64(m.Size()),
	}
}

// copyNode returns a deep copy so callers cannot mutate stored state.
func copyNode(node *Node) *Node {
	data := make(types.Blob, len(node.Data))
	copy(data, node.Data)
	return &Node{
		Type:      node.Type,
		Hash:      node.Hash,
		Data:      data,
		CreatedAt: node.CreatedAt,
	}
}

func init() {
	RegisterBackend("memory", NewMemoryBackendFromConfig)
}
