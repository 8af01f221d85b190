package trie

import (
	"sync"

	"github.com/LeJamon/gotrie/internal/types"
)

// Batch collects the records created by a single insertion so they can
// be persisted in one operation before the root commitment is swapped.
// The store is content-addressed and append-only: applying a batch
// twice, or abandoning one after a failure, never corrupts anything.
type Batch struct {
	Nodes  map[types.Hash256]*Node
	Values map[types.Hash256][]byte
}

// NewBatch creates an empty batch.
func NewBatch() *Batch {
	return &Batch{
		Nodes:  make(map[types.Hash256]*Node),
		Values: make(map[types.Hash256][]byte),
	}
}

// Store is the node persistence the trie engine runs against. Lookups
// are keyed by content hash; Apply must be atomic enough that a failed
// call leaves previously stored records readable.
type Store interface {
	// Node returns the two child edges stored under a node hash.
	// Returns ErrNodeNotFound if no such record exists.
	Node(hash types.Hash256) (*Node, error)

	// Value returns the value blob stored under a leaf commitment.
	// Returns ErrValueNotFound if no such record exists.
	Value(hash types.Hash256) ([]byte, error)

	// Apply persists every record in the batch.
	Apply(batch *Batch) error
}

// MemoryStore is an in-memory Store for tests and ephemeral tries.
type MemoryStore struct {
	mu     sync.RWMutex
	nodes  map[types.Hash256]*Node
	values map[types.Hash256][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nodes:  make(map[types.Hash256]*Node),
		values: make(map[types.Hash256][]byte),
	}
}

// Node returns the node stored under hash.
func (m *MemoryStore) Node(hash types.Hash256) (*Node, error) {
	m.mu.RLock()
	n, ok := m.nodes[hash]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNodeNotFound
	}
	cp := *n
	return &cp, nil
}

// Value returns the value blob stored under a leaf commitment.
func (m *MemoryStore) Value(hash types.Hash256) ([]byte, error) {
	m.mu.RLock()
	v, ok := m.values[hash]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrValueNotFound
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

// Apply persists every record in the batch.
func (m *MemoryStore) Apply(batch *Batch) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for h, n := range batch.Nodes {
		cp := *n
		m.nodes[h] = &cp
	}
	for h, v := range batch.Values {
		cp := make([]byte, len(v))
		copy(cp, v)
		m.values[h] = cp
	}
	return nil
}

// Len returns the number of node records held.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.nodes)
}
