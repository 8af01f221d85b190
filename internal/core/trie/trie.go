// Package trie implements a content-addressed, path-compressed binary
// trie. Every key maps through a chain of labeled edges to a leaf
// commitment, and the hash of the root edge commits to the entire
// key/value set: any party holding that root hash can check inclusion
// or absence of a key against a compact proof, with no access to the
// node store.
package trie

import (
	"fmt"
	"sync"

	"github.com/LeJamon/gotrie/internal/types"
)

// Trie is the engine. All node content is immutable and shared through
// the store; the root edge is the only mutable state, guarded by mu so
// concurrent insertions serialize their read-modify-write on it.
// Readers snapshot the root under RLock and then walk lock-free.
type Trie struct {
	mu    sync.RWMutex
	store Store
	root  Edge
}

// New creates an empty trie over the given store.
func New(store Store) *Trie {
	return &Trie{store: store}
}

// NewAt resumes a trie at a previously committed root edge.
func NewAt(store Store, root Edge) *Trie {
	return &Trie{store: store, root: root}
}

// RootHash returns the current commitment to the whole key/value set.
// It is the zero hash while the trie is empty.
func (t *Trie) RootHash() types.Hash256 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root.Hash()
}

// RootEdge returns the edge describing the entire trie.
func (t *Trie) RootEdge() Edge {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

// GetNode returns the two child edges stored under a node hash. It is
// a diagnostic API: with it a caller can walk the whole structure.
func (t *Trie) GetNode(hash types.Hash256) (*Node, error) {
	return t.store.Node(hash)
}

// Insert adds or overwrites a key and returns the new root commitment.
// Every node on the path from the modification point to the root is
// rebuilt, batched, and persisted before the root is swapped; a storage
// failure leaves the previous root valid and untouched.
func (t *Trie) Insert(key, value []byte) (types.Hash256, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	k := KeyLabel(key)
	leaf := LeafHash(value)

	batch := NewBatch()
	batch.Values[leaf] = append([]byte(nil), value...)

	newRoot, err := t.insertAtEdge(t.root, k, leaf, batch)
	if err != nil {
		return types.Hash256{}, err
	}

	if err := t.store.Apply(batch); err != nil {
		return types.Hash256{}, fmt.Errorf("failed to persist insertion: %w", err)
	}

	t.root = newRoot
	return newRoot.Hash(), nil
}

// insertAtEdge descends along e consuming bits of k and returns the
// replacement edge. New nodes are staged into batch bottom-up.
func (t *Trie) insertAtEdge(e Edge, k Label, leaf types.Hash256, batch *Batch) (Edge, error) {
	if e.IsEmpty() {
		// Empty slot: the edge carries the whole remaining key.
		return Edge{Label: k, Target: leaf}, nil
	}

	prefixLen := k.CommonPrefixLen(e.Label)

	if prefixLen == e.Label.Length {
		if k.Length == e.Label.Length {
			// Exact key match: overwrite the leaf commitment. The
			// shape is unchanged, only the ancestor hashes move.
			return Edge{Label: e.Label, Target: leaf}, nil
		}

		// Full label match with key bits remaining: descend into the
		// child selected by the next bit.
		bit, rest := k.Suffix(prefixLen).ChopFirstBit()

		node, err := t.store.Node(e.Target)
		if err != nil {
			return Edge{}, fmt.Errorf("failed to load node %s: %w", e.Target, err)
		}

		child, err := t.insertAtEdge(node.Edges[bit], rest, leaf, batch)
		if err != nil {
			return Edge{}, err
		}

		updated := *node
		updated.Edges[bit] = child
		h := updated.Hash()
		batch.Nodes[h] = &updated
		return Edge{Label: e.Label, Target: h}, nil
	}

	// Divergence inside the label: split the edge at the first
	// differing bit. One child keeps the old edge's remaining suffix
	// and target, the other is a fresh leaf for the new key.
	common := e.Label.Prefix(prefixLen)
	oldBit, oldRest := e.Label.Suffix(prefixLen).ChopFirstBit()
	newBit, newRest := k.Suffix(prefixLen).ChopFirstBit()

	var split Node
	split.Edges[oldBit] = Edge{Label: oldRest, Target: e.Target}
	split.Edges[newBit] = Edge{Label: newRest, Target: leaf}

	h := split.Hash()
	batch.Nodes[h] = &split
	return Edge{Label: common, Target: h}, nil
}

// Get returns the value stored for key, with ok=false when absent.
func (t *Trie) Get(key []byte) ([]byte, bool, error) {
	leaf, err := t.lookup(KeyLabel(key))
	if err == ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	value, err := t.store.Value(leaf)
	if err != nil {
		return nil, false, fmt.Errorf("failed to load value %s: %w", leaf, err)
	}
	return value, true, nil
}

// SafeGet behaves like Get but treats absence as an error, returning
// ErrNotFound for callers that consider a miss exceptional.
func (t *Trie) SafeGet(key []byte) ([]byte, error) {
	value, ok, err := t.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return value, nil
}

// Has reports whether the trie includes key.
func (t *Trie) Has(key []byte) (bool, error) {
	_, err := t.lookup(KeyLabel(key))
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// rootSnapshot returns a consistent view of the root edge.
func (t *Trie) rootSnapshot() Edge {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.root
}

// lookup walks the path for a key label and returns the leaf
// commitment. Any label mismatch along the way is conclusive proof of
// absence, so the walk stops there with ErrNotFound.
func (t *Trie) lookup(k Label) (types.Hash256, error) {
	e := t.rootSnapshot()

	for {
		if e.IsEmpty() {
			return types.Hash256{}, ErrNotFound
		}

		prefixLen := k.CommonPrefixLen(e.Label)
		if prefixLen != e.Label.Length {
			return types.Hash256{}, ErrNotFound
		}
		if k.Length == e.Label.Length {
			return e.Target, nil
		}

		bit, rest := k.Suffix(prefixLen).ChopFirstBit()

		node, err := t.store.Node(e.Target)
		if err != nil {
			return types.Hash256{}, fmt.Errorf("failed to load node %s: %w", e.Target, err)
		}

		e = node.Edges[bit]
		k = rest
	}
}
