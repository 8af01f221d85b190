package triedb

import (
	"context"

	"github.com/LeJamon/gotrie/internal/core/trie"
	"github.com/LeJamon/gotrie/internal/storage/nodestore"
	"github.com/LeJamon/gotrie/internal/types"
)

// nodeStoreAdapter implements trie.Store on top of a nodestore.Database.
// Inner nodes are stored as their 132-byte canonical encoding, leaf
// values as raw blobs under their value commitment.
type nodeStoreAdapter struct {
	db nodestore.Database
}

func newNodeStoreAdapter(db nodestore.Database) *nodeStoreAdapter {
	return &nodeStoreAdapter{db: db}
}

// Node returns the two child edges stored under a node hash.
func (a *nodeStoreAdapter) Node(hash types.Hash256) (*trie.Node, error) {
	record, err := a.db.Fetch(context.Background(), hash)
	if err != nil {
		return nil, err
	}
	if record == nil || record.Type != nodestore.NodeInner {
		return nil, trie.ErrNodeNotFound
	}
	return trie.DecodeNode(record.Data)
}

// Value returns the value blob stored under a leaf commitment.
func (a *nodeStoreAdapter) Value(hash types.Hash256) ([]byte, error) {
	record, err := a.db.Fetch(context.Background(), hash)
	if err != nil {
		return nil, err
	}
	if record == nil || record.Type != nodestore.NodeValue {
		return nil, trie.ErrValueNotFound
	}
	return record.Data, nil
}

// Apply persists every record in the batch in one backend write.
func (a *nodeStoreAdapter) Apply(batch *trie.Batch) error {
	records := make([]*nodestore.Node, 0, len(batch.Nodes)+len(batch.Values))

	for hash, node := range batch.Nodes {
		records = append(records, nodestore.NewNode(nodestore.NodeInner, hash, node.Encode()))
	}
	for hash, value := range batch.Values {
		records = append(records, nodestore.NewNode(nodestore.NodeValue, hash, value))
	}

	return a.db.StoreBatch(context.Background(), records)
}

// Rehash recomputes the content address a stored record should carry,
// for store verification.
func Rehash(record *nodestore.Node) (types.Hash256, error) {
	switch record.Type {
	case nodestore.NodeInner:
		node, err := trie.DecodeNode(record.Data)
		if err != nil {
			return types.Hash256{}, err
		}
		return node.Hash(), nil
	case nodestore.NodeValue:
		return trie.LeafHash(record.Data), nil
	default:
		return types.Hash256{}, nodestore.ErrInvalidNode
	}
}
