// Package nodestore provides persistent content-addressed storage for trie
// nodes and leaf values. Objects are keyed by their commitment hash and are
// immutable once written, which makes caching and batch writes safe without
// coordination. The package offers pluggable backends (memory, pebble,
// leveldb, bbolt), an expiring LRU read cache, and optional per-record
// compression.
package nodestore

import (
	"context"
	"fmt"
	"time"

	"github.com/LeJamon/gotrie/internal/types"
)

// NodeType identifies what kind of object a stored record holds.
type NodeType uint8

const (
	// NodeUnknown represents an unknown or invalid record type
	NodeUnknown NodeType = 0
	// NodeInner represents an interior trie node (two encoded edges)
	NodeInner NodeType = 1
	// NodeValue represents a leaf payload, keyed by its value commitment
	NodeValue NodeType = 2
)

// String returns the string representation of the NodeType.
func (nt NodeType) String() string {
	switch nt {
	case NodeUnknown:
		return "NodeUnknown"
	case NodeInner:
		return "NodeInner"
	case NodeValue:
		return "NodeValue"
	default:
		return fmt.Sprintf("NodeType(%d)", uint8(nt))
	}
}

// Node is a stored object together with its metadata. Hash is the
// content address the object is keyed by; the store never derives it
// itself because the commitment scheme is owned by the trie layer.
type Node struct {
	Type      NodeType
	Hash      types.Hash256
	Data      types.Blob
	CreatedAt time.Time
}

// NewNode creates a Node for the given content address.
func NewNode(nodeType NodeType, hash types.Hash256, data types.Blob) *Node {
	return &Node{
		Type:      nodeType,
		Hash:      hash,
		Data:      data,
		CreatedAt: time.Now(),
	}
}

// Size returns the size of the node's data in bytes.
func (n *Node) Size() int {
	return len(n.Data)
}

// IsValid reports whether the node is structurally usable: a known type
// and a non-zero content address. Inner nodes must carry an encoding;
// value records may be empty, an empty payload is a legal leaf.
func (n *Node) IsValid() bool {
	if n == nil {
		return false
	}
	if n.Hash.IsZero() {
		return false
	}
	switch n.Type {
	case NodeInner:
		return len(n.Data) > 0
	case NodeValue:
		return true
	default:
		return false
	}
}

// Result carries the outcome of an asynchronous fetch.
type Result struct {
	Node *Node
	Err  error
}

// Database is the main interface of the node store.
type Database interface {
	// Store persists a node.
	Store(ctx context.Context, node *Node) error

	// Fetch retrieves a node by its content address.
	// A missing node is reported as (nil, nil).
	Fetch(ctx context.Context, hash types.Hash256) (*Node, error)

	// FetchBatch retrieves multiple nodes in one operation. The result
	// slice is positionally aligned with the input; missing nodes are nil.
	FetchBatch(ctx context.Context, hashes []types.Hash256) ([]*Node, error)

	// FetchAsync retrieves a node asynchronously, returning a channel
	// that yields exactly one Result.
	FetchAsync(ctx context.Context, hash types.Hash256) <-chan Result

	// StoreBatch persists multiple nodes in one operation.
	StoreBatch(ctx context.Context, nodes []*Node) error

	// Sweep evicts expired cache entries.
	Sweep() error

	// Stats returns performance counters.
	Stats() Statistics

	// Close flushes and releases the underlying backend.
	Close() error

	// Sync forces pending writes to stable storage.
	Sync() error
}

// Statistics holds performance counters for a Database.
type Statistics struct {
	Reads       uint64
	CacheHits   uint64
	CacheMisses uint64
	ReadBytes   uint64

	Writes     uint64
	WriteBytes uint64

	CacheSize    uint64
	CacheMaxSize uint64

	BackendName string
}

// String returns a formatted representation of the statistics.
func (s Statistics) String() string {
	hitRate := float64(0)
	if s.Reads > 0 {
		hitRate = float64(s.CacheHits) / float64(s.Reads) * 100
	}

	return fmt.Sprintf(`NodeStore Statistics:
  Backend: %s
  Reads: %d (%.2f%% cache hit rate)
  Cache: %d/%d items
  Writes: %d
  Read Bytes: %d
  Write Bytes: %d`,
		s.BackendName,
		s.Reads, hitRate,
		s.CacheSize, s.CacheMaxSize,
		s.Writes,
		s.ReadBytes,
		s.WriteBytes)
}

// Status is the outcome of a backend operation.
type Status int

const (
	// OK indicates the operation was successful
	OK Status = iota
	// NotFound indicates the requested object was not found
	NotFound
	// DataCorrupt indicates the stored data failed to decode
	DataCorrupt
	// BackendError indicates a failure in the storage backend
	BackendError
)

// String returns the string representation of Status.
func (s Status) String() string {
	switch s {
	case OK:
		return "OK"
	case NotFound:
		return "NotFound"
	case DataCorrupt:
		return "DataCorrupt"
	case BackendError:
		return "BackendError"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Backend is the interface storage engines implement.
type Backend interface {
	// Name returns a human-readable name for this backend.
	Name() string

	// Open opens the backend for use.
	Open(createIfMissing bool) error

	// Close closes the backend and releases resources.
	Close() error

	// IsOpen reports whether the backend is currently open.
	IsOpen() bool

	// Fetch retrieves a single object by content address.
	Fetch(key types.Hash256) (*Node, Status)

	// FetchBatch retrieves multiple objects, positionally aligned.
	FetchBatch(keys []types.Hash256) ([]*Node, Status)

	// Store saves a single object.
	Store(node *Node) Status

	// StoreBatch saves multiple objects atomically where the engine
	// supports it.
	StoreBatch(nodes []*Node) Status

	// Sync forces pending writes to be flushed.
	Sync() Status

	// ForEach iterates over all objects in the backend.
	ForEach(fn func(*Node) error) error

	// SetDeletePath marks the backend's on-disk state for removal on Close.
	SetDeletePath()
}

// BackendStats holds raw counters reported by a backend.
type BackendStats struct {
	Reads        int64
	Writes       int64
	BytesRead    int64
	BytesWritten int64
	NodeCount    int64
}
