// Package triedb assembles the trie engine, the node store, and the
// commit log into one authenticated key-value database. It is the layer
// the CLI and any embedding service talk to.
package triedb

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/LeJamon/gotrie/internal/core/trie"
	"github.com/LeJamon/gotrie/internal/storage/commitlog"
	"github.com/LeJamon/gotrie/internal/storage/nodestore"
	"github.com/LeJamon/gotrie/internal/types"
)

// Config assembles the configuration of all layers of a DB.
type Config struct {
	// Store configures the node store backend.
	Store *nodestore.Config `json:"store" yaml:"store" mapstructure:"store"`

	// CommitLogPath is the SQLite file journaling committed roots.
	// Empty disables the journal; the trie then starts empty on open.
	CommitLogPath string `json:"commit_log_path" yaml:"commit_log_path" mapstructure:"commit_log_path"`

	// Writers restricts mutation to the listed callers.
	// Empty admits every caller.
	Writers []string `json:"writers" yaml:"writers" mapstructure:"writers"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Store:         nodestore.DefaultConfig(),
		CommitLogPath: "./commits.db",
	}
}

// DB is an authenticated key-value database: a binary Patricia trie over
// a persistent node store, with a journal of committed roots.
type DB struct {
	mu sync.Mutex // serializes insert+journal so log order matches root order

	trie  *trie.Trie
	nodes nodestore.Database
	log   *commitlog.Log
	gate  WriteGate

	verifyWorkers int
}

// Open opens a DB from the given configuration, restoring the most
// recently journaled root when a commit log is configured.
func Open(cfg *Config) (*DB, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	storeCfg := cfg.Store
	if storeCfg == nil {
		storeCfg = nodestore.DefaultConfig()
	}

	nodes, err := nodestore.Open(storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open node store: %w", err)
	}

	var gate WriteGate = AllowAll{}
	if len(cfg.Writers) > 0 {
		gate = NewStaticList(cfg.Writers...)
	}

	db := &DB{
		nodes:         nodes,
		gate:          gate,
		verifyWorkers: storeCfg.VerifyWorkers,
	}

	store := newNodeStoreAdapter(nodes)

	if cfg.CommitLogPath != "" {
		log, err := commitlog.Open(cfg.CommitLogPath)
		if err != nil {
			nodes.Close()
			return nil, fmt.Errorf("failed to open commit log: %w", err)
		}
		db.log = log

		latest, err := log.Latest(context.Background())
		switch {
		case err == nil:
			db.trie = trie.NewAt(store, latest.Root)
		case errors.Is(err, commitlog.ErrEmpty):
			db.trie = trie.New(store)
		default:
			log.Close()
			nodes.Close()
			return nil, fmt.Errorf("failed to read latest commit: %w", err)
		}
	} else {
		db.trie = trie.New(store)
	}

	return db, nil
}

// Insert writes a key-value pair on behalf of caller and journals the
// resulting root. It returns the new root commitment.
func (db *DB) Insert(ctx context.Context, caller string, key, value []byte) (types.Hash256, error) {
	if err := ctx.Err(); err != nil {
		return types.Hash256{}, err
	}
	if err := db.gate.Allow(caller); err != nil {
		return types.Hash256{}, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	root, err := db.trie.Insert(key, value)
	if err != nil {
		return types.Hash256{}, err
	}

	if db.log != nil {
		if _, err := db.log.Append(ctx, db.trie.RootEdge()); err != nil {
			// The write itself is durable and content-addressed; only the
			// journal entry is missing.
			return root, fmt.Errorf("insert committed but journaling failed: %w", err)
		}
	}

	return root, nil
}

// Get returns the value stored under key.
func (db *DB) Get(ctx context.Context, key []byte) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	return db.trie.Get(key)
}

// SafeGet returns the value stored under key, or trie.ErrNotFound.
func (db *DB) SafeGet(ctx context.Context, key []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return db.trie.SafeGet(key)
}

// Has reports whether key is present.
func (db *DB) Has(ctx context.Context, key []byte) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return db.trie.Has(key)
}

// RootHash returns the current root commitment.
func (db *DB) RootHash() types.Hash256 {
	return db.trie.RootHash()
}

// RootEdge returns the current root edge.
func (db *DB) RootEdge() trie.Edge {
	return db.trie.RootEdge()
}

// GetNode returns the trie node stored under the given commitment.
func (db *DB) GetNode(ctx context.Context, hash types.Hash256) (*trie.Node, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return db.trie.GetNode(hash)
}

// Prove builds an inclusion proof for key against the current root.
func (db *DB) Prove(ctx context.Context, key []byte) (*trie.Proof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return db.trie.GetProof(key)
}

// ProveAbsence builds a non-inclusion proof for key against the current
// root.
func (db *DB) ProveAbsence(ctx context.Context, key []byte) (*trie.NonInclusionProof, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return db.trie.GetNonInclusionProof(key)
}

// History returns up to limit journaled commits, newest first.
func (db *DB) History(ctx context.Context, limit int) ([]commitlog.Commit, error) {
	if db.log == nil {
		return nil, nil
	}
	return db.log.History(ctx, limit)
}

// VerifyStore re-derives the content address of every stored record and
// reports mismatches.
func (db *DB) VerifyStore(ctx context.Context) (*nodestore.VerificationResult, error) {
	impl, ok := db.nodes.(*nodestore.DatabaseImpl)
	if !ok {
		return nil, errors.New("node store does not expose its backend")
	}
	return nodestore.VerifyBackend(ctx, impl.Backend(), Rehash, db.verifyWorkers)
}

// Stats returns node store performance counters.
func (db *DB) Stats() nodestore.Statistics {
	return db.nodes.Stats()
}

// Sync flushes pending node store writes to stable storage.
func (db *DB) Sync() error {
	return db.nodes.Sync()
}

// Close closes the commit log and the node store.
func (db *DB) Close() error {
	var err error
	if db.log != nil {
		err = db.log.Close()
	}
	if closeErr := db.nodes.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
