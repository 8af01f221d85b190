package nodestore

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	crypto "github.com/LeJamon/gotrie/internal/crypto/common"
	"github.com/LeJamon/gotrie/internal/types"
)

func testNode(t *testing.T, nodeType NodeType, data []byte) *Node {
	t.Helper()
	return NewNode(nodeType, crypto.Sha512Half(data), data)
}

func TestMemoryBackendStoreFetch(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Open(true))
	defer backend.Close()

	node := testNode(t, NodeValue, []byte("hello world"))
	require.Equal(t, OK, backend.Store(node))

	fetched, status := backend.Fetch(node.Hash)
	require.Equal(t, OK, status)
	require.Equal(t, node.Hash, fetched.Hash)
	require.Equal(t, node.Type, fetched.Type)
	require.True(t, bytes.Equal(node.Data, fetched.Data))

	_, status = backend.Fetch(crypto.Sha512Half([]byte("absent")))
	require.Equal(t, NotFound, status)
}

func TestMemoryBackendIsolation(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Open(true))
	defer backend.Close()

	node := testNode(t, NodeValue, []byte("original"))
	require.Equal(t, OK, backend.Store(node))

	// Mutating the caller's copy must not affect stored state.
	node.Data[0] = 'X'

	fetched, status := backend.Fetch(node.Hash)
	require.Equal(t, OK, status)
	require.Equal(t, byte('o'), fetched.Data[0])
}

func TestMemoryBackendClosed(t *testing.T) {
	backend := NewMemoryBackend()

	node := testNode(t, NodeValue, []byte("data"))
	require.Equal(t, BackendError, backend.Store(node))

	_, status := backend.Fetch(node.Hash)
	require.Equal(t, BackendError, status)
}

func TestBackendRegistry(t *testing.T) {
	require.True(t, IsBackendAvailable("memory"))
	require.True(t, IsBackendAvailable("pebble"))
	require.True(t, IsBackendAvailable("leveldb"))
	require.True(t, IsBackendAvailable("bbolt"))
	require.False(t, IsBackendAvailable("bogus"))

	_, err := CreateBackend("bogus", DefaultConfig())
	require.ErrorIs(t, err, ErrUnsupportedBackend)
}

func TestDatabaseFetchUsesCache(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Open(true))
	db := NewDatabase(backend, 128, time.Minute)
	defer db.Close()

	ctx := context.Background()
	node := testNode(t, NodeValue, []byte("cached value"))
	require.NoError(t, db.Store(ctx, node))

	for i := 0; i < 3; i++ {
		fetched, err := db.Fetch(ctx, node.Hash)
		require.NoError(t, err)
		require.NotNil(t, fetched)
	}

	stats := db.Stats()
	require.Equal(t, uint64(3), stats.Reads)
	require.Equal(t, uint64(3), stats.CacheHits)
}

func TestDatabaseFetchMissing(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Open(true))
	db := NewDatabase(backend, 0, 0)
	defer db.Close()

	node, err := db.Fetch(context.Background(), crypto.Sha512Half([]byte("nope")))
	require.NoError(t, err)
	require.Nil(t, node)
}

func TestNodeValidity(t *testing.T) {
	hash := crypto.Sha512Half([]byte("x"))

	// Value records may be empty; inner nodes must carry an encoding.
	require.True(t, NewNode(NodeValue, hash, nil).IsValid())
	require.True(t, NewNode(NodeValue, hash, []byte("x")).IsValid())
	require.False(t, NewNode(NodeInner, hash, nil).IsValid())
	require.False(t, NewNode(NodeValue, types.Hash256{}, []byte("x")).IsValid())
	require.False(t, NewNode(NodeUnknown, hash, []byte("x")).IsValid())
}

func TestEmptyValueRecordRoundTrip(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Open(true))
	db := NewDatabase(backend, 0, 0)
	defer db.Close()

	node := testNode(t, NodeValue, []byte{})
	require.NoError(t, db.Store(context.Background(), node))

	fetched, err := db.Fetch(context.Background(), node.Hash)
	require.NoError(t, err)
	require.NotNil(t, fetched)
	require.Equal(t, NodeValue, fetched.Type)
	require.Empty(t, fetched.Data)
}

func TestDatabaseRejectsInvalidNode(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Open(true))
	db := NewDatabase(backend, 0, 0)
	defer db.Close()

	err := db.Store(context.Background(), &Node{Type: NodeValue})
	require.ErrorIs(t, err, ErrInvalidNode)
}

func TestDatabaseBatch(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Open(true))
	db := NewDatabase(backend, 64, time.Minute)
	defer db.Close()

	ctx := context.Background()
	nodes := []*Node{
		testNode(t, NodeInner, []byte("node a")),
		testNode(t, NodeInner, []byte("node b")),
		testNode(t, NodeValue, []byte("node c")),
	}
	require.NoError(t, db.StoreBatch(ctx, nodes))

	hashes := []types.Hash256{
		nodes[0].Hash,
		crypto.Sha512Half([]byte("missing")),
		nodes[2].Hash,
	}
	fetched, err := db.FetchBatch(ctx, hashes)
	require.NoError(t, err)
	require.Len(t, fetched, 3)
	require.NotNil(t, fetched[0])
	require.Nil(t, fetched[1])
	require.NotNil(t, fetched[2])
	require.Equal(t, nodes[2].Hash, fetched[2].Hash)
}

func TestDatabaseFetchAsync(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Open(true))
	db := NewDatabase(backend, 0, 0)
	defer db.Close()

	ctx := context.Background()
	node := testNode(t, NodeValue, []byte("async"))
	require.NoError(t, db.Store(ctx, node))

	result := <-db.FetchAsync(ctx, node.Hash)
	require.NoError(t, result.Err)
	require.NotNil(t, result.Node)
	require.Equal(t, node.Hash, result.Node.Hash)
}

func TestDatabaseContextCanceled(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Open(true))
	db := NewDatabase(backend, 0, 0)
	defer db.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := db.Fetch(ctx, crypto.Sha512Half([]byte("x")))
	require.ErrorIs(t, err, context.Canceled)

	err = db.Store(ctx, testNode(t, NodeValue, []byte("x")))
	require.ErrorIs(t, err, context.Canceled)
}

func TestOpenFromConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = "memory"
	cfg.Path = ""

	db, err := Open(cfg)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	node := testNode(t, NodeValue, []byte("configured"))
	require.NoError(t, db.Store(ctx, node))

	fetched, err := db.Fetch(ctx, node.Hash)
	require.NoError(t, err)
	require.NotNil(t, fetched)

	stats := db.Stats()
	require.Equal(t, "memory", stats.BackendName)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"missing backend", func(c *Config) { c.Backend = "" }, true},
		{"missing path", func(c *Config) { c.Path = "" }, true},
		{"memory without path", func(c *Config) { c.Backend = "memory"; c.Path = "" }, false},
		{"negative cache", func(c *Config) { c.CacheSize = -1 }, true},
		{"bad compressor", func(c *Config) { c.Compressor = "zip" }, true},
		{"bad level", func(c *Config) { c.CompressionLevel = 11 }, true},
		{"no workers", func(c *Config) { c.VerifyWorkers = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestRecordRoundTrip(t *testing.T) {
	compressible := bytes.Repeat([]byte("abcdefgh"), 512)

	tests := []struct {
		name       string
		compressor string
		data       []byte
	}{
		{"small raw", "lz4", []byte("tiny")},
		{"large lz4", "lz4", compressible},
		{"large none", "none", compressible},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Compressor = tt.compressor
			backend, err := NewPebbleBackend(cfg)
			require.NoError(t, err)
			pb := backend.(*PebbleBackend)

			node := testNode(t, NodeValue, tt.data)
			encoded, err := encodeRecord(node, pb.compressor, cfg.CompressionLevel)
			require.NoError(t, err)

			decoded, err := decodeRecord(node.Hash, encoded, pb.compressor)
			require.NoError(t, err)
			require.Equal(t, node.Type, decoded.Type)
			require.True(t, bytes.Equal(node.Data, decoded.Data))
			require.Equal(t, node.CreatedAt.UnixNano(), decoded.CreatedAt.UnixNano())
		})
	}
}

func TestDecodeRecordCorrupt(t *testing.T) {
	cfg := DefaultConfig()
	backend, err := NewPebbleBackend(cfg)
	require.NoError(t, err)
	pb := backend.(*PebbleBackend)

	hash := crypto.Sha512Half([]byte("x"))

	_, err = decodeRecord(hash, []byte{1, 2, 3}, pb.compressor)
	require.ErrorIs(t, err, ErrDataCorrupt)

	node := testNode(t, NodeValue, []byte("some payload data"))
	encoded, err := encodeRecord(node, pb.compressor, 1)
	require.NoError(t, err)

	// Truncated payload must not decode.
	_, err = decodeRecord(hash, encoded[:len(encoded)-2], pb.compressor)
	require.ErrorIs(t, err, ErrDataCorrupt)
}
