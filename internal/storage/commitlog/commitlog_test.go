package commitlog

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/LeJamon/gotrie/internal/core/trie"
)

func rootAfterInserts(t *testing.T, pairs map[string]string) trie.Edge {
	t.Helper()
	tr := trie.New(trie.NewMemoryStore())
	for k, v := range pairs {
		_, err := tr.Insert([]byte(k), []byte(v))
		require.NoError(t, err)
	}
	return tr.RootEdge()
}

func TestAppendAndLatest(t *testing.T) {
	log, err := Open(":memory:")
	require.NoError(t, err)
	defer log.Close()

	ctx := context.Background()

	_, err = log.Latest(ctx)
	require.ErrorIs(t, err, ErrEmpty)

	root1 := rootAfterInserts(t, map[string]string{"key1": "v1"})
	seq1, err := log.Append(ctx, root1)
	require.NoError(t, err)
	require.Equal(t, uint64(1), seq1)

	root2 := rootAfterInserts(t, map[string]string{"key1": "v1", "key2": "v2"})
	seq2, err := log.Append(ctx, root2)
	require.NoError(t, err)
	require.Equal(t, uint64(2), seq2)

	latest, err := log.Latest(ctx)
	require.NoError(t, err)
	require.Equal(t, seq2, latest.Seq)
	require.Equal(t, root2, latest.Root)
	require.Equal(t, root2.Hash(), latest.RootHash())
	require.False(t, latest.CreatedAt.IsZero())
}

func TestGetBySequence(t *testing.T) {
	log, err := Open(":memory:")
	require.NoError(t, err)
	defer log.Close()

	ctx := context.Background()
	root := rootAfterInserts(t, map[string]string{"a": "1"})
	seq, err := log.Append(ctx, root)
	require.NoError(t, err)

	commit, err := log.Get(ctx, seq)
	require.NoError(t, err)
	require.Equal(t, root, commit.Root)

	_, err = log.Get(ctx, seq+100)
	require.ErrorIs(t, err, ErrSeqNotFound)
}

func TestHistoryNewestFirst(t *testing.T) {
	log, err := Open(":memory:")
	require.NoError(t, err)
	defer log.Close()

	ctx := context.Background()
	pairs := map[string]string{}
	var roots []trie.Edge
	for _, k := range []string{"key1", "key2", "key3", "key4"} {
		pairs[k] = "value of " + k
		root := rootAfterInserts(t, pairs)
		roots = append(roots, root)
		_, err := log.Append(ctx, root)
		require.NoError(t, err)
	}

	history, err := log.History(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, len(roots))
	for i, commit := range history {
		require.Equal(t, roots[len(roots)-1-i], commit.Root)
	}

	limited, err := log.History(ctx, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	require.Equal(t, roots[3], limited[0].Root)
	require.Equal(t, roots[2], limited[1].Root)

	count, err := log.Len(ctx)
	require.NoError(t, err)
	require.Equal(t, len(roots), count)
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "commits.db")
	ctx := context.Background()

	log, err := Open(path)
	require.NoError(t, err)

	root := rootAfterInserts(t, map[string]string{"persisted": "yes"})
	seq, err := log.Append(ctx, root)
	require.NoError(t, err)
	require.NoError(t, log.Close())

	reopened, err := Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	latest, err := reopened.Latest(ctx)
	require.NoError(t, err)
	require.Equal(t, seq, latest.Seq)
	require.Equal(t, root, latest.Root)
}

func TestClosedLog(t *testing.T) {
	log, err := Open(":memory:")
	require.NoError(t, err)
	require.NoError(t, log.Close())

	ctx := context.Background()
	_, err = log.Append(ctx, trie.Edge{})
	require.ErrorIs(t, err, ErrClosed)
	_, err = log.Latest(ctx)
	require.ErrorIs(t, err, ErrClosed)

	// Closing twice is fine.
	require.NoError(t, log.Close())
}
