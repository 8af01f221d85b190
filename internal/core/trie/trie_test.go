package trie

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/LeJamon/gotrie/internal/types"
	"github.com/stretchr/testify/require"
)

func newTestTrie(t *testing.T) *Trie {
	t.Helper()
	return New(NewMemoryStore())
}

func TestEmptyTrie(t *testing.T) {
	tr := newTestTrie(t)

	require.True(t, tr.RootHash().IsZero())
	require.True(t, tr.RootEdge().IsEmpty())

	_, ok, err := tr.Get([]byte("missing"))
	require.NoError(t, err)
	require.False(t, ok)

	_, err = tr.SafeGet([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)

	has, err := tr.Has([]byte("missing"))
	require.NoError(t, err)
	require.False(t, has)
}

func TestInsertAndGet(t *testing.T) {
	tr := newTestTrie(t)

	root, err := tr.Insert([]byte("foo"), []byte("bar"))
	require.NoError(t, err)
	require.False(t, root.IsZero())
	require.Equal(t, root, tr.RootHash())

	value, ok, err := tr.Get([]byte("foo"))
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, []byte("bar"), value)

	has, err := tr.Has([]byte("foo"))
	require.NoError(t, err)
	require.True(t, has)
}

func TestSingleEntryRootShape(t *testing.T) {
	tr := newTestTrie(t)

	_, err := tr.Insert([]byte("foo"), []byte("bar"))
	require.NoError(t, err)

	// A one-entry trie is a single edge carrying the whole key,
	// targeting the leaf commitment directly.
	edge := tr.RootEdge()
	require.Equal(t, KeyLabel([]byte("foo")), edge.Label)
	require.Equal(t, LeafHash([]byte("bar")), edge.Target)
	require.Equal(t, edge.Hash(), tr.RootHash())
}

func TestOverwriteChangesRoot(t *testing.T) {
	tr := newTestTrie(t)

	root1, err := tr.Insert([]byte("foo"), []byte("bar"))
	require.NoError(t, err)

	root2, err := tr.Insert([]byte("foo"), []byte("baz"))
	require.NoError(t, err)
	require.NotEqual(t, root1, root2)

	value, err := tr.SafeGet([]byte("foo"))
	require.NoError(t, err)
	require.Equal(t, []byte("baz"), value)
}

func TestMultipleKeys(t *testing.T) {
	tr := newTestTrie(t)

	entries := map[string]string{
		"key1": "value one",
		"key2": "value two",
		"key3": "value three",
	}
	for k, v := range entries {
		_, err := tr.Insert([]byte(k), []byte(v))
		require.NoError(t, err)
	}

	for k, v := range entries {
		got, err := tr.SafeGet([]byte(k))
		require.NoError(t, err)
		require.Equal(t, []byte(v), got)
	}

	has, err := tr.Has([]byte("key4"))
	require.NoError(t, err)
	require.False(t, has)
}

func TestOrderIndependence(t *testing.T) {
	keys := []string{"key1", "key2", "key3"}
	values := []string{"v1", "v2", "v3"}

	build := func(order []int) types.Hash256 {
		tr := New(NewMemoryStore())
		for _, i := range order {
			_, err := tr.Insert([]byte(keys[i]), []byte(values[i]))
			require.NoError(t, err)
		}
		return tr.RootHash()
	}

	want := build([]int{0, 1, 2})
	require.Equal(t, want, build([]int{0, 1, 2}))
	require.Equal(t, want, build([]int{2, 1, 0}))
	require.Equal(t, want, build([]int{1, 0, 2}))
	require.Equal(t, want, build([]int{2, 0, 1}))
}

func TestOrderIndependenceLarge(t *testing.T) {
	const n = 200
	rng := rand.New(rand.NewSource(42))

	keys := make([][]byte, n)
	values := make([][]byte, n)
	for i := range keys {
		keys[i] = []byte(fmt.Sprintf("account-%04d", i))
		values[i] = make([]byte, 32)
		rng.Read(values[i])
	}

	forward := New(NewMemoryStore())
	for i := 0; i < n; i++ {
		_, err := forward.Insert(keys[i], values[i])
		require.NoError(t, err)
	}

	shuffled := New(NewMemoryStore())
	for _, i := range rng.Perm(n) {
		_, err := shuffled.Insert(keys[i], values[i])
		require.NoError(t, err)
	}

	require.Equal(t, forward.RootHash(), shuffled.RootHash())

	for i := range keys {
		got, err := forward.SafeGet(keys[i])
		require.NoError(t, err)
		require.Equal(t, values[i], got)
	}
}

func TestOverwriteIsOrderIndependent(t *testing.T) {
	// The root depends on the final key/value mapping only, so an
	// overwrite must converge with a fresh build of the final state.
	a := New(NewMemoryStore())
	_, err := a.Insert([]byte("foo"), []byte("bar"))
	require.NoError(t, err)
	_, err = a.Insert([]byte("quux"), []byte("x"))
	require.NoError(t, err)
	_, err = a.Insert([]byte("foo"), []byte("baz"))
	require.NoError(t, err)

	b := New(NewMemoryStore())
	_, err = b.Insert([]byte("quux"), []byte("x"))
	require.NoError(t, err)
	_, err = b.Insert([]byte("foo"), []byte("baz"))
	require.NoError(t, err)

	require.Equal(t, a.RootHash(), b.RootHash())
}

func TestGetNode(t *testing.T) {
	tr := newTestTrie(t)

	for i := 0; i < 8; i++ {
		_, err := tr.Insert([]byte(fmt.Sprintf("key-%d", i)), []byte{byte(i)})
		require.NoError(t, err)
	}

	// Walk the whole structure through the diagnostic API, counting
	// leaves: every edge whose label exhausts the key depth is a leaf.
	var leaves int
	var walk func(e Edge, consumed int)
	walk = func(e Edge, consumed int) {
		consumed += e.Label.Length
		if consumed == KeyBits {
			leaves++
			return
		}
		node, err := tr.GetNode(e.Target)
		require.NoError(t, err)
		walk(node.Edges[0], consumed+1)
		walk(node.Edges[1], consumed+1)
	}
	walk(tr.RootEdge(), 0)

	require.Equal(t, 8, leaves)
}

func TestGetNodeMissing(t *testing.T) {
	tr := newTestTrie(t)
	_, err := tr.GetNode(types.Hash256{0x01})
	require.ErrorIs(t, err, ErrNodeNotFound)
}

func TestInsertFailureLeavesRootIntact(t *testing.T) {
	store := &failingStore{MemoryStore: NewMemoryStore()}
	tr := New(store)

	root, err := tr.Insert([]byte("foo"), []byte("bar"))
	require.NoError(t, err)

	store.fail = true
	_, err = tr.Insert([]byte("other"), []byte("value"))
	require.Error(t, err)

	// The previous root must still be valid and readable.
	require.Equal(t, root, tr.RootHash())
	value, err := tr.SafeGet([]byte("foo"))
	require.NoError(t, err)
	require.Equal(t, []byte("bar"), value)
}

func TestNodeEncodeDecode(t *testing.T) {
	tr := newTestTrie(t)
	for i := 0; i < 4; i++ {
		_, err := tr.Insert([]byte(fmt.Sprintf("key-%d", i)), []byte{byte(i)})
		require.NoError(t, err)
	}

	node, err := tr.GetNode(tr.RootEdge().Target)
	require.NoError(t, err)

	decoded, err := DecodeNode(node.Encode())
	require.NoError(t, err)
	require.Equal(t, node, decoded)
	require.Equal(t, node.Hash(), decoded.Hash())
}

func TestDecodeNodeRejectsGarbage(t *testing.T) {
	_, err := DecodeNode([]byte("short"))
	require.ErrorIs(t, err, ErrInvalidNode)

	_, err = DecodeNode(make([]byte, encodedNodeSize+1))
	require.ErrorIs(t, err, ErrInvalidNode)
}

// failingStore wraps MemoryStore and fails Apply on demand.
type failingStore struct {
	*MemoryStore
	fail bool
}

func (f *failingStore) Apply(batch *Batch) error {
	if f.fail {
		return fmt.Errorf("simulated storage failure")
	}
	return f.MemoryStore.Apply(batch)
}
