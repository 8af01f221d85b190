package trie

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/LeJamon/gotrie/internal/types"
	"github.com/stretchr/testify/require"
)

func TestProofRoundTrip(t *testing.T) {
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
	root := tr.RootHash()

	for k, v := range entries {
		proof, err := tr.GetProof([]byte(k))
		require.NoError(t, err)
		require.Equal(t, proof.BranchMask.Count(), len(proof.Siblings))

		err = VerifyProof(root, []byte(k), []byte(v), proof.BranchMask, proof.Siblings)
		require.NoError(t, err, "proof for %q must verify", k)
	}
}

func TestProofSingleEntry(t *testing.T) {
	tr := newTestTrie(t)
	root, err := tr.Insert([]byte("foo"), []byte("bar"))
	require.NoError(t, err)

	proof, err := tr.GetProof([]byte("foo"))
	require.NoError(t, err)
	require.Empty(t, proof.Siblings)
	require.Equal(t, 0, proof.BranchMask.Count())

	require.NoError(t, VerifyProof(root, []byte("foo"), []byte("bar"), proof.BranchMask, proof.Siblings))
}

func TestProofForAbsentKey(t *testing.T) {
	tr := newTestTrie(t)

	_, err := tr.GetProof([]byte("anything"))
	require.ErrorIs(t, err, ErrKeyNotFound)

	_, err = tr.Insert([]byte("key1"), []byte("v1"))
	require.NoError(t, err)

	_, err = tr.GetProof([]byte("key2"))
	require.ErrorIs(t, err, ErrKeyNotFound)
}

func TestProofTamperDetection(t *testing.T) {
	tr := newTestTrie(t)

	const n = 16
	for i := 0; i < n; i++ {
		_, err := tr.Insert([]byte(fmt.Sprintf("key-%d", i)), []byte(fmt.Sprintf("value-%d", i)))
		require.NoError(t, err)
	}
	root := tr.RootHash()

	key := []byte("key-7")
	value := []byte("value-7")
	proof, err := tr.GetProof(key)
	require.NoError(t, err)
	require.NotEmpty(t, proof.Siblings)

	t.Run("tampered value", func(t *testing.T) {
		bad := append([]byte(nil), value...)
		bad[0] ^= 0x01
		err := VerifyProof(root, key, bad, proof.BranchMask, proof.Siblings)
		require.ErrorIs(t, err, ErrInvalidProof)
	})

	t.Run("tampered sibling", func(t *testing.T) {
		for i := range proof.Siblings {
			bad := append([]types.Hash256(nil), proof.Siblings...)
			bad[i][5] ^= 0x80
			err := VerifyProof(root, key, value, proof.BranchMask, bad)
			require.ErrorIs(t, err, ErrInvalidProof, "sibling %d", i)
		}
	})

	t.Run("tampered branch mask", func(t *testing.T) {
		for _, d := range []int{0, 13, 255} {
			bad := proof.BranchMask
			bad[d/8] ^= 1 << (7 - uint(d%8))
			err := VerifyProof(root, key, value, bad, proof.Siblings)
			require.ErrorIs(t, err, ErrInvalidProof, "flipped depth %d", d)
		}
	})

	t.Run("mismatched key", func(t *testing.T) {
		err := VerifyProof(root, []byte("key-8"), value, proof.BranchMask, proof.Siblings)
		require.ErrorIs(t, err, ErrInvalidProof)
	})

	t.Run("wrong root", func(t *testing.T) {
		badRoot := root
		badRoot[0] ^= 0x01
		err := VerifyProof(badRoot, key, value, proof.BranchMask, proof.Siblings)
		require.ErrorIs(t, err, ErrInvalidProof)
	})
}

func TestProofAllStoredKeysRandomized(t *testing.T) {
	tr := newTestTrie(t)
	rng := rand.New(rand.NewSource(7))

	const n = 64
	keys := make([][]byte, n)
	values := make([][]byte, n)
	for i := range keys {
		keys[i] = make([]byte, 8+rng.Intn(24))
		values[i] = make([]byte, 1+rng.Intn(64))
		rng.Read(keys[i])
		rng.Read(values[i])
		_, err := tr.Insert(keys[i], values[i])
		require.NoError(t, err)
	}
	root := tr.RootHash()

	for i := range keys {
		proof, err := tr.GetProof(keys[i])
		require.NoError(t, err)
		require.NoError(t, VerifyProof(root, keys[i], values[i], proof.BranchMask, proof.Siblings))
	}
}

func TestNonInclusionProof(t *testing.T) {
	tr := newTestTrie(t)

	for _, k := range []string{"key1", "key2", "key3"} {
		_, err := tr.Insert([]byte(k), []byte("value of "+k))
		require.NoError(t, err)
	}
	root := tr.RootHash()

	proof, err := tr.GetNonInclusionProof([]byte("key4"))
	require.NoError(t, err)

	err = VerifyNonInclusionProof(root, []byte("key4"), proof.LeafLabel, proof.LeafNode, proof.BranchMask, proof.Siblings)
	require.NoError(t, err)
}

func TestNonInclusionProofForPresentKey(t *testing.T) {
	tr := newTestTrie(t)

	for _, k := range []string{"key1", "key2", "key3"} {
		_, err := tr.Insert([]byte(k), []byte("v"))
		require.NoError(t, err)
	}

	_, err := tr.GetNonInclusionProof([]byte("key1"))
	require.ErrorIs(t, err, ErrKeyAlreadyExists)
}

func TestNonInclusionThenInsert(t *testing.T) {
	tr := newTestTrie(t)

	for _, k := range []string{"key1", "key2", "key3"} {
		_, err := tr.Insert([]byte(k), []byte("v"))
		require.NoError(t, err)
	}

	_, err := tr.GetNonInclusionProof([]byte("key4"))
	require.NoError(t, err)

	_, err = tr.Insert([]byte("key4"), []byte("v4"))
	require.NoError(t, err)

	_, err = tr.GetNonInclusionProof([]byte("key4"))
	require.ErrorIs(t, err, ErrKeyAlreadyExists)
}

func TestNonInclusionProofEmptyTrie(t *testing.T) {
	tr := newTestTrie(t)

	proof, err := tr.GetNonInclusionProof([]byte("anything"))
	require.NoError(t, err)
	require.True(t, proof.LeafNode.IsZero())
	require.Equal(t, 0, proof.LeafLabel.Length)

	err = VerifyNonInclusionProof(tr.RootHash(), []byte("anything"), proof.LeafLabel, proof.LeafNode, proof.BranchMask, proof.Siblings)
	require.NoError(t, err)

	// A non-trivial claim against the empty root must be rejected.
	err = VerifyNonInclusionProof(tr.RootHash(), []byte("anything"), proof.LeafLabel, LeafHash([]byte("x")), proof.BranchMask, proof.Siblings)
	require.ErrorIs(t, err, ErrInvalidProof)
}

func TestNonInclusionTamperDetection(t *testing.T) {
	tr := newTestTrie(t)

	const n = 16
	for i := 0; i < n; i++ {
		_, err := tr.Insert([]byte(fmt.Sprintf("key-%d", i)), []byte(fmt.Sprintf("value-%d", i)))
		require.NoError(t, err)
	}
	root := tr.RootHash()

	absent := []byte("never inserted")
	proof, err := tr.GetNonInclusionProof(absent)
	require.NoError(t, err)

	t.Run("tampered leaf node", func(t *testing.T) {
		bad := proof.LeafNode
		bad[0] ^= 0x01
		err := VerifyNonInclusionProof(root, absent, proof.LeafLabel, bad, proof.BranchMask, proof.Siblings)
		require.ErrorIs(t, err, ErrInvalidProof)
	})

	t.Run("tampered leaf label", func(t *testing.T) {
		bad := proof.LeafLabel
		bad.Data[0] ^= 0x40
		bad.Data = maskTail(bad.Data, bad.Length)
		err := VerifyNonInclusionProof(root, absent, bad, proof.LeafNode, proof.BranchMask, proof.Siblings)
		require.ErrorIs(t, err, ErrInvalidProof)
	})

	t.Run("label rewritten to match key", func(t *testing.T) {
		// Claiming a divergent label that actually agrees with the key
		// would turn absence into presence; the verifier must reject it
		// even before the hash check.
		k := KeyLabel(absent)
		start := 0
		if depths := proof.BranchMask.Depths(); len(depths) > 0 {
			start = depths[len(depths)-1] + 1
		}
		matching := k.Range(start, start+proof.LeafLabel.Length)
		err := VerifyNonInclusionProof(root, absent, matching, proof.LeafNode, proof.BranchMask, proof.Siblings)
		require.ErrorIs(t, err, ErrInvalidProof)
	})

	t.Run("present key with forged witness", func(t *testing.T) {
		err := VerifyNonInclusionProof(root, []byte("key-3"), proof.LeafLabel, proof.LeafNode, proof.BranchMask, proof.Siblings)
		require.ErrorIs(t, err, ErrInvalidProof)
	})
}

func TestProofWireRoundTrip(t *testing.T) {
	tr := newTestTrie(t)
	for _, k := range []string{"key1", "key2", "key3"} {
		_, err := tr.Insert([]byte(k), []byte("value of "+k))
		require.NoError(t, err)
	}
	root := tr.RootHash()

	proof, err := tr.GetProof([]byte("key2"))
	require.NoError(t, err)

	data, err := proof.MarshalBinary()
	require.NoError(t, err)

	var decoded Proof
	require.NoError(t, decoded.UnmarshalBinary(data))
	require.Equal(t, proof.Key, decoded.Key)
	require.Equal(t, proof.BranchMask, decoded.BranchMask)
	require.Equal(t, proof.Siblings, decoded.Siblings)

	require.NoError(t, VerifyProof(root, decoded.Key, []byte("value of key2"), decoded.BranchMask, decoded.Siblings))

	absence, err := tr.GetNonInclusionProof([]byte("key4"))
	require.NoError(t, err)

	data, err = absence.MarshalBinary()
	require.NoError(t, err)

	var decodedAbsence NonInclusionProof
	require.NoError(t, decodedAbsence.UnmarshalBinary(data))
	require.NoError(t, VerifyNonInclusionProof(root, decodedAbsence.Key, decodedAbsence.LeafLabel,
		decodedAbsence.LeafNode, decodedAbsence.BranchMask, decodedAbsence.Siblings))
}
