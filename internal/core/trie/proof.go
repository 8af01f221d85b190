package trie

import (
	"fmt"

	"github.com/LeJamon/gotrie/internal/types"
)

// Proof certifies that a key maps to a value under some root
// commitment. Siblings holds the edge hashes of the children not taken
// along the path, ordered from the node nearest the leaf to the node
// nearest the root, matching the bottom-up fold the verifier performs.
type Proof struct {
	Key        []byte
	BranchMask BranchMask
	Siblings   []types.Hash256
}

// NonInclusionProof certifies that a key is absent. LeafLabel and
// LeafNode describe the deepest stored edge whose label diverges from
// the queried key; BranchMask and Siblings are an inclusion-style fold
// for that edge, proving it genuinely exists under the root, while the
// label disagreement proves the queried key cannot share its position.
type NonInclusionProof struct {
	Key        []byte
	LeafLabel  Label
	LeafNode   types.Hash256
	BranchMask BranchMask
	Siblings   []types.Hash256
}

// GetProof generates an inclusion proof for a stored key. It fails
// with ErrKeyNotFound when the key is absent.
func (t *Trie) GetProof(key []byte) (*Proof, error) {
	e := t.rootSnapshot()
	k := KeyLabel(key)

	var mask BranchMask
	var siblings []types.Hash256 // collected root to leaf

	for {
		if e.IsEmpty() {
			return nil, ErrKeyNotFound
		}

		prefixLen := k.CommonPrefixLen(e.Label)
		if prefixLen != e.Label.Length {
			return nil, ErrKeyNotFound
		}
		if k.Length == e.Label.Length {
			break // reached the leaf commitment
		}

		rest := k.Suffix(prefixLen)
		mask.Set(KeyBits - rest.Length) // depth of the branch bit
		bit, rest := rest.ChopFirstBit()

		node, err := t.store.Node(e.Target)
		if err != nil {
			return nil, fmt.Errorf("failed to load node %s: %w", e.Target, err)
		}

		siblings = append(siblings, node.Edges[1-bit].Hash())
		e = node.Edges[bit]
		k = rest
	}

	reverseHashes(siblings)
	return &Proof{Key: append([]byte(nil), key...), BranchMask: mask, Siblings: siblings}, nil
}

// VerifyProof checks an inclusion proof against a trusted root hash.
// It is pure and stateless: starting from the leaf commitment of value
// it re-folds node hashes exactly as insertion would have produced
// them, and fails with ErrInvalidProof unless the final edge hash
// equals rootHash.
func VerifyProof(rootHash types.Hash256, key, value []byte, mask BranchMask, siblings []types.Hash256) error {
	if mask.Count() != len(siblings) {
		return fmt.Errorf("%w: %d siblings for %d branches", ErrInvalidProof, len(siblings), mask.Count())
	}

	k := KeyLabel(key)
	cur := LeafHash(value)

	depths := mask.Depths()
	top := KeyBits // exclusive upper bound of the current edge's label span
	for i := len(depths) - 1; i >= 0; i-- {
		d := depths[i]
		if d >= top {
			return fmt.Errorf("%w: branch depth %d outside span", ErrInvalidProof, d)
		}

		e := Edge{Label: k.Range(d+1, top), Target: cur}
		cur = foldBranch(e.Hash(), siblings[len(depths)-1-i], k.BitAt(d))
		top = d
	}

	rootEdge := Edge{Label: k.Prefix(top), Target: cur}
	if rootEdge.Hash() != rootHash {
		return fmt.Errorf("%w: root hash mismatch", ErrInvalidProof)
	}
	return nil
}

// GetNonInclusionProof generates an absence proof for a key that is not
// stored. It fails with ErrKeyAlreadyExists when the key is present.
func (t *Trie) GetNonInclusionProof(key []byte) (*NonInclusionProof, error) {
	e := t.rootSnapshot()
	k := KeyLabel(key)

	if e.IsEmpty() {
		// An empty trie commits to nothing; the zero root alone
		// witnesses absence.
		return &NonInclusionProof{Key: append([]byte(nil), key...)}, nil
	}

	var mask BranchMask
	var siblings []types.Hash256

	for {
		prefixLen := k.CommonPrefixLen(e.Label)
		if prefixLen < e.Label.Length {
			// The stored label diverges from the queried key here:
			// this edge is the witness.
			reverseHashes(siblings)
			return &NonInclusionProof{
				Key:        append([]byte(nil), key...),
				LeafLabel:  e.Label,
				LeafNode:   e.Target,
				BranchMask: mask,
				Siblings:   siblings,
			}, nil
		}
		if k.Length == e.Label.Length {
			return nil, ErrKeyAlreadyExists
		}

		rest := k.Suffix(prefixLen)
		mask.Set(KeyBits - rest.Length)
		bit, rest := rest.ChopFirstBit()

		node, err := t.store.Node(e.Target)
		if err != nil {
			return nil, fmt.Errorf("failed to load node %s: %w", e.Target, err)
		}

		siblings = append(siblings, node.Edges[1-bit].Hash())
		e = node.Edges[bit]
		k = rest
	}
}

// VerifyNonInclusionProof checks an absence proof against a trusted
// root hash. Two things must hold: the claimed divergent edge re-folds
// to rootHash, proving it exists in the committed trie, and its label
// disagrees with the queried key within the claimed span, proving the
// key cannot route to it. Either failing rejects the claim.
func VerifyNonInclusionProof(rootHash types.Hash256, key []byte, leafLabel Label, leafNode types.Hash256, mask BranchMask, siblings []types.Hash256) error {
	if rootHash.IsZero() {
		// Empty trie: absence is trivial, but only the trivial proof
		// shape is acceptable.
		if leafNode.IsZero() && leafLabel.Length == 0 && mask.Count() == 0 && len(siblings) == 0 {
			return nil
		}
		return fmt.Errorf("%w: non-trivial proof against empty root", ErrInvalidProof)
	}

	if mask.Count() != len(siblings) {
		return fmt.Errorf("%w: %d siblings for %d branches", ErrInvalidProof, len(siblings), mask.Count())
	}
	if leafNode.IsZero() {
		return fmt.Errorf("%w: zero divergent edge target", ErrInvalidProof)
	}

	k := KeyLabel(key)
	depths := mask.Depths()

	// The divergent edge starts right after the deepest branch bit, or
	// at the root when no branches were crossed.
	start := 0
	if len(depths) > 0 {
		start = depths[len(depths)-1] + 1
	}
	if start+leafLabel.Length > KeyBits {
		return fmt.Errorf("%w: divergent label overruns key length", ErrInvalidProof)
	}
	if leafLabel.Equal(k.Range(start, start+leafLabel.Length)) {
		return fmt.Errorf("%w: claimed divergent label matches key", ErrInvalidProof)
	}

	// Re-fold from the divergent edge up to the root, exactly as an
	// inclusion proof would, but with the edge's own label instead of
	// key bits for the deepest step. When no branches were crossed the
	// divergent edge is the root edge itself.
	cur := leafNode
	label := leafLabel
	for j := 0; j < len(depths); j++ {
		d := depths[len(depths)-1-j] // deepest branch first
		e := Edge{Label: label, Target: cur}
		cur = foldBranch(e.Hash(), siblings[j], k.BitAt(d))

		if next := len(depths) - 2 - j; next >= 0 {
			label = k.Range(depths[next]+1, d)
		} else {
			label = k.Prefix(d)
		}
	}

	rootEdge := Edge{Label: label, Target: cur}
	if rootEdge.Hash() != rootHash {
		return fmt.Errorf("%w: root hash mismatch", ErrInvalidProof)
	}
	return nil
}

// foldBranch combines the taken edge hash with its sibling into the
// parent node hash, ordering the pair by the branch bit.
func foldBranch(taken, sibling types.Hash256, bit uint8) types.Hash256 {
	if bit == 0 {
		return nodeHashFromEdgeHashes(taken, sibling)
	}
	return nodeHashFromEdgeHashes(sibling, taken)
}

func reverseHashes(hs []types.Hash256) {
	for i, j := 0, len(hs)-1; i < j; i, j = i+1, j-1 {
		hs[i], hs[j] = hs[j], hs[i]
	}
}
