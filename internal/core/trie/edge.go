package trie

import (
	"encoding/binary"
	"fmt"

	crypto "github.com/LeJamon/gotrie/internal/crypto/common"
	"github.com/LeJamon/gotrie/internal/types"
)

// Hash prefixes provide domain separation between the different inputs
// folded into the digest. Changing any of them changes every root hash.
var (
	hashPrefixKey       = [4]byte{'P', 'K', 'Y', 0}
	hashPrefixLeafValue = [4]byte{'P', 'L', 'F', 0}
	hashPrefixEdge      = [4]byte{'P', 'E', 'D', 0}
	hashPrefixInnerNode = [4]byte{'P', 'I', 'N', 0}
)

// Edge is the structural unit of the trie: a run of shared key bits and
// the digest of whatever lies beyond them. A zero Target marks the
// empty edge, used only by the root of an empty trie.
type Edge struct {
	Label  Label
	Target types.Hash256
}

// IsEmpty returns true if the edge has no target.
func (e Edge) IsEmpty() bool {
	return e.Target.IsZero()
}

// Hash returns the edge's commitment: H(prefix, target, labelLen, labelBits).
// The empty edge hashes to the zero sentinel.
func (e Edge) Hash() types.Hash256 {
	if e.IsEmpty() {
		return types.Hash256{}
	}
	var lenBuf [2]byte
	binary.BigEndian.PutUint16(lenBuf[:], uint16(e.Label.Length))
	return crypto.Sha512Half(hashPrefixEdge[:], e.Target[:], lenBuf[:], e.Label.Data[:])
}

// Node is an interior trie node: exactly two edges, selected by the
// next unconsumed key bit. Nodes are immutable once stored; an update
// always creates a new node under a new hash.
type Node struct {
	Edges [2]Edge
}

// Hash returns the node's identity, folded from its two edge hashes.
func (n *Node) Hash() types.Hash256 {
	h0 := n.Edges[0].Hash()
	h1 := n.Edges[1].Hash()
	return nodeHashFromEdgeHashes(h0, h1)
}

// nodeHashFromEdgeHashes is shared between node hashing and proof
// folding so the two can never disagree on the combination rule.
func nodeHashFromEdgeHashes(h0, h1 types.Hash256) types.Hash256 {
	return crypto.Sha512Half(hashPrefixInnerNode[:], h0[:], h1[:])
}

// LeafHash returns the leaf commitment for a value.
func LeafHash(value []byte) types.Hash256 {
	return crypto.Sha512Half(hashPrefixLeafValue[:], value)
}

// KeyLabel derives the fixed-length bit path for an arbitrary byte key.
func KeyLabel(key []byte) Label {
	return Label{Data: crypto.Sha512Half(hashPrefixKey[:], key), Length: KeyBits}
}

const edgeEncodedSize = 32 + 2 + 32

// encodedNodeSize is the fixed storage footprint of a node record.
const encodedNodeSize = 2 * edgeEncodedSize

// Encode serializes the node for storage: for each edge, target then
// label length (big-endian uint16) then the padded label bits.
func (n *Node) Encode() []byte {
	out := make([]byte, 0, encodedNodeSize)
	for _, e := range n.Edges {
		var lenBuf [2]byte
		binary.BigEndian.PutUint16(lenBuf[:], uint16(e.Label.Length))
		out = append(out, e.Target[:]...)
		out = append(out, lenBuf[:]...)
		out = append(out, e.Label.Data[:]...)
	}
	return out
}

// DecodeNode parses a stored node record.
func DecodeNode(data []byte) (*Node, error) {
	if len(data) != encodedNodeSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidNode, encodedNodeSize, len(data))
	}

	var n Node
	for i := range n.Edges {
		rec := data[i*edgeEncodedSize:]
		copy(n.Edges[i].Target[:], rec[:32])

		length := int(binary.BigEndian.Uint16(rec[32:34]))
		var labelData [32]byte
		copy(labelData[:], rec[34:66])

		label, err := NewLabel(labelData, length)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidNode, err)
		}
		if label.Data != labelData {
			return nil, fmt.Errorf("%w: label bits past length %d", ErrInvalidNode, length)
		}
		n.Edges[i].Label = label
	}
	return &n, nil
}
