package trie

import (
	"encoding/hex"
	"math/bits"
)

// BranchMask records at which key depths a proof path passes through a
// branching node. Bit d (indexed like key bits, MSB of byte 0 first) is
// set when a node consumed key bit d. Which child was taken there is
// the key's own bit at that depth, so the mask only needs to mark the
// branching depths; compressed-edge label lengths are the gaps between
// consecutive set bits.
type BranchMask [32]byte

// Set marks depth d as a branching point.
func (m *BranchMask) Set(d int) {
	m[d/8] |= 1 << (7 - uint(d%8))
}

// IsSet reports whether depth d is a branching point.
func (m BranchMask) IsSet(d int) bool {
	return m[d/8]&(1<<(7-uint(d%8))) != 0
}

// Count returns the number of branching depths.
func (m BranchMask) Count() int {
	n := 0
	for _, b := range m {
		n += bits.OnesCount8(b)
	}
	return n
}

// Depths returns the branching depths in ascending order, i.e. from the
// node nearest the root to the node nearest the leaf.
func (m BranchMask) Depths() []int {
	out := make([]int, 0, m.Count())
	for d := 0; d < KeyBits; d++ {
		if m.IsSet(d) {
			out = append(out, d)
		}
	}
	return out
}

// String returns the mask as hex.
func (m BranchMask) String() string {
	return hex.EncodeToString(m[:])
}
