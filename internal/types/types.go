// Package types holds the small shared value types used across the
// storage and trie layers.
package types

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// Hash256 is a 256-bit content hash. It is the key type of the node
// store and the commitment type of the trie.
type Hash256 [32]byte

// Blob is an opaque byte string stored against a hash.
type Blob []byte

// Hash256FromBytes builds a Hash256 from a 32-byte slice.
func Hash256FromBytes(b []byte) (Hash256, error) {
	var h Hash256
	if len(b) != 32 {
		return h, fmt.Errorf("invalid hash length: %d", len(b))
	}
	copy(h[:], b)
	return h, nil
}

// Hash256FromHex parses a 64-character hex string into a Hash256.
func Hash256FromHex(s string) (Hash256, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash256{}, fmt.Errorf("invalid hash hex: %w", err)
	}
	return Hash256FromBytes(b)
}

// IsZero returns true if the hash is the all-zero sentinel value.
func (h Hash256) IsZero() bool {
	return h == Hash256{}
}

// String returns the lowercase hex form of the hash.
func (h Hash256) String() string {
	return hex.EncodeToString(h[:])
}

// Equal compares two blobs byte for byte.
func (b Blob) Equal(other Blob) bool {
	return bytes.Equal(b, other)
}
