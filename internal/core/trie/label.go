package trie

import (
	"encoding/hex"
	"fmt"
	"math/bits"
)

// KeyBits is the fixed number of bits in every trie key path.
const KeyBits = 256

// Label is a bit string of up to KeyBits bits, MSB-first. Bits at or
// past Length are always zero; Data takes part in hashing, so the
// canonical zero-padded form is an invariant, not a convenience.
type Label struct {
	Data   [32]byte
	Length int
}

// NewLabel builds a label over the first length bits of data, zeroing
// everything past the end.
func NewLabel(data [32]byte, length int) (Label, error) {
	if length < 0 || length > KeyBits {
		return Label{}, fmt.Errorf("invalid label length: %d", length)
	}
	return Label{Data: maskTail(data, length), Length: length}, nil
}

// BitAt returns the bit at index i, where i=0 is the MSB of Data[0].
func (l Label) BitAt(i int) uint8 {
	return (l.Data[i/8] >> (7 - uint(i%8))) & 1
}

// CommonPrefixLen returns the number of leading bits shared by l and o.
func (l Label) CommonPrefixLen(o Label) int {
	limit := l.Length
	if o.Length < limit {
		limit = o.Length
	}

	n := 0
	for i := 0; i < 32 && n < limit; i++ {
		x := l.Data[i] ^ o.Data[i]
		if x == 0 {
			n += 8
			continue
		}
		n += bits.LeadingZeros8(x)
		break
	}

	if n > limit {
		n = limit
	}
	return n
}

// Prefix returns the first n bits of the label.
func (l Label) Prefix(n int) Label {
	return Label{Data: maskTail(l.Data, n), Length: n}
}

// Suffix returns the label with its first n bits removed.
func (l Label) Suffix(n int) Label {
	length := l.Length - n
	return Label{Data: maskTail(shiftLeft(l.Data, n), length), Length: length}
}

// Range returns the bits in [from, to) as a label.
func (l Label) Range(from, to int) Label {
	return l.Suffix(from).Prefix(to - from)
}

// ChopFirstBit splits off the leading bit and returns it with the
// remainder of the label.
func (l Label) ChopFirstBit() (uint8, Label) {
	return l.BitAt(0), l.Suffix(1)
}

// Equal reports whether two labels carry the same bits.
func (l Label) Equal(o Label) bool {
	return l.Length == o.Length && l.Data == o.Data
}

// String returns a short human-readable form, e.g. "a3f1..(12 bits)".
func (l Label) String() string {
	nbytes := (l.Length + 7) / 8
	return fmt.Sprintf("%s(%d bits)", hex.EncodeToString(l.Data[:nbytes]), l.Length)
}

// shiftLeft shifts the 256-bit string left by n bits, filling with zeros.
func shiftLeft(d [32]byte, n int) [32]byte {
	var out [32]byte
	if n <= 0 {
		return d
	}
	if n >= KeyBits {
		return out
	}

	byteShift := n / 8
	bitShift := uint(n % 8)
	for i := 0; i < 32; i++ {
		src := i + byteShift
		if src >= 32 {
			break
		}
		b := d[src] << bitShift
		if bitShift > 0 && src+1 < 32 {
			b |= d[src+1] >> (8 - bitShift)
		}
		out[i] = b
	}
	return out
}

// maskTail zeroes every bit at index >= length.
func maskTail(d [32]byte, length int) [32]byte {
	if length >= KeyBits {
		return d
	}
	if length < 0 {
		length = 0
	}

	full := length / 8
	if rem := uint(length % 8); rem > 0 {
		d[full] &= byte(0xFF) << (8 - rem)
		full++
	}
	for i := full; i < 32; i++ {
		d[i] = 0
	}
	return d
}
