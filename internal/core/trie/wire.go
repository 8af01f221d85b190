package trie

import (
	"bytes"
	"fmt"

	"github.com/ugorji/go/codec"
)

// Proofs travel between the prover and a stateless verifier, so they
// need a stable wire form. CBOR in canonical mode keeps the encoding
// deterministic across processes.
var cborHandle = func() *codec.CborHandle {
	h := new(codec.CborHandle)
	h.Canonical = true
	return h
}()

// MarshalBinary encodes the proof as canonical CBOR.
func (p *Proof) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := codec.NewEncoder(&buf, cborHandle).Encode(p); err != nil {
		return nil, fmt.Errorf("failed to encode proof: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a proof from its CBOR form.
func (p *Proof) UnmarshalBinary(data []byte) error {
	if err := codec.NewDecoderBytes(data, cborHandle).Decode(p); err != nil {
		return fmt.Errorf("failed to decode proof: %w", err)
	}
	return nil
}

// MarshalBinary encodes the proof as canonical CBOR.
func (p *NonInclusionProof) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	if err := codec.NewEncoder(&buf, cborHandle).Encode(p); err != nil {
		return nil, fmt.Errorf("failed to encode non-inclusion proof: %w", err)
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary decodes a proof from its CBOR form.
func (p *NonInclusionProof) UnmarshalBinary(data []byte) error {
	if err := codec.NewDecoderBytes(data, cborHandle).Decode(p); err != nil {
		return fmt.Errorf("failed to decode non-inclusion proof: %w", err)
	}
	return nil
}
