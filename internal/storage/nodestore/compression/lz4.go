package compression

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4"
)

// NoCompressor is a pass-through compressor.
type NoCompressor struct{}

// Name returns the name of the compressor.
func (c *NoCompressor) Name() string {
	return "none"
}

// Compress returns a copy of the data unchanged.
func (c *NoCompressor) Compress(data []byte, _ int) ([]byte, error) {
	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

// Decompress returns a copy of the data unchanged.
func (c *NoCompressor) Decompress(data []byte) ([]byte, error) {
	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

// LZ4 container layout:
//
//	[0]    method (methodRaw or methodLZ4)
//	[1:5]  uncompressed size, little endian
//	[5:]   block
//
// The method byte makes the raw fallback explicit; decoding never has
// to infer it from block lengths.
const (
	lz4HeaderSize = 5

	methodRaw byte = 0
	methodLZ4 byte = 1
)

// LZ4Compressor implements LZ4 block compression. The uncompressed size
// is stored in the header so decompression can size its buffer exactly
// instead of guessing.
type LZ4Compressor struct{}

// Name returns the name of the compressor.
func (c *LZ4Compressor) Name() string {
	return "lz4"
}

// Compress compresses data as a single LZ4 block. Incompressible input
// is stored raw, marked by the method byte.
func (c *LZ4Compressor) Compress(data []byte, _ int) ([]byte, error) {
	buf := make([]byte, lz4HeaderSize+lz4.CompressBlockBound(len(data)))
	binary.LittleEndian.PutUint32(buf[1:lz4HeaderSize], uint32(len(data)))

	n, err := lz4.CompressBlock(data, buf[lz4HeaderSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compression failed: %w", err)
	}
	if n == 0 {
		// Incompressible input: CompressBlock reports zero-length output.
		buf[0] = methodRaw
		copy(buf[lz4HeaderSize:], data)
		n = len(data)
	} else {
		buf[0] = methodLZ4
	}

	return buf[:lz4HeaderSize+n], nil
}

// Decompress decompresses a single LZ4 block.
func (c *LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	if len(data) < lz4HeaderSize {
		return nil, fmt.Errorf("lz4 data too short: %d bytes", len(data))
	}

	method := data[0]
	size := binary.LittleEndian.Uint32(data[1:lz4HeaderSize])
	block := data[lz4HeaderSize:]

	switch method {
	case methodRaw:
		if int(size) != len(block) {
			return nil, fmt.Errorf("lz4 raw block is %d bytes, expected %d", len(block), size)
		}
		result := make([]byte, size)
		copy(result, block)
		return result, nil

	case methodLZ4:
		result := make([]byte, size)
		n, err := lz4.UncompressBlock(block, result)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompression failed: %w", err)
		}
		if n != int(size) {
			return nil, fmt.Errorf("lz4 decompressed %d bytes, expected %d", n, size)
		}
		return result, nil

	default:
		return nil, fmt.Errorf("lz4 unknown method byte %d", method)
	}
}
