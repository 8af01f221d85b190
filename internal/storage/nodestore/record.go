package nodestore

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/LeJamon/gotrie/internal/storage/nodestore/compression"
	"github.com/LeJamon/gotrie/internal/types"
)

// On-disk record layout, shared by the pebble and leveldb backends:
//
//	[0]     type
//	[1]     flags (bit 0: payload is compressed)
//	[2:10]  created-at, unix nanoseconds, little endian
//	[10:14] payload length, little endian
//	[14:]   payload
const (
	recordHeaderSize = 14

	flagCompressed = 0x01

	// Payloads below this size are stored raw; trie nodes are 132 bytes
	// and rarely worth compressing, leaf values often are.
	minCompressSize = 128
)

// encodeRecord serializes a node for storage, compressing the payload
// when it is large enough and the compressor yields a real saving.
func encodeRecord(node *Node, compressor compression.Compressor, level int) ([]byte, error) {
	payload := []byte(node.Data)
	var flags byte

	if len(payload) >= minCompressSize && compressor.Name() != "none" {
		compressed, err := compressor.Compress(payload, level)
		if err == nil && len(compressed) < len(payload)*9/10 {
			payload = compressed
			flags |= flagCompressed
		}
	}

	buf := make([]byte, recordHeaderSize+len(payload))
	buf[0] = byte(node.Type)
	buf[1] = flags
	binary.LittleEndian.PutUint64(buf[2:10], uint64(node.CreatedAt.UnixNano()))
	binary.LittleEndian.PutUint32(buf[10:14], uint32(len(payload)))
	copy(buf[recordHeaderSize:], payload)

	return buf, nil
}

// decodeRecord deserializes a stored record back into a node.
func decodeRecord(hash types.Hash256, data []byte, compressor compression.Compressor) (*Node, error) {
	if len(data) < recordHeaderSize {
		return nil, fmt.Errorf("%w: record too short (%d bytes)", ErrDataCorrupt, len(data))
	}

	nodeType := NodeType(data[0])
	flags := data[1]
	createdNanos := int64(binary.LittleEndian.Uint64(data[2:10]))
	payloadLen := int(binary.LittleEndian.Uint32(data[10:14]))

	if recordHeaderSize+payloadLen != len(data) {
		return nil, fmt.Errorf("%w: payload length %d does not match record size %d",
			ErrDataCorrupt, payloadLen, len(data))
	}

	payload := data[recordHeaderSize:]
	if flags&flagCompressed != 0 {
		decompressed, err := compressor.Decompress(payload)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDataCorrupt, err)
		}
		payload = decompressed
	} else {
		cp := make([]byte, len(payload))
		copy(cp, payload)
		payload = cp
	}

	return &Node{
		Type:      nodeType,
		Hash:      hash,
		Data:      payload,
		CreatedAt: time.Unix(0, createdNanos),
	}, nil
}
