package nodestore

import (
	"errors"
	"fmt"

	"github.com/LeJamon/gotrie/internal/types"
)

var (
	// ErrNotFound indicates that a requested node was not found
	ErrNotFound = errors.New("node not found")

	// ErrDataCorrupt indicates that stored data failed to decode
	ErrDataCorrupt = errors.New("data corruption detected")

	// ErrBackendClosed indicates that the backend is closed
	ErrBackendClosed = errors.New("backend is closed")

	// ErrInvalidNode indicates that a node is structurally invalid
	ErrInvalidNode = errors.New("invalid node")

	// ErrInvalidConfig indicates that the configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrUnsupportedBackend indicates that no such backend is registered
	ErrUnsupportedBackend = errors.New("unsupported backend")

	// ErrHashMismatch indicates that a record's content does not match
	// the hash it is stored under
	ErrHashMismatch = errors.New("content hash mismatch")
)

// StoreError wraps a failure with the operation and backend it occurred in.
type StoreError struct {
	Operation string        // The operation that failed
	Hash      types.Hash256 // The content address involved, if any
	Backend   string        // The backend name
	Cause     error         // The underlying error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Hash.IsZero() {
		return fmt.Sprintf("nodestore %s error on backend %s: %v",
			e.Operation, e.Backend, e.Cause)
	}
	return fmt.Sprintf("nodestore %s error on backend %s for hash %s: %v",
		e.Operation, e.Backend, e.Hash.String(), e.Cause)
}

// Unwrap returns the underlying error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// statusError converts a backend status into a sentinel error.
func statusError(s Status) error {
	switch s {
	case OK:
		return nil
	case NotFound:
		return ErrNotFound
	case DataCorrupt:
		return ErrDataCorrupt
	default:
		return ErrBackendClosed
	}
}

// wrapStatus wraps a non-OK backend status with operation context.
func wrapStatus(operation, backend string, hash types.Hash256, s Status) error {
	if s == OK {
		return nil
	}
	return &StoreError{
		Operation: operation,
		Hash:      hash,
		Backend:   backend,
		Cause:     statusError(s),
	}
}

// IsNotFound reports whether an error indicates a missing node.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDataCorrupt reports whether an error indicates data corruption.
func IsDataCorrupt(err error) bool {
	return errors.Is(err, ErrDataCorrupt)
}
