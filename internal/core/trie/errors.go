package trie

import "errors"

// Common errors
var (
	ErrNotFound         = errors.New("key not found in trie")
	ErrKeyNotFound      = errors.New("cannot prove inclusion: key not stored")
	ErrKeyAlreadyExists = errors.New("cannot prove absence: key is stored")
	ErrInvalidProof     = errors.New("proof verification failed")
	ErrNodeNotFound     = errors.New("node not found while traversing trie")
	ErrInvalidNode      = errors.New("invalid node encoding")
	ErrValueNotFound    = errors.New("value not found for leaf commitment")
)
