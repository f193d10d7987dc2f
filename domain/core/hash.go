package core

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Hash represents a cryptographic hash
type Hash string

// NewHash creates a new hash from data
func NewHash(data []byte) Hash {
	sum := sha256.Sum256(data)
	return Hash(hex.EncodeToString(sum[:]))
}

// HashJSON hashes the JSON encoding of v.
func HashJSON(v any) (Hash, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return NewHash(raw), nil
}

// String returns the string representation
func (h Hash) String() string {
	return string(h)
}

// Short is the first 12 hex digits, for logs and reports.
func (h Hash) Short() string {
	if len(h) <= 12 {
		return string(h)
	}
	return string(h[:12])
}

// IsEmpty checks if the hash is empty
func (h Hash) IsEmpty() bool {
	return h == ""
}
