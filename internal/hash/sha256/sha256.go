// Package sha256 fingerprints canonical records so stores can detect changes.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// Hasher implements crawler.Hasher using SHA-256.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// HashJSON marshals v and returns the encoded bytes with their digest.
func (h *Hasher) HashJSON(v any) ([]byte, string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, "", fmt.Errorf("marshal for hash: %w", err)
	}
	digest, err := h.Hash(data)
	if err != nil {
		return nil, "", err
	}
	return data, digest, nil
}
