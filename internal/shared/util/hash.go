package util

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// Hasher computes a content fingerprint incrementally. Feed it chunks via
// Write and call Sum once the stream is exhausted; identical byte sequences
// always produce identical digests.
type Hasher struct {
	h hash.Hash
}

// NewHasher returns a SHA-256 content hasher.
func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

// Write adds p to the running digest. It never fails.
func (h *Hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

// Sum returns the hex-encoded digest of all bytes written so far.
func (h *Hasher) Sum() string {
	return hex.EncodeToString(h.h.Sum(nil))
}

// HashReader consumes r to EOF and returns its content fingerprint.
func HashReader(r io.Reader) (string, error) {
	h := NewHasher()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return h.Sum(), nil
}
