// Package archive provides content hashing and zip decomposition for
// category archives. Digests computed here are used both as identity and
// as object-store key segments, so they must be stable across processes.
package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
)

// Digest returns the SHA-256 hash of data as 64 hex characters.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DigestReader hashes everything readable from r and returns the digest
// and the number of bytes consumed.
func DigestReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
