// Package digest wraps the content-addressing primitive the rest of
// hutch treats as a black box: bytes in, lowercase hex-encoded SHA-256
// out.
package digest

import (
	"crypto/sha256"
	"encoding/hex"
)

// Of returns hex(SHA-256(data)).
func Of(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Matches reports whether data hashes to the given expected hex digest.
func Matches(data []byte, expected string) bool {
	return Of(data) == expected
}
