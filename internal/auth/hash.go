// ABOUTME: One-way digest of access token secrets
// ABOUTME: Used identically at issuance (to store) and verification (to look up)

package auth

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashSecret returns the hex-encoded SHA-256 digest of a token secret.
// The digest is what gets persisted and what verification looks up; the
// plaintext is never stored. A plain (unsalted) digest is required here
// because verification finds the record by digest equality.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
