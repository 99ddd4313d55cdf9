package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashContent creates a SHA256 digest of a string.
// This is useful for indexing large payloads such as encoded images.
func HashContent(s string) [sha256.Size]byte {
	return sha256.Sum256([]byte(s))
}

// HashHex returns the hex form of HashContent, for logs and keys.
func HashHex(s string) string {
	sum := HashContent(s)
	return hex.EncodeToString(sum[:])
}

// ShortHash returns the first 12 hex characters of HashHex.
func ShortHash(s string) string {
	return HashHex(s)[:12]
}
