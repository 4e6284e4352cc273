package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// Digest returns the hex encoded SHA-256 of password. Stored digests from
// earlier deployments use the same function, so it must not change.
func Digest(password string) string {
	sum := sha256.Sum256([]byte(password))
	return hex.EncodeToString(sum[:])
}

// VerifyDigest compares the digest of password with a stored digest in constant time.
func VerifyDigest(password, digest string) bool {
	return subtle.ConstantTimeCompare([]byte(Digest(password)), []byte(digest)) == 1
}
