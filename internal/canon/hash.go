package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// HashLen is the length of a hex-encoded SHA-256 identity.
const HashLen = 64

// Hash returns the lowercase hex SHA-256 of canonical bytes.
// Callers must pass the output of Marshal or Canonicalize; Hash does not
// canonicalize for them.
func Hash(canonical []byte) string {
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// HashValue canonicalizes v and returns its identity together with the
// canonical bytes that were hashed.
func HashValue(v Value) (string, []byte, error) {
	b, err := Marshal(v)
	if err != nil {
		return "", nil, fmt.Errorf("hash value: %w", err)
	}
	return Hash(b), b, nil
}

// IsHash reports whether s has the shape of an identity: exactly 64
// lowercase hex characters.
func IsHash(s string) bool {
	if len(s) != HashLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
