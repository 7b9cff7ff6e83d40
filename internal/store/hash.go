package store

import (
	"crypto/sha256"
	"fmt"
)

// ContentHash is the hex SHA-256 of a file's bytes.
func ContentHash(content []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(content))
}
