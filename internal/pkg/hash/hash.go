package hash

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Hash hashes secrets and verifies plaintext against a stored hash.
type Hash interface {
	// Hash returns the hashed representation of str.
	Hash(str string) ([]byte, error)
	// Verify reports whether str matches hashed.
	Verify(hashed, str string) bool
}

// Supported password algorithms.
const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

// NewPassword returns a salted password hasher for the named algorithm.
// An empty name selects bcrypt.
func NewPassword(algorithm, pepper string) (Hash, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", AlgorithmBcrypt:
		return NewBcrypt(bcrypt.DefaultCost, pepper), nil
	case AlgorithmArgon2id:
		return NewArgon2id(pepper), nil
	default:
		return nil, fmt.Errorf("hash: unsupported password algorithm %q", algorithm)
	}
}
