package hash

import (
	"golang.org/x/crypto/bcrypt"
)

// Bcrypt implements Hash using bcrypt.
//
// The plaintext is keyed with the pepper through HMAC-SHA256 before bcrypt
// sees it, so bcrypt always receives 64 bytes regardless of password length
// and never hits its 72 byte input limit.
type Bcrypt struct {
	cost   int
	pepper []byte
}

// NewBcrypt returns a bcrypt-based hasher. cost is clamped to the range bcrypt
// accepts.
func NewBcrypt(cost int, pepper string) *Bcrypt {
	return &Bcrypt{
		cost:   min(max(cost, bcrypt.MinCost), bcrypt.MaxCost),
		pepper: []byte(pepper),
	}
}

// Hash hashes plaintext using bcrypt.
func (h *Bcrypt) Hash(plaintext string) ([]byte, error) {
	return bcrypt.GenerateFromPassword(hmacHex(h.pepper, plaintext), h.cost)
}

// Verify returns true when plaintext matches the hashed value.
func (h *Bcrypt) Verify(hashed, plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashed), hmacHex(h.pepper, plaintext)) == nil
}
