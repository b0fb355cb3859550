package hash

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// HMACSHA256 is a keyed, deterministic digest. Equal inputs give equal
// digests, so it suits lookups and short-lived codes but never passwords.
type HMACSHA256 struct {
	secret []byte
}

// NewHMACSHA256 returns a digest keyed by secret.
func NewHMACSHA256(secret string) *HMACSHA256 {
	return &HMACSHA256{secret: []byte(secret)}
}

// Hash returns the hex-encoded digest of str.
func (s *HMACSHA256) Hash(str string) ([]byte, error) {
	return hmacHex(s.secret, str), nil
}

// Verify reports whether hashed is the digest of str, in constant time.
func (s *HMACSHA256) Verify(hashed, str string) bool {
	return hmac.Equal([]byte(hashed), hmacHex(s.secret, str))
}

func hmacHex(key []byte, msg string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(msg))

	return hex.AppendEncode(nil, mac.Sum(nil))
}
