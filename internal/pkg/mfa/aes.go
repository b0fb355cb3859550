package mfa

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// AESGCMEncryptor implements Encryptor using AES-256-GCM.
type AESGCMEncryptor struct {
	keys KeyProvider
}

// NewAESGCMEncryptor constructs an AES-GCM encryptor.
func NewAESGCMEncryptor(keys KeyProvider) *AESGCMEncryptor {
	return &AESGCMEncryptor{keys: keys}
}

// Ciphertext format (binary):
// [0..1]   uint16 version (currently 1)
// [2..13]  12-byte nonce
// [14..]   gcm.Seal output (ciphertext + tag)
const aesGCMVersion uint16 = 1

const (
	gcmNonceSize = 12
	aesKeyLen    = 32
	headerLen    = 2 + gcmNonceSize
)

var (
	// ErrEncryptorNotConfigured indicates a missing encryptor key provider.
	ErrEncryptorNotConfigured = errors.New("mfa: encryptor not configured")
	// ErrPlaintextEmpty indicates an empty plaintext input.
	ErrPlaintextEmpty = errors.New("mfa: plaintext is empty")
	// ErrInvalidKeyLength indicates the key length is invalid.
	ErrInvalidKeyLength = errors.New("mfa: invalid key length")
	// ErrCiphertextTooShort indicates a truncated ciphertext.
	ErrCiphertextTooShort = errors.New("mfa: ciphertext too short")
	// ErrUnsupportedCiphertextVersion indicates an unsupported ciphertext version.
	ErrUnsupportedCiphertextVersion = errors.New("mfa: unsupported ciphertext version")
	// ErrDecryptFailed indicates decryption failure.
	ErrDecryptFailed = errors.New("mfa: decrypt failed")
	// ErrMissingStaticKey indicates a missing static key.
	ErrMissingStaticKey = errors.New("mfa: missing static key")
)

// Encrypt encrypts plaintext with AES-256-GCM, binding the result to scope via AAD.
func (e *AESGCMEncryptor) Encrypt(plaintext []byte, scope Scope) ([]byte, error) {
	if len(plaintext) == 0 {
		return nil, ErrPlaintextEmpty
	}

	gcm, err := e.aead(scope)
	if err != nil {
		return nil, err
	}

	out := make([]byte, headerLen, headerLen+len(plaintext)+gcm.Overhead())
	binary.BigEndian.PutUint16(out[0:2], aesGCMVersion)

	nonce := out[2:headerLen]
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("mfa: nonce generation failed: %w", err)
	}

	return gcm.Seal(out, nonce, plaintext, scopeAAD(scope)), nil
}

// Decrypt decrypts ciphertext with AES-256-GCM, requiring the same scope AAD.
func (e *AESGCMEncryptor) Decrypt(ciphertext []byte, scope Scope) ([]byte, error) {
	if len(ciphertext) < headerLen+1 {
		return nil, ErrCiphertextTooShort
	}

	version := binary.BigEndian.Uint16(ciphertext[0:2])
	if version != aesGCMVersion {
		return nil, fmt.Errorf("mfa: ciphertext version %d: %w", version, ErrUnsupportedCiphertextVersion)
	}

	gcm, err := e.aead(scope)
	if err != nil {
		return nil, err
	}

	plain, err := gcm.Open(nil, ciphertext[2:headerLen], ciphertext[headerLen:], scopeAAD(scope))
	if err != nil {
		// wrong scope, wrong key and tampering are indistinguishable on purpose
		return nil, ErrDecryptFailed
	}

	return plain, nil
}

func (e *AESGCMEncryptor) aead(scope Scope) (cipher.AEAD, error) {
	if e == nil || e.keys == nil {
		return nil, ErrEncryptorNotConfigured
	}

	key, err := e.keys.Key(scope)
	if err != nil {
		return nil, fmt.Errorf("mfa: key provider error: %w", err)
	}
	if len(key) != aesKeyLen {
		return nil, fmt.Errorf("mfa: key length %d (want %d for AES-256): %w", len(key), aesKeyLen, ErrInvalidKeyLength)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("mfa: aes init failed: %w", err)
	}

	return cipher.NewGCMWithNonceSize(block, gcmNonceSize)
}

// scopeAAD hashes a labelled canonical form of the scope so the AAD has a
// fixed length and no separator ambiguity.
func scopeAAD(s Scope) []byte {
	canonical := "subject=" + strconv.Quote(s.Subject) + "\npurpose=" + string(s.Purpose) + "\n"
	sum := sha256.Sum256([]byte(canonical))
	return sum[:]
}

// StaticKeyProvider returns the same key for every scope.
type StaticKeyProvider struct {
	KeyBytes []byte
}

// NewStaticKeyProviderBase64 decodes a base64 (standard encoding) 32-byte key.
func NewStaticKeyProviderBase64(encoded string) (StaticKeyProvider, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return StaticKeyProvider{}, fmt.Errorf("mfa: decode key: %w", err)
	}
	if len(raw) != aesKeyLen {
		return StaticKeyProvider{}, fmt.Errorf("mfa: key length %d (want %d): %w", len(raw), aesKeyLen, ErrInvalidKeyLength)
	}

	return StaticKeyProvider{KeyBytes: raw}, nil
}

// Key returns a copy of the static key.
func (p StaticKeyProvider) Key(_ Scope) ([]byte, error) {
	if len(p.KeyBytes) == 0 {
		return nil, ErrMissingStaticKey
	}

	k := make([]byte, len(p.KeyBytes))
	copy(k, p.KeyBytes)
	return k, nil
}
