package mfa

// Purpose identifies what an encrypted value is used for.
type Purpose string

// PurposeOTPSeed scopes encryption to TOTP shared secrets.
const PurposeOTPSeed Purpose = "otp_seed"

// Scope binds a ciphertext to its owner and purpose. It is used as AES-GCM
// additional authenticated data, so a ciphertext copied to another record
// fails to decrypt.
type Scope struct {
	// Subject identifies the owner, e.g. the username.
	Subject string
	Purpose Purpose
}
