// Package hash provides helpers for hashing and verifying secrets.
//
// Passwords are hashed with a salted, slow algorithm (bcrypt or argon2id)
// selected by NewPassword. HMACSHA256 is a keyed digest used where a value
// must be compared without being stored in plaintext, such as issued OTP
// codes.
package hash
