// Package otp generates and validates time-based one-time passwords (TOTP,
// RFC 6238).
//
// Secrets are 160-bit random seeds encoded as base32. Codes are derived from
// the secret and a 30-second time step, so the same secret and step always
// give the same code.
package otp
