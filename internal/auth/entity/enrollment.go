package entity

import "time"

// Enrollment is a registered user together with their TOTP seed. It is
// written once at registration and never updated.
type Enrollment struct {
	ID              int64
	Username        string
	Email           string
	PasswordHash    string
	SecretEncrypted []byte
	CreatedAt       time.Time
}

// OTPSession is the pending second-factor challenge for a username.
type OTPSession struct {
	Username string
	Code     string
	IssuedAt time.Time
}

// Expired reports whether the session is no longer usable at now.
func (s OTPSession) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.IssuedAt) >= ttl
}
