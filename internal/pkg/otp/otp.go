package otp

import (
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// secretSize is the byte length of generated seeds (160 bits, RFC 4226).
const secretSize = 20

// OTP defines the contract for TOTP operations.
type OTP interface {
	// GenerateSecret creates a base32 secret and provisioning URI for an account name.
	GenerateSecret(accountName string) (secret string, uri string, err error)
	// GenerateCode creates the TOTP code for the given secret at the given time.
	GenerateCode(secret string, at time.Time) (string, error)
	// Validate checks whether a code is valid at the given time.
	Validate(code, secret string, at time.Time) bool
}

// Engine implements OTP using RFC 6238 with SHA1.
type Engine struct {
	issuer string
	period uint
	skew   uint
	digits otp.Digits
}

// NewEngine constructs an Engine.
//
// If digits is not 6 or 8, it falls back to 6 digits. If period is 0, it uses
// the common 30-second period. skew is the number of periods accepted on each
// side of the current one by Validate; 0 means the current period only.
func NewEngine(issuer string, period, skew uint, digits otp.Digits) *Engine {
	if digits != otp.DigitsSix && digits != otp.DigitsEight {
		digits = otp.DigitsSix
	}

	if period == 0 {
		period = 30
	}

	return &Engine{
		issuer: issuer,
		period: period,
		skew:   skew,
		digits: digits,
	}
}

// GenerateSecret creates a secret and provisioning URI for an account name.
func (e *Engine) GenerateSecret(accountName string) (secret string, uri string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: accountName,
		Period:      e.period,
		SecretSize:  secretSize,
		Digits:      e.digits,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", err
	}

	return key.Secret(), key.URL(), nil
}

// GenerateCode creates a TOTP code for the given secret and time.
func (e *Engine) GenerateCode(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at, e.opts())
}

// Validate checks whether a code is valid at the given time.
func (e *Engine) Validate(code, secret string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at, e.opts())

	return ok && err == nil
}

func (e *Engine) opts() totp.ValidateOpts {
	return totp.ValidateOpts{
		Period:    e.period,
		Skew:      e.skew,
		Digits:    e.digits,
		Algorithm: otp.AlgorithmSHA1,
	}
}
