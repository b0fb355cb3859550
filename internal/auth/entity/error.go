package entity

import "errors"

var (
	ErrDuplicateUser           = errors.New("auth: username already taken")
	ErrInvalidCredentials      = errors.New("auth: invalid credentials")
	ErrSessionExpiredOrMissing = errors.New("auth: otp session expired or missing")
	ErrOTPExpired              = errors.New("auth: otp expired")
	ErrInvalidOTP              = errors.New("auth: invalid otp")
	ErrDeliveryFailure         = errors.New("auth: otp delivery failure")
)
