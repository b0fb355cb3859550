package inbound

import "net/http"

type RegisterRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type RegisterResponse struct {
	Username string `json:"username"`
}

func (RegisterResponse) Message() string {
	return "Registration successful"
}

func (RegisterResponse) StatusCode() int {
	return http.StatusCreated
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	ChallengeToken   string `json:"challenge_token"`
	ExpiresInSeconds int64  `json:"expires_in_seconds"`
}

func (LoginResponse) Message() string {
	return "OTP has been sent to your email"
}

type VerifyOTPRequest struct {
	Username string `json:"username"`
	OTP      string `json:"otp"`
}

type VerifyOTPResponse struct {
	Username      string `json:"username"`
	Authenticated bool   `json:"authenticated"`
}

func (VerifyOTPResponse) Message() string {
	return "OTP verified successfully!"
}

type HealthResponse struct {
	Store string `json:"store"`
	Cache string `json:"cache"`
}
