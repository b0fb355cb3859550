package inbound

import (
	"github.com/shandysiswandi/otpgate/internal/auth/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
)

// HTTPEndpoint exposes the registration and two-step login handlers. Bodies
// may be JSON or form encoded.
type HTTPEndpoint struct {
	uc uc
}

// Register enrolls a new user and provisions their TOTP secret.
func (h *HTTPEndpoint) Register(r *router.Request) (any, error) {
	var req RegisterRequest
	if err := r.Decode(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Register(r.Context(), usecase.RegisterInput{
		Username: req.Username,
		Password: req.Password,
		Email:    req.Email,
	})
	if err != nil {
		return nil, err
	}

	return RegisterResponse{Username: resp.Username}, nil
}

// Login checks the password and emails a one-time code.
func (h *HTTPEndpoint) Login(r *router.Request) (any, error) {
	var req LoginRequest
	if err := r.Decode(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Login(r.Context(), usecase.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		return nil, err
	}

	return LoginResponse{
		ChallengeToken:   resp.ChallengeToken,
		ExpiresInSeconds: int64(resp.ExpiresIn.Seconds()),
	}, nil
}

// VerifyOTP completes the login challenge.
func (h *HTTPEndpoint) VerifyOTP(r *router.Request) (any, error) {
	var req VerifyOTPRequest
	if err := r.Decode(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.VerifyOTP(r.Context(), usecase.VerifyOTPInput{
		Username: req.Username,
		OTP:      req.OTP,
	})
	if err != nil {
		return nil, err
	}

	return VerifyOTPResponse{Username: resp.Username, Authenticated: true}, nil
}

func (h *HTTPEndpoint) Health(r *router.Request) (any, error) {
	resp, err := h.uc.Health(r.Context())
	if err != nil {
		return nil, err
	}

	return HealthResponse{Store: resp.Store, Cache: resp.Cache}, nil
}
