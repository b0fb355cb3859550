package inbound

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/auth/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/router"
)

type uc interface {
	Register(ctx context.Context, in usecase.RegisterInput) (*usecase.RegisterOutput, error)
	Login(ctx context.Context, in usecase.LoginInput) (*usecase.LoginOutput, error)
	VerifyOTP(ctx context.Context, in usecase.VerifyOTPInput) (*usecase.VerifyOTPOutput, error)
	Health(ctx context.Context) (*usecase.HealthOutput, error)
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	// form-friendly paths used by the HTML login pages
	r.POST("/register_user", end.Register)
	r.POST("/login", end.Login)
	r.POST("/verify_otp", end.VerifyOTP)

	r.POST("/api/v1/auth/register", end.Register)
	r.POST("/api/v1/auth/login", end.Login)
	r.POST("/api/v1/auth/verify-otp", end.VerifyOTP)

	r.GET("/health", end.Health)
}
