package usecase

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/auth/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

type VerifyOTPInput struct {
	Username string `validate:"required"`
	OTP      string `validate:"required"`
}

type VerifyOTPOutput struct {
	Username string
}

func (s *Usecase) VerifyOTP(ctx context.Context, in VerifyOTPInput) (*VerifyOTPOutput, error) {
	ctx, span := s.startSpan(ctx, "VerifyOTP")
	defer span.End()

	in.Username = strings.TrimSpace(in.Username)
	in.OTP = strings.TrimSpace(in.OTP)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	result, err := s.repoCache.Consume(ctx, in.Username, in.OTP, s.clock.Now())
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo consume otp session", "username", in.Username, "error", err)
		return nil, goerror.NewServer(err)
	}
	s.countVerified(ctx, result)

	switch result {
	case entity.VerifyResultSuccess:
		slog.InfoContext(ctx, "otp verified", "username", in.Username)
		return &VerifyOTPOutput{Username: in.Username}, nil

	case entity.VerifyResultExpired:
		slog.WarnContext(ctx, "otp expired", "username", in.Username)
		return nil, goerror.NewBusinessErr(entity.ErrOTPExpired, "OTP expired", goerror.CodeBadRequest)

	case entity.VerifyResultMismatch:
		slog.WarnContext(ctx, "otp mismatch", "username", in.Username)
		return nil, goerror.NewBusinessErr(entity.ErrInvalidOTP, "Invalid OTP", goerror.CodeBadRequest)

	default:
		slog.WarnContext(ctx, "otp session not found", "username", in.Username)
		return nil, goerror.NewBusinessErr(entity.ErrSessionExpiredOrMissing, "OTP session expired", goerror.CodeBadRequest)
	}
}
