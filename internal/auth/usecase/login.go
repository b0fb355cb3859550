package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/otpgate/internal/auth/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

type LoginInput struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

type LoginOutput struct {
	// ChallengeToken identifies the pending OTP session; it is the username.
	ChallengeToken string
	ExpiresIn      time.Duration
}

func (s *Usecase) Login(ctx context.Context, in LoginInput) (*LoginOutput, error) {
	ctx, span := s.startSpan(ctx, "Login")
	defer span.End()

	in.Username = strings.TrimSpace(in.Username)

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	enr, err := s.repoStore.GetEnrollment(ctx, in.Username)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "enrollment not found", "username", in.Username)
		s.burnPasswordCheck(in.Password)
		return nil, errInvalidCredentials()
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get enrollment", "username", in.Username, "error", err)
		return nil, goerror.NewServer(err)
	}

	if !s.password.Verify(enr.PasswordHash, in.Password) {
		slog.WarnContext(ctx, "password not match", "username", in.Username)
		return nil, errInvalidCredentials()
	}

	secret, err := s.mfaEncryptor.Decrypt(enr.SecretEncrypted, s.secretScope(enr.Username))
	if err != nil {
		slog.ErrorContext(ctx, "failed to decrypt totp secret", "username", enr.Username, "error", err)
		return nil, goerror.NewServer(err)
	}

	now := s.clock.Now()
	code, err := s.totp.GenerateCode(string(secret), now)
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate otp code", "username", enr.Username, "error", err)
		return nil, goerror.NewServer(err)
	}

	if err := s.repoCache.Issue(ctx, enr.Username, code, now); err != nil {
		slog.ErrorContext(ctx, "failed to repo issue otp session", "username", enr.Username, "error", err)
		return nil, goerror.NewServer(err)
	}
	if s.issuedCounter != nil {
		s.issuedCounter.Add(ctx, 1)
	}

	if err := s.repoMessaging.PublishOTPIssued(ctx, OTPIssuedEvent{
		Username:  enr.Username,
		Email:     enr.Email,
		Code:      code,
		IssuedAt:  now,
		ExpiresIn: s.otpTTL,
	}); err != nil {
		// the session stays valid; the user can log in again to get a new code
		slog.ErrorContext(ctx, "failed to publish otp issued",
			"username", enr.Username, "error", errors.Join(entity.ErrDeliveryFailure, err))
	}

	return &LoginOutput{
		ChallengeToken: enr.Username,
		ExpiresIn:      s.otpTTL,
	}, nil
}

func errInvalidCredentials() error {
	return goerror.NewBusinessErr(entity.ErrInvalidCredentials, "Invalid credentials", goerror.CodeUnauthorized)
}
