package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/otpgate/internal/auth/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

type RegisterInput struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
	Email    string `validate:"required,email"`
}

// credentialPolicy is checked only when strict credentials are enabled.
type credentialPolicy struct {
	Username string `validate:"username"`
	Password string `validate:"password"`
}

type RegisterOutput struct {
	Username string
}

func (s *Usecase) Register(ctx context.Context, in RegisterInput) (*RegisterOutput, error) {
	ctx, span := s.startSpan(ctx, "Register")
	defer span.End()

	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}
	if s.strictCredentials {
		if err := s.validator.Validate(credentialPolicy{Username: in.Username, Password: in.Password}); err != nil {
			return nil, goerror.NewInvalidInput(err)
		}
	}

	exists, err := s.repoStore.ExistsEnrollment(ctx, in.Username)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo check enrollment exists", "username", in.Username, "error", err)
		return nil, goerror.NewServer(err)
	}
	if exists {
		slog.WarnContext(ctx, "username already registered", "username", in.Username)
		return nil, errDuplicateUser()
	}

	passHash, err := s.password.Hash(in.Password)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash password", "username", in.Username, "error", err)
		return nil, goerror.NewServer(err)
	}

	secret, _, err := s.totp.GenerateSecret(in.Username)
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate totp secret", "username", in.Username, "error", err)
		return nil, goerror.NewServer(err)
	}

	secretEnc, err := s.mfaEncryptor.Encrypt([]byte(secret), s.secretScope(in.Username))
	if err != nil {
		slog.ErrorContext(ctx, "failed to encrypt totp secret", "username", in.Username, "error", err)
		return nil, goerror.NewServer(err)
	}

	err = s.repoStore.CreateEnrollment(ctx, entity.Enrollment{
		ID:              s.uid.Generate(),
		Username:        in.Username,
		Email:           in.Email,
		PasswordHash:    string(passHash),
		SecretEncrypted: secretEnc,
		CreatedAt:       s.clock.Now(),
	})
	if errors.Is(err, goerror.ErrConflict) {
		slog.WarnContext(ctx, "username registered concurrently", "username", in.Username)
		return nil, errDuplicateUser()
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo create enrollment", "username", in.Username, "error", err)
		return nil, goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "user registered", "username", in.Username)

	return &RegisterOutput{Username: in.Username}, nil
}

func errDuplicateUser() error {
	return goerror.NewBusinessErr(entity.ErrDuplicateUser, "Username already taken", goerror.CodeBadRequest)
}
