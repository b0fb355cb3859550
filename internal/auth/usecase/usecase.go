package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/shandysiswandi/otpgate/internal/auth/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/clock"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mfa"
	"github.com/shandysiswandi/otpgate/internal/pkg/otp"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

type OTPIssuedEvent struct {
	Username  string
	Email     string
	Code      string
	IssuedAt  time.Time
	ExpiresIn time.Duration
}

type repoMessaging interface {
	PublishOTPIssued(ctx context.Context, msg OTPIssuedEvent) error
}

type repoStore interface {
	GetEnrollment(ctx context.Context, username string) (*entity.Enrollment, error)
	ExistsEnrollment(ctx context.Context, username string) (bool, error)
	CreateEnrollment(ctx context.Context, in entity.Enrollment) error
	Ping(ctx context.Context) error
}

type repoCache interface {
	Issue(ctx context.Context, username, code string, now time.Time) error
	Consume(ctx context.Context, username, code string, now time.Time) (entity.VerifyResult, error)
	Ping(ctx context.Context) error
}

type Usecase struct {
	repoStore     repoStore
	repoCache     repoCache
	repoMessaging repoMessaging
	validator     validator.Validator
	password      hash.Hash
	mfaEncryptor  mfa.Encryptor
	uid           uid.NumberID
	totp          otp.OTP
	clock         clock.Clocker
	ins           instrument.Instrumentation
	otpTTL        time.Duration

	strictCredentials bool

	dummyOnce sync.Once
	dummyHash string

	issuedCounter   metric.Int64Counter
	verifiedCounter metric.Int64Counter
}

type Dependency struct {
	RepoStore     repoStore
	RepoCache     repoCache
	RepoMessaging repoMessaging
	Validator     validator.Validator
	Password      hash.Hash
	MFAEncryptor  mfa.Encryptor
	UID           uid.NumberID
	Totp          otp.OTP
	Clock         clock.Clocker
	Instrument    instrument.Instrumentation
	OTPTTL        time.Duration

	// StrictCredentials enables the username charset and password length rules.
	StrictCredentials bool
}

func New(dep Dependency) *Usecase {
	meter := dep.Instrument.Meter("auth.usecase")

	issued, err := meter.Int64Counter("auth.otp.issued", metric.WithDescription("Number of OTP codes issued"))
	if err != nil {
		slog.Error("failed to create otp issued counter", "error", err)
	}

	verified, err := meter.Int64Counter("auth.otp.verified", metric.WithDescription("Number of OTP verifications by result"))
	if err != nil {
		slog.Error("failed to create otp verified counter", "error", err)
	}

	return &Usecase{
		repoStore:       dep.RepoStore,
		repoCache:       dep.RepoCache,
		repoMessaging:   dep.RepoMessaging,
		validator:       dep.Validator,
		password:        dep.Password,
		mfaEncryptor:    dep.MFAEncryptor,
		uid:             dep.UID,
		totp:            dep.Totp,
		clock:           dep.Clock,
		ins:             dep.Instrument,
		otpTTL:          dep.OTPTTL,
		issuedCounter:   issued,
		verifiedCounter: verified,

		strictCredentials: dep.StrictCredentials,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("auth.usecase").Start(ctx, name)
}

func (s *Usecase) countVerified(ctx context.Context, result entity.VerifyResult) {
	if s.verifiedCounter != nil {
		s.verifiedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result.String())))
	}
}

func (s *Usecase) secretScope(username string) mfa.Scope {
	return mfa.Scope{Subject: username, Purpose: mfa.PurposeOTPSeed}
}

// burnPasswordCheck verifies against a throwaway hash so unknown usernames
// cost the same as wrong passwords.
func (s *Usecase) burnPasswordCheck(password string) {
	s.dummyOnce.Do(func() {
		h, err := s.password.Hash("otpgate-unknown-user")
		if err != nil {
			slog.Error("failed to create dummy password hash", "error", err)
			return
		}
		s.dummyHash = string(h)
	})
	if s.dummyHash != "" {
		s.password.Verify(s.dummyHash, password)
	}
}
