package usecase

import (
	"context"
	"html/template"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

type repoMail interface {
	Send(ctx context.Context, msg mail.Message) error
}

type Usecase struct {
	repoMail  repoMail
	idemp     idempotency.Idempotency
	validator validator.Validator
	ins       instrument.Instrumentation
	otpHTML   *template.Template

	deliveryCounter metric.Int64Counter
}

type Dependency struct {
	RepoMail    repoMail
	Idempotency idempotency.Idempotency
	Validator   validator.Validator
	Instrument  instrument.Instrumentation
}

func New(dep Dependency) *Usecase {
	counter, err := dep.Instrument.Meter("notification.usecase").Int64Counter(
		"notification.otp.delivery",
		metric.WithDescription("Number of OTP email delivery attempts by result"),
	)
	if err != nil {
		slog.Error("failed to create otp delivery counter", "error", err)
	}

	return &Usecase{
		repoMail:        dep.RepoMail,
		idemp:           dep.Idempotency,
		validator:       dep.Validator,
		ins:             dep.Instrument,
		otpHTML:         template.Must(template.New("otp").Parse(otpHTMLTemplate)),
		deliveryCounter: counter,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("notification.usecase").Start(ctx, name)
}
