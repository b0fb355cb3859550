package email

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
)

type Mail struct {
	client mail.Mail
	ins    instrument.Instrumentation
}

func New(client mail.Mail, ins instrument.Instrumentation) *Mail {
	return &Mail{client: client, ins: ins}
}

func (m *Mail) Send(ctx context.Context, msg mail.Message) error {
	ctx, span := m.ins.Tracer("notification.outbound.email").Start(ctx, "Send")
	defer span.End()

	span.SetAttributes(
		attribute.Int("mail.recipients", len(msg.To)),
		attribute.String("mail.subject", msg.Subject),
	)

	if err := m.client.Send(ctx, msg); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
