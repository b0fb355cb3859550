package usecase

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
)

const otpEmailSubject = "OTP For 2FA"

const otpHTMLTemplate = `<!DOCTYPE html>
<html>
<body style="font-family:sans-serif">
<p>Hello {{.Username}},</p>
<p>Your OTP is: <strong style="font-size:20px;letter-spacing:4px">{{.Code}}</strong></p>
<p>It expires in {{.Minutes}} minutes. If you did not try to sign in, ignore this email.</p>
</body>
</html>`

type ConsumeOTPIssuedInput struct {
	Username         string `validate:"required"`
	Email            string `validate:"required,email"`
	Code             string `validate:"required,numeric"`
	IssuedAt         int64  `validate:"required,gt=0"`
	ExpiresInSeconds int64  `validate:"gte=0"`
}

// ConsumeOTPIssued emails the code at most once per issued session.
//
// Delivery failures are logged and swallowed: the session is already issued,
// and the user recovers by logging in again.
func (s *Usecase) ConsumeOTPIssued(ctx context.Context, in ConsumeOTPIssuedInput) error {
	ctx, span := s.startSpan(ctx, "ConsumeOTPIssued")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		slog.ErrorContext(ctx, "Validation failed", "error", err)
		return nil
	}

	msg, err := s.otpMessage(in)
	if err != nil {
		slog.ErrorContext(ctx, "failed to render otp email", "username", in.Username, "error", err)
		return nil
	}

	key := "otp_issued:" + in.Username + ":" + strconv.FormatInt(in.IssuedAt, 10)
	ttl := max(time.Duration(in.ExpiresInSeconds)*time.Second, time.Minute)

	err = s.idemp.Exec(ctx, key, func(ctx context.Context) error {
		return s.repoMail.Send(ctx, msg)
	}, idempotency.WithStateTTL(2*ttl))

	switch {
	case err == nil:
		s.countDelivery(ctx, "sent")
		slog.InfoContext(ctx, "otp email sent", "username", in.Username)
	case errors.Is(err, idempotency.ErrAlreadyCompleted),
		errors.Is(err, idempotency.ErrAlreadyInProgress),
		errors.Is(err, idempotency.ErrAlreadyFailed):
		s.countDelivery(ctx, "duplicate")
		slog.InfoContext(ctx, "otp email already handled", "username", in.Username, "reason", err)
	default:
		s.countDelivery(ctx, "failed")
		slog.ErrorContext(ctx, "failed to deliver otp email", "username", in.Username, "error", err)
	}

	return nil
}

func (s *Usecase) otpMessage(in ConsumeOTPIssuedInput) (mail.Message, error) {
	var html bytes.Buffer
	if err := s.otpHTML.Execute(&html, map[string]any{
		"Username": in.Username,
		"Code":     in.Code,
		"Minutes":  max(in.ExpiresInSeconds/60, 1),
	}); err != nil {
		return mail.Message{}, err
	}

	return mail.Message{
		To:       []string{in.Email},
		Subject:  otpEmailSubject,
		TextBody: "Your OTP is: " + in.Code,
		HTMLBody: html.String(),
	}, nil
}

func (s *Usecase) countDelivery(ctx context.Context, result string) {
	if s.deliveryCounter != nil {
		s.deliveryCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
	}
}
