package mq

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/codes"

	"github.com/shandysiswandi/otpgate/internal/auth/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
)

const keyOfCorrelationID string = "cID"

type Messaging struct {
	client messaging.Publisher
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Publisher, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ins: ins}
}

func (m *Messaging) PublishOTPIssued(ctx context.Context, msg usecase.OTPIssuedEvent) error {
	ctx, span := m.ins.Tracer("auth.outbound.mq").Start(ctx, "PublishOTPIssued")
	defer span.End()

	body, err := json.Marshal(event.OTPIssuedMessage{
		Username:         msg.Username,
		Email:            msg.Email,
		Code:             msg.Code,
		IssuedAt:         msg.IssuedAt.UnixMilli(),
		ExpiresInSeconds: int64(msg.ExpiresIn.Seconds()),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	cID := instrument.GetCorrelationID(ctx)
	if err := m.client.Publish(ctx, event.OTPIssuedDestination, messaging.OutgoingMessage{
		Body:    body,
		Key:     []byte(msg.Username),
		Headers: []messaging.Header{{Key: keyOfCorrelationID, Value: []byte(cID)}},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
