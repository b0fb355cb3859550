package inbound

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/shandysiswandi/otpgate/internal/notification/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
)

const keyOfCorrelationID string = "cID"

type MQHandler struct {
	uc   uc
	uuid uid.StringID
	ins  instrument.Instrumentation
}

func (h *MQHandler) ensureCorrelationID(ctx context.Context, headers []messaging.Header) context.Context {
	if cID := messaging.HeaderValue(headers, keyOfCorrelationID); cID != "" {
		return instrument.SetCorrelationID(ctx, cID)
	}
	return instrument.SetCorrelationID(ctx, h.uuid.Generate())
}

func (h *MQHandler) OTPIssuedNotification(ctx context.Context, msg messaging.Message) error {
	ctx = h.ensureCorrelationID(ctx, msg.Headers())

	ctx, span := h.ins.Tracer("notification.inbound.mq").Start(ctx, "OTPIssuedNotification")
	defer span.End()

	// body carries the code, log metadata only
	slog.InfoContext(ctx, "consume: otp issued notification", "msg_id", msg.ID(), "topic", msg.Topic())

	var payload event.OTPIssuedMessage
	if err := json.Unmarshal(msg.Body(), &payload); err != nil {
		slog.ErrorContext(ctx, "failed to parse message body of otp issued notification", "msg_id", msg.ID(), "error", err)
		return nil
	}

	if err := h.uc.ConsumeOTPIssued(ctx, usecase.ConsumeOTPIssuedInput{
		Username:         payload.Username,
		Email:            payload.Email,
		Code:             payload.Code,
		IssuedAt:         payload.IssuedAt,
		ExpiresInSeconds: payload.ExpiresInSeconds,
	}); err != nil {
		slog.ErrorContext(ctx, "failed to consume otp issued", "username", payload.Username, "error", err)
		return err
	}

	return nil
}
