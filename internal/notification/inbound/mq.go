package inbound

import (
	"context"
	"log/slog"
	"slices"

	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/shared/event"
)

const defaultConsumerConcurrency = 10

func RegisterMQConsumer(
	ctx context.Context,
	cfg config.Config,
	routine *goroutine.Manager,
	messenger messaging.Consumer,
	uuid uid.StringID,
	uc uc,
	ins instrument.Instrumentation,
) {
	mqHandler := &MQHandler{uc: uc, uuid: uuid, ins: ins}

	enableConsumerNames := cfg.GetArray("modules.notification.consumer_names")
	concurrency := cfg.GetInt("modules.notification.consumer_concurrency")
	if concurrency < 1 {
		concurrency = defaultConsumerConcurrency
	}

	var consumers = []struct {
		name    string
		topic   string // destination where publisher sent message
		group   string // nats queue group, kafka consumer group
		handler messaging.Handler
	}{
		{
			name:    event.OTPIssuedConsumerNotification,
			topic:   event.OTPIssuedDestination,
			group:   event.OTPIssuedConsumerNotification,
			handler: mqHandler.OTPIssuedNotification,
		},
	}

	for _, consumer := range consumers {
		if !slices.Contains(enableConsumerNames, consumer.name) {
			slog.InfoContext(ctx, "consumer disabled by config", "consumer", consumer.name)
			continue
		}

		routine.Go(ctx, func(pCtx context.Context) error {
			slog.InfoContext(ctx, "Running job for handling consumer", "consumer", consumer.name)
			return messenger.Consume(pCtx,
				consumer.topic,
				consumer.handler,
				messaging.WithGroup(consumer.group),
				messaging.WithAutoAck(true),
				messaging.WithConcurrency(concurrency),
			)
		})
	}
}
