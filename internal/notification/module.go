package notification

import (
	"context"

	"github.com/shandysiswandi/otpgate/internal/notification/inbound"
	"github.com/shandysiswandi/otpgate/internal/notification/outbound/email"
	"github.com/shandysiswandi/otpgate/internal/notification/usecase"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/idempotency"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/mail"
	"github.com/shandysiswandi/otpgate/internal/pkg/messaging"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

type Dependency struct {
	Ctx         context.Context
	Messaging   messaging.Messaging        `validate:"required"`
	Config      config.Config              `validate:"required"`
	Instrument  instrument.Instrumentation `validate:"required"`
	UUID        uid.StringID               `validate:"required"`
	Goroutine   *goroutine.Manager         `validate:"required"`
	Validator   validator.Validator        `validate:"required"`
	Mail        mail.Mail                  `validate:"required"`
	Idempotency idempotency.Idempotency    `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	uc := usecase.New(usecase.Dependency{
		RepoMail:    email.New(dep.Mail, dep.Instrument),
		Idempotency: dep.Idempotency,
		Validator:   dep.Validator,
		Instrument:  dep.Instrument,
	})

	if dep.Ctx != nil {
		inbound.RegisterMQConsumer(dep.Ctx, dep.Config, dep.Goroutine, dep.Messaging, dep.UUID, uc, dep.Instrument)
	}

	return nil
}
