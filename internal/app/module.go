package app

import (
	"fmt"

	"github.com/shandysiswandi/otpgate/internal/auth"
	"github.com/shandysiswandi/otpgate/internal/notification"
)

func (a *App) initModules() error {
	if a.config.GetBool("modules.auth.enabled") {
		if err := auth.New(auth.Dependency{
			Ctx:          a.ctx,
			PGConn:       a.pgConn,
			SQLConn:      a.sqlConn,
			MongoDB:      a.mongoDB,
			CacheConn:    a.cacheConn,
			Messaging:    a.messaging,
			Router:       a.router,
			Config:       a.config,
			Instrument:   a.ins,
			UID:          a.uid,
			HMAC:         a.hmac,
			Password:     a.password,
			MFAEncryptor: a.mfaEncryptor,
			Clock:        a.clock,
			Totp:         a.totp,
			Validator:    a.validator,
		}); err != nil {
			return fmt.Errorf("module auth: %w", err)
		}
	}

	if a.config.GetBool("modules.notification.enabled") {
		if err := notification.New(notification.Dependency{
			Ctx:         a.ctx,
			Messaging:   a.messaging,
			Config:      a.config,
			Instrument:  a.ins,
			UUID:        a.uuid,
			Goroutine:   a.goroutine,
			Validator:   a.validator,
			Mail:        a.mail,
			Idempotency: a.idemp,
		}); err != nil {
			return fmt.Errorf("module notification: %w", err)
		}
	}

	return nil
}
