package usecase

import (
	"context"
	"log/slog"

	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

type HealthOutput struct {
	Store string
	Cache string
}

// Health pings the enrollment store and the OTP session cache.
func (s *Usecase) Health(ctx context.Context) (*HealthOutput, error) {
	ctx, span := s.startSpan(ctx, "Health")
	defer span.End()

	out := &HealthOutput{Store: "ok", Cache: "ok"}
	var failed bool

	if err := s.repoStore.Ping(ctx); err != nil {
		slog.ErrorContext(ctx, "store ping failed", "error", err)
		out.Store, failed = "unavailable", true
	}
	if err := s.repoCache.Ping(ctx); err != nil {
		slog.ErrorContext(ctx, "cache ping failed", "error", err)
		out.Cache, failed = "unavailable", true
	}

	if failed {
		return out, goerror.NewBusiness("Service unavailable", goerror.CodeUnavailable)
	}
	return out, nil
}
