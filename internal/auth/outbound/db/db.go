package db

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
)

type tracer struct {
	ins instrument.Instrumentation
}

func (t tracer) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return t.ins.Tracer("auth.outbound.db").Start(ctx, name)
}

func (t tracer) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) && !errors.Is(err, goerror.ErrConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
