package instrument

import "context"

type correlationIDKey struct{}

// invalidCorrelationID is returned by GetCorrelationID when the context
// carries no correlation id.
const invalidCorrelationID = "[invalid_correlation_id]"

// SetCorrelationID returns a copy of ctx carrying the correlation id.
func SetCorrelationID(ctx context.Context, cID string) context.Context {
	return context.WithValue(ctx, correlationIDKey{}, cID)
}

// GetCorrelationID returns the correlation id stored in ctx, or a placeholder
// when none is set.
func GetCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return invalidCorrelationID
	}

	if cID, ok := ctx.Value(correlationIDKey{}).(string); ok && cID != "" {
		return cID
	}

	return invalidCorrelationID
}

// HasCorrelationID reports whether ctx carries a usable correlation id.
func HasCorrelationID(ctx context.Context) bool {
	return GetCorrelationID(ctx) != invalidCorrelationID
}
