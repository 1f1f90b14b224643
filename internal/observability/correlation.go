package observability

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type correlationIDKey struct{}

// WithCorrelationID tags ctx with the id that follows one missed call from
// the phone-state request to its dispatch outcome.
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, correlationIDKey{}, strings.TrimSpace(correlationID))
}

func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, _ := ctx.Value(correlationIDKey{}).(string)
	return id, id != ""
}

// EnsureCorrelationID returns the id carried by ctx, minting a new one when
// there is none.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if id, ok := CorrelationIDFromContext(ctx); ok {
		return ctx, id
	}
	id := uuid.NewString()
	return WithCorrelationID(ctx, id), id
}

// WithContextLogger adds the correlation id of ctx, if any, to logger.
func WithContextLogger(logger *zap.Logger, ctx context.Context) *zap.Logger {
	if logger == nil {
		return nil
	}
	if id, ok := CorrelationIDFromContext(ctx); ok {
		return logger.With(zap.String("correlationId", id))
	}
	return logger
}
