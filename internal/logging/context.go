package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const traceIDKey contextKey = "trace_id"

// GenerateTraceID generates a new trace ID
func GenerateTraceID() string {
	return uuid.New().String()
}

// FromContext retrieves the logger from context, falling back to the default logger.
func FromContext(ctx context.Context) zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return *l
	}
	return Default()
}

// NewContext creates a new context with the logger
func NewContext(ctx context.Context, l zerolog.Logger) context.Context {
	return l.WithContext(ctx)
}

// WithTraceContext stores traceID (generated when empty) and a logger carrying it.
func WithTraceContext(ctx context.Context, base zerolog.Logger, traceID string) (context.Context, zerolog.Logger) {
	if traceID == "" {
		traceID = GenerateTraceID()
	}
	l := base.With().Str("trace_id", traceID).Logger()
	ctx = context.WithValue(ctx, traceIDKey, traceID)
	return l.WithContext(ctx), l
}

// TraceID returns the trace ID stored by WithTraceContext, if any.
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(traceIDKey).(string)
	return id
}

// SymbolContext tags a logger for per-symbol analysis work
func SymbolContext(l zerolog.Logger, symbol, timeframe string) zerolog.Logger {
	c := l.With().Str("symbol", symbol)
	if timeframe != "" {
		c = c.Str("timeframe", timeframe)
	}
	return c.Logger()
}

// ExchangeContext tags a logger for calls against one venue
func ExchangeContext(l zerolog.Logger, exchange, operation, symbol string) zerolog.Logger {
	return l.With().
		Str("exchange", exchange).
		Str("operation", operation).
		Str("symbol", symbol).
		Logger()
}
