package log

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"
)

type contextKey struct{}

// IntoContext returns a copy of ctx carrying logger.
func IntoContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, contextKey{}, logger)
}

// FromContext extracts a logger from ctx, falling back to the default.
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// FromContextOr returns the logger carried by ctx, or fallback when there is none.
func FromContextOr(ctx context.Context, fallback *Logger) *Logger {
	if logger, ok := ctx.Value(contextKey{}).(*Logger); ok {
		return logger
	}
	return fallback
}

// StructuredLogger logs the domain events that every backend reports the same way.
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{logger: logger}
}

// LogExpenseSaved logs a persisted row.
func (sl *StructuredLogger) LogExpenseSaved(ctx context.Context, product string, amount decimal.Decimal, category, spendType, monthKey, ref string) {
	fields := NewFields().
		WithExpense(product, amount.StringFixed(2), category, spendType, monthKey).
		WithOperation(OpAppend).
		ToSlice()
	fields = append(fields, FieldRowRef, ref)

	sl.logger.InfoContext(ctx, "Expense saved", fields...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	all := fields.WithError(err).WithOperation(operation)
	sl.logger.ErrorContext(ctx, msg, all.ToSlice()...)
}
