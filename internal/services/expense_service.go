// Package services composes the ledger with the expense event stream.
package services

import (
	"context"
	"fmt"
	"time"

	"cashbot/internal/amqp"
	"cashbot/internal/core"
	"cashbot/internal/log"
	"cashbot/internal/sheets"
)

var _ sheets.Ledger = (*ExpenseService)(nil)

// Publisher announces recorded expenses. *amqp.Client satisfies it.
type Publisher interface {
	PublishExpenseRecorded(ctx context.Context, msg *amqp.ExpenseRecordedMessage) error
	Close() error
}

// ExpenseService writes to the ledger and then publishes an
// expense.recorded event. The ledger write is the source of truth: a
// publish failure is logged and never returned.
type ExpenseService struct {
	ledger    sheets.Ledger
	publisher Publisher
	logger    *log.Logger
}

// NewExpenseService wraps ledger. publisher may be nil when events are off.
func NewExpenseService(ledger sheets.Ledger, publisher Publisher, logger *log.Logger) *ExpenseService {
	if logger == nil {
		logger = log.Discard()
	}
	return &ExpenseService{
		ledger:    ledger,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentService),
	}
}

// Append saves e and publishes the event.
func (s *ExpenseService) Append(ctx context.Context, e core.Expense) (string, error) {
	ref, err := s.ledger.Append(ctx, e)
	if err != nil {
		return "", fmt.Errorf("save expense: %w", err)
	}

	if err := s.publish(ctx, e, ref); err != nil {
		// The turn's logger carries the chat id when there is one.
		log.FromContextOr(ctx, s.logger).ErrorContext(ctx, "Failed to publish expense recorded message",
			append(log.NewFields().
				WithError(err).
				WithOperation(log.OpPublish).
				WithExpense(e.Product, e.Amount.StringFixed(2), e.Category, e.SpendType, e.MonthKey()).
				ToSlice(), log.FieldRowRef, ref)...)
	}
	return ref, nil
}

func (s *ExpenseService) publish(ctx context.Context, e core.Expense, ref string) error {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP client not available, skipping expense recorded message")
		return nil
	}
	return s.publisher.PublishExpenseRecorded(ctx, amqp.NewExpenseRecordedMessage(e, ref))
}

// ReadInsights reads straight from the ledger.
func (s *ExpenseService) ReadInsights(ctx context.Context, month time.Month) (core.Insights, error) {
	return s.ledger.ReadInsights(ctx, month)
}

// Close closes the publisher. The ledger is owned by the caller.
func (s *ExpenseService) Close() error {
	if s.publisher == nil {
		return nil
	}
	if err := s.publisher.Close(); err != nil {
		return fmt.Errorf("close amqp: %w", err)
	}
	return nil
}
