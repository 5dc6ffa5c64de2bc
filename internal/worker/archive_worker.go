// Package worker consumes expense.recorded events into the local archive.
package worker

import (
	"context"
	"fmt"

	"cashbot/internal/amqp"
	"cashbot/internal/core"
	"cashbot/internal/log"
)

// Archiver stores one event's record, reporting false for an event id
// it has already seen. *storage.SQLiteRepository satisfies it.
type Archiver interface {
	ArchiveExpense(ctx context.Context, eventID string, e core.Expense, rowRef string) (bool, error)
	Tabs(ctx context.Context) ([]string, error)
}

// ArchiveWorker copies recorded expenses into the archive.
type ArchiveWorker struct {
	archive Archiver
	logger  *log.Logger
}

func NewArchiveWorker(archive Archiver, logger *log.Logger) *ArchiveWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &ArchiveWorker{
		archive: archive,
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// HandleRecorded archives one message. Redeliveries are acknowledged
// without writing twice.
func (w *ArchiveWorker) HandleRecorded(ctx context.Context, msg *amqp.ExpenseRecordedMessage) error {
	w.logger.InfoContext(ctx, "Processing expense recorded message",
		log.FieldEventID, msg.ID,
		log.FieldMonthKey, msg.MonthKey)

	e, err := msg.Expense()
	if err != nil {
		// a malformed record will never succeed, so drop it instead of requeueing
		w.logger.ErrorContext(ctx, "Discarding invalid expense recorded message",
			log.FieldEventID, msg.ID,
			log.FieldError, err)
		return nil
	}

	inserted, err := w.archive.ArchiveExpense(ctx, msg.ID, e, msg.RowRef)
	if err != nil {
		return fmt.Errorf("archive expense %s: %w", msg.ID, err)
	}
	if !inserted {
		w.logger.InfoContext(ctx, "Expense already archived", log.FieldEventID, msg.ID)
		return nil
	}

	w.logger.InfoContext(ctx, "Expense archived",
		append(log.NewFields().
			WithOperation(log.OpArchive).
			WithExpense(e.Product, e.Amount.StringFixed(2), e.Category, e.SpendType, e.MonthKey()).
			ToSlice(), log.FieldEventID, msg.ID, log.FieldRowRef, msg.RowRef)...)
	return nil
}

// StartupCheck logs which months the archive already holds.
func (w *ArchiveWorker) StartupCheck(ctx context.Context) error {
	tabs, err := w.archive.Tabs(ctx)
	if err != nil {
		return fmt.Errorf("list archived months: %w", err)
	}
	w.logger.InfoContext(ctx, "Archive ready", "months", tabs, "count", len(tabs))
	return nil
}
