// Package storage is the SQLite ledger: a local backend for the bot and the
// archive the worker fills from expense.recorded events.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cashbot/internal/core"
	"cashbot/internal/log"
	ports "cashbot/internal/sheets"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

var (
	_ ports.ExpenseWriter  = (*SQLiteRepository)(nil)
	_ ports.InsightsReader = (*SQLiteRepository)(nil)
	_ ports.ExpenseLister  = (*SQLiteRepository)(nil)
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	logger  *log.Logger
}

func NewSQLiteRepository(dbPath string, logger *log.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// one writer keeps SQLite from returning SQLITE_BUSY under concurrent appends
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{
		db:      db,
		queries: NewQueries(db),
		logger:  logger.WithComponent(log.ComponentStorage),
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Append implements sheets.ExpenseWriter
func (r *SQLiteRepository) Append(ctx context.Context, e core.Expense) (string, error) {
	id, err := r.insert(ctx, sql.NullString{}, e, "")
	if err != nil {
		return "", err
	}
	ref := fmt.Sprintf("sqlite:%d", id)
	r.logger.InfoContext(ctx, "Expense saved to SQLite",
		"id", id,
		log.FieldMonthKey, e.MonthKey(),
		log.FieldProduct, e.Product,
		log.FieldAmount, e.Amount.StringFixed(2),
		log.FieldCategory, e.Category)
	return ref, nil
}

// ArchiveExpense stores a row received as an event. It reports false when
// the event id was already archived.
func (r *SQLiteRepository) ArchiveExpense(ctx context.Context, eventID string, e core.Expense, rowRef string) (bool, error) {
	if eventID == "" {
		return false, fmt.Errorf("archive expense: empty event id")
	}
	id, err := r.insert(ctx, sql.NullString{String: eventID, Valid: true}, e, rowRef)
	if err != nil {
		return false, err
	}
	if id == 0 {
		r.logger.DebugContext(ctx, "Event already archived", log.FieldEventID, eventID)
		return false, nil
	}
	r.logger.InfoContext(ctx, "Expense archived", "id", id, log.FieldEventID, eventID, log.FieldRowRef, rowRef)
	return true, nil
}

func (r *SQLiteRepository) insert(ctx context.Context, eventID sql.NullString, e core.Expense, rowRef string) (int64, error) {
	if err := e.Validate(); err != nil {
		return 0, fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	q := r.queries.WithTx(tx)
	if err := q.EnsureTab(ctx, e.MonthKey()); err != nil {
		return 0, fmt.Errorf("ensure tab %s: %w", e.MonthKey(), err)
	}
	id, err := q.CreateExpense(ctx, CreateExpenseParams{
		EventID:   eventID,
		MonthKey:  e.MonthKey(),
		Date:      e.Date.ISO(),
		Product:   e.Product,
		Amount:    e.Amount.StringFixed(2),
		Category:  e.Category,
		SpendType: e.SpendType,
		RowRef:    rowRef,
	})
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return id, nil
}

// ListExpenses implements sheets.ExpenseLister
func (r *SQLiteRepository) ListExpenses(ctx context.Context, month time.Month) ([]core.Expense, error) {
	rows, err := r.queries.ListExpensesByMonth(ctx, core.MonthKey(month))
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}

	out := make([]core.Expense, 0, len(rows))
	for _, row := range rows {
		e, err := row.toExpense()
		if err != nil {
			r.logger.WarnContext(ctx, "Skipping unreadable row", "id", row.ID, log.FieldError, err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// ReadInsights implements sheets.InsightsReader
func (r *SQLiteRepository) ReadInsights(ctx context.Context, month time.Month) (core.Insights, error) {
	rows, err := r.ListExpenses(ctx, month)
	if err != nil {
		return core.Insights{}, err
	}
	return core.Summarize(month, rows), nil
}

// Tabs lists the month tabs created so far.
func (r *SQLiteRepository) Tabs(ctx context.Context) ([]string, error) {
	tabs, err := r.queries.ListTabs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tabs: %w", err)
	}
	return tabs, nil
}

func (row ExpenseRow) toExpense() (core.Expense, error) {
	t, err := time.Parse("2006-01-02", row.Date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse date %q: %w", row.Date, err)
	}
	amount, err := decimal.NewFromString(row.Amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse amount %q: %w", row.Amount, err)
	}
	return core.Expense{
		Date:      core.NewDate(t.Year(), int(t.Month()), t.Day()),
		Product:   row.Product,
		Amount:    amount,
		Category:  row.Category,
		SpendType: row.SpendType,
	}, nil
}
