// Package memory is an in-process ledger used for local runs and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cashbot/internal/core"
	ports "cashbot/internal/sheets"
)

var (
	_ ports.ExpenseWriter  = (*Store)(nil)
	_ ports.InsightsReader = (*Store)(nil)
	_ ports.ExpenseLister  = (*Store)(nil)
)

// Store keeps one slice of rows per month tab.
type Store struct {
	mu   sync.Mutex
	tabs map[string][]core.Expense
}

func New() *Store {
	return &Store{tabs: make(map[string][]core.Expense)}
}

// Append stores the expense and returns a sheet-style row reference.
func (s *Store) Append(_ context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", fmt.Errorf("validation failed: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	key := e.MonthKey()
	s.tabs[key] = append(s.tabs[key], e)
	row := len(s.tabs[key]) + 1 // row 1 is the header
	return fmt.Sprintf("%s!A%d:E%d", key, row, row), nil
}

// ListExpenses returns a copy of the month's rows in insertion order.
func (s *Store) ListExpenses(_ context.Context, month time.Month) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Expense(nil), s.tabs[core.MonthKey(month)]...), nil
}

// ReadInsights aggregates the month's rows. A month with no tab reports zeros.
func (s *Store) ReadInsights(ctx context.Context, month time.Month) (core.Insights, error) {
	rows, err := s.ListExpenses(ctx, month)
	if err != nil {
		return core.Insights{}, err
	}
	return core.Summarize(month, rows), nil
}

// Tabs returns the month keys that hold at least one row.
func (s *Store) Tabs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.tabs))
	for m := time.January; m <= time.December; m++ {
		if len(s.tabs[core.MonthKey(m)]) > 0 {
			out = append(out, core.MonthKey(m))
		}
	}
	return out
}
