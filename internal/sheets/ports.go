// Package sheets declares the ledger ports the conversation writes to and
// reads insights from. Adapters live in the google and memory subpackages
// and in internal/storage.
package sheets

import (
	"context"
	"time"

	"cashbot/internal/core"
)

// Ports for outbound adapters.
type (
	// ExpenseWriter appends one categorised record to its month tab,
	// creating the tab first when needed.
	ExpenseWriter interface {
		Append(ctx context.Context, e core.Expense) (rowRef string, err error)
	}

	// InsightsReader returns a month's aggregate figures. Figures the
	// ledger cannot provide are reported as core.MissingFigure.
	InsightsReader interface {
		ReadInsights(ctx context.Context, month time.Month) (core.Insights, error)
	}

	// ExpenseLister returns the rows recorded for a month.
	ExpenseLister interface {
		ListExpenses(ctx context.Context, month time.Month) ([]core.Expense, error)
	}

	// Ledger is the full read/write surface a backend provides.
	Ledger interface {
		ExpenseWriter
		InsightsReader
	}
)

// HeaderRow is the first row of every month tab.
var HeaderRow = []string{"Date", "Product", "Amount", "Category", "Spend Type"}
