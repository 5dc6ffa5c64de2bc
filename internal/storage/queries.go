package storage

import (
	"context"
	"database/sql"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the statements the repository runs.
type Queries struct {
	db DBTX
}

func NewQueries(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a copy bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// ExpenseRow mirrors one row of the expenses table.
type ExpenseRow struct {
	ID        int64
	EventID   sql.NullString
	MonthKey  string
	Date      string
	Product   string
	Amount    string
	Category  string
	SpendType string
	RowRef    string
}

const ensureTab = `INSERT INTO tabs (month_key) VALUES (?) ON CONFLICT(month_key) DO NOTHING`

func (q *Queries) EnsureTab(ctx context.Context, monthKey string) error {
	_, err := q.db.ExecContext(ctx, ensureTab, monthKey)
	return err
}

type CreateExpenseParams struct {
	EventID   sql.NullString
	MonthKey  string
	Date      string
	Product   string
	Amount    string
	Category  string
	SpendType string
	RowRef    string
}

const createExpense = `INSERT INTO expenses (event_id, month_key, date, product, amount, category, spend_type, row_ref)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(event_id) DO NOTHING`

// CreateExpense inserts a row. It returns 0 when a row with the same
// event id already exists.
func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (int64, error) {
	res, err := q.db.ExecContext(ctx, createExpense,
		arg.EventID, arg.MonthKey, arg.Date, arg.Product, arg.Amount, arg.Category, arg.SpendType, arg.RowRef)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil || n == 0 {
		return 0, err
	}
	return res.LastInsertId()
}

const listExpensesByMonth = `SELECT id, event_id, month_key, date, product, amount, category, spend_type, row_ref
FROM expenses WHERE month_key = ? ORDER BY id`

func (q *Queries) ListExpensesByMonth(ctx context.Context, monthKey string) ([]ExpenseRow, error) {
	rows, err := q.db.QueryContext(ctx, listExpensesByMonth, monthKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []ExpenseRow
	for rows.Next() {
		var i ExpenseRow
		if err := rows.Scan(&i.ID, &i.EventID, &i.MonthKey, &i.Date, &i.Product, &i.Amount, &i.Category, &i.SpendType, &i.RowRef); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const countExpensesByMonth = `SELECT COUNT(*) FROM expenses WHERE month_key = ?`

func (q *Queries) CountExpensesByMonth(ctx context.Context, monthKey string) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx, countExpensesByMonth, monthKey).Scan(&n)
	return n, err
}

const listTabs = `SELECT month_key FROM tabs ORDER BY created_at, month_key`

func (q *Queries) ListTabs(ctx context.Context) ([]string, error) {
	rows, err := q.db.QueryContext(ctx, listTabs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
