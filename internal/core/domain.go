package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type (
	Date struct {
		time.Time
	}

	// Expense is one validated ledger row before persistence.
	// Category is assigned once through WithCategory; SpendType follows from it.
	Expense struct {
		Date      Date
		Product   string
		Amount    decimal.Decimal
		Category  string
		SpendType string
	}
)

var (
	ErrInvalidDay       = errors.New("invalid day")
	ErrInvalidMonth     = errors.New("invalid month")
	ErrEmptyProduct     = errors.New("empty product")
	ErrProductTooLong   = errors.New("product too long (max 200 characters)")
	ErrEmptyCategory    = errors.New("empty category")
	ErrUnknownCategory  = errors.New("unknown category")
	ErrCategoryAssigned = errors.New("category already assigned")
	ErrSpendTypeDrift   = errors.New("spend type does not match category")
)

const maxProductLen = 200

func (d Date) Validate() error {
	if d.IsZero() {
		return errors.New("date cannot be zero")
	}
	_, month, day := d.Date()
	if day < 1 || day > 31 {
		return ErrInvalidDay
	}
	if month < 1 || month > 12 {
		return ErrInvalidMonth
	}
	return nil
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Display renders the date the way the chat shows it (DD/MM/YY).
func (d Date) Display() string {
	return d.Format("02/01/06")
}

// ISO renders the date as stored in ledger rows.
func (d Date) ISO() string {
	return d.Format("2006-01-02")
}

// MonthKey is the ledger tab name for the date.
func (d Date) MonthKey() string {
	return MonthKey(d.Month())
}

// NewExpense builds an uncategorised record. The amount is rounded to
// two places here and nowhere else.
func NewExpense(product string, amount decimal.Decimal, date Date) Expense {
	return Expense{
		Date:    date,
		Product: strings.TrimSpace(product),
		Amount:  amount.Round(2),
	}
}

// WithCategory returns a copy with the category assigned and the spend
// type derived from it.
func (e Expense) WithCategory(category string) (Expense, error) {
	if e.Category != "" {
		return e, ErrCategoryAssigned
	}
	category = strings.TrimSpace(category)
	if category == "" {
		return e, ErrEmptyCategory
	}
	if !IsCategory(category) {
		return e, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	e.Category = category
	e.SpendType = Classify(category)
	return e, nil
}

// MonthKey is the ledger tab this record belongs to.
func (e Expense) MonthKey() string {
	return e.Date.MonthKey()
}

// Validate reports whether the record may be persisted.
func (e Expense) Validate() error {
	if err := e.Date.Validate(); err != nil {
		return err
	}
	if strings.TrimSpace(e.Product) == "" {
		return ErrEmptyProduct
	}
	if len(e.Product) > maxProductLen {
		return ErrProductTooLong
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	if !IsCategory(e.Category) {
		return ErrUnknownCategory
	}
	if e.SpendType == "" || e.SpendType != Classify(e.Category) {
		return ErrSpendTypeDrift
	}
	return nil
}

// String is the one-line summary shown back to the user.
func (e Expense) String() string {
	return fmt.Sprintf("%s - %s $%s (%s)", e.Date.Display(), e.Product, e.Amount.StringFixed(2), e.Category)
}
