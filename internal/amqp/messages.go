package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"cashbot/internal/core"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExpenseRecordedMessage announces a row that reached the ledger. ID is
// unique per event and lets consumers drop redeliveries.
type ExpenseRecordedMessage struct {
	ID        string    `json:"id"`
	Date      string    `json:"date"`
	Product   string    `json:"product"`
	Amount    string    `json:"amount"`
	Category  string    `json:"category"`
	SpendType string    `json:"spend_type"`
	MonthKey  string    `json:"month_key"`
	RowRef    string    `json:"row_ref"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseRecordedMessage creates the event for a persisted record.
func NewExpenseRecordedMessage(e core.Expense, rowRef string) *ExpenseRecordedMessage {
	return &ExpenseRecordedMessage{
		ID:        uuid.NewString(),
		Date:      e.Date.ISO(),
		Product:   e.Product,
		Amount:    e.Amount.StringFixed(2),
		Category:  e.Category,
		SpendType: e.SpendType,
		MonthKey:  e.MonthKey(),
		RowRef:    rowRef,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ExpenseRecordedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// Expense rebuilds and validates the record carried by the message.
func (m *ExpenseRecordedMessage) Expense() (core.Expense, error) {
	t, err := time.Parse("2006-01-02", m.Date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse date %q: %w", m.Date, err)
	}
	amount, err := decimal.NewFromString(m.Amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse amount %q: %w", m.Amount, err)
	}
	e, err := core.NewExpense(m.Product, amount, core.NewDate(t.Year(), int(t.Month()), t.Day())).WithCategory(m.Category)
	if err != nil {
		return core.Expense{}, err
	}
	if m.SpendType != e.SpendType {
		return core.Expense{}, fmt.Errorf("%w: %q for %q", core.ErrSpendTypeDrift, m.SpendType, m.Category)
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// ExpenseRecordedMessageFromJSON creates a message from JSON bytes
func ExpenseRecordedMessageFromJSON(data []byte) (*ExpenseRecordedMessage, error) {
	var msg ExpenseRecordedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" {
		return nil, fmt.Errorf("message has no id")
	}
	return &msg, nil
}
