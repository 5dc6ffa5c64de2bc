package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"cashbot/internal/amqp"
	"cashbot/internal/core"
	"cashbot/internal/sheets/memory"

	"github.com/shopspring/decimal"
)

type fakePublisher struct {
	msgs   []*amqp.ExpenseRecordedMessage
	err    error
	closed bool
}

func (f *fakePublisher) PublishExpenseRecorded(_ context.Context, msg *amqp.ExpenseRecordedMessage) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

type failingLedger struct{ *memory.Store }

func (failingLedger) Append(context.Context, core.Expense) (string, error) {
	return "", errors.New("quota exceeded")
}

func expense(t *testing.T) core.Expense {
	t.Helper()
	e, err := core.NewExpense("Bus", decimal.RequireFromString("2.40"), core.NewDate(2025, 3, 7)).WithCategory("Transport")
	if err != nil {
		t.Fatalf("build expense: %v", err)
	}
	return e
}

func TestExpenseService_AppendPublishes(t *testing.T) {
	store := memory.New()
	pub := &fakePublisher{}
	svc := NewExpenseService(store, pub, nil)

	ref, err := svc.Append(context.Background(), expense(t))
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(pub.msgs) != 1 {
		t.Fatalf("published %d messages", len(pub.msgs))
	}
	msg := pub.msgs[0]
	if msg.RowRef != ref || msg.MonthKey != "March" || msg.Category != "Transport" {
		t.Fatalf("unexpected message %+v", msg)
	}

	in, err := svc.ReadInsights(context.Background(), time.March)
	if err != nil {
		t.Fatalf("read insights: %v", err)
	}
	if in.Total != "2.40" {
		t.Fatalf("total = %s", in.Total)
	}
}

func TestExpenseService_PublishFailureIsNotReturned(t *testing.T) {
	store := memory.New()
	svc := NewExpenseService(store, &fakePublisher{err: errors.New("circuit breaker is open")}, nil)

	if _, err := svc.Append(context.Background(), expense(t)); err != nil {
		t.Fatalf("publish failure leaked: %v", err)
	}
	rows, _ := store.ListExpenses(context.Background(), time.March)
	if len(rows) != 1 {
		t.Fatalf("row not saved: %d", len(rows))
	}
}

func TestExpenseService_LedgerFailureSkipsPublish(t *testing.T) {
	pub := &fakePublisher{}
	svc := NewExpenseService(failingLedger{memory.New()}, pub, nil)

	if _, err := svc.Append(context.Background(), expense(t)); err == nil {
		t.Fatal("expected ledger error")
	}
	if len(pub.msgs) != 0 {
		t.Fatal("published an event for an unsaved row")
	}
}

func TestExpenseService_Close(t *testing.T) {
	t.Run("nil publisher", func(t *testing.T) {
		svc := NewExpenseService(memory.New(), nil, nil)
		if err := svc.Close(); err != nil {
			t.Fatalf("Close should not return error with nil publisher: %v", err)
		}
		if _, err := svc.Append(context.Background(), expense(t)); err != nil {
			t.Fatalf("append without publisher: %v", err)
		}
	})

	t.Run("closes publisher", func(t *testing.T) {
		pub := &fakePublisher{}
		if err := NewExpenseService(memory.New(), pub, nil).Close(); err != nil {
			t.Fatalf("close: %v", err)
		}
		if !pub.closed {
			t.Fatal("publisher not closed")
		}
	})
}
