package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

var fixedNow = time.Date(2025, 3, 5, 2, 0, 0, 0, time.UTC) // 10:00 on the 5th in UTC+8

func TestParseExpense(t *testing.T) {
	cases := []struct {
		in      string
		product string
		amount  string
		date    string
	}{
		{"Coffee-3.50", "Coffee", "3.50", "2025-03-05"},
		{"Coffee-3.5", "Coffee", "3.50", "2025-03-05"},
		{" Lunch with Ana - 12,456 ", "Lunch with Ana", "12.46", "2025-03-05"},
		{"Refund--12", "Refund", "-12.00", "2025-03-05"},
		{"Tip-0.005", "Tip", "0.01", "2025-03-05"},
		{"01/02/25-Book-20", "Book", "20.00", "2025-02-01"},
		{"01/02/25-Refund--3", "Refund", "-3.00", "2025-02-01"},
		{"Chairs-3e2", "Chairs", "300.00", "2025-03-05"},
		{strings.Repeat("x", 200) + "-1", strings.Repeat("x", 200), "1.00", "2025-03-05"},
	}
	for _, tc := range cases {
		e, err := ParseExpense(tc.in, fixedNow, nil)
		if err != nil {
			t.Fatalf("%q unexpected error %v", tc.in, err)
		}
		if e.Product != tc.product || e.Amount.StringFixed(2) != tc.amount || e.Date.ISO() != tc.date {
			t.Fatalf("%q parsed to %q %s %s", tc.in, e.Product, e.Amount.StringFixed(2), e.Date.ISO())
		}
		if e.Category != "" || e.SpendType != "" {
			t.Fatalf("%q parse must not classify", tc.in)
		}
	}
}

func TestParseExpenseErrors(t *testing.T) {
	cases := []struct {
		in   string
		kind error
	}{
		{"Coffee", ErrInvalidFormat},
		{"", ErrInvalidFormat},
		{"-3.50", ErrInvalidFormat},
		{"a-b-c", ErrInvalidFormat},
		{"Coffee-3-50", ErrInvalidFormat},
		{"32/01/25-Coffee-3", ErrInvalidFormat},
		{"Coffee-abc", ErrInvalidAmount},
		{"Coffee-", ErrInvalidAmount},
		{"Coffee-1e999", ErrInvalidAmount},
		{strings.Repeat("x", 201) + "-3.5", ErrInvalidFormat},
		{"01/02/25-Book-x", ErrInvalidAmount},
	}
	for _, tc := range cases {
		_, err := ParseExpense(tc.in, fixedNow, nil)
		if !errors.Is(err, tc.kind) {
			t.Fatalf("%q expected %v, got %v", tc.in, tc.kind, err)
		}
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("%q expected *ParseError, got %T", tc.in, err)
		}
	}
}

func TestParseExpenseDatePrecedence(t *testing.T) {
	override := NewDate(2025, 1, 20)

	e, err := ParseExpense("Coffee-3", fixedNow, &override)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if e.Date.ISO() != "2025-01-20" {
		t.Fatalf("override ignored: %s", e.Date.ISO())
	}

	e, err = ParseExpense("10/01/25-Coffee-3", fixedNow, &override)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if e.Date.ISO() != "2025-01-10" {
		t.Fatalf("typed date should win: %s", e.Date.ISO())
	}
}

func TestSplitInputLegacyFlag(t *testing.T) {
	in, err := SplitInput("10/01/25-Coffee-3")
	if err != nil || !in.Legacy || in.Date == nil {
		t.Fatalf("expected legacy input, got %+v (err=%v)", in, err)
	}
	in, err = SplitInput("Coffee-3")
	if err != nil || in.Legacy || in.Date != nil {
		t.Fatalf("expected plain input, got %+v (err=%v)", in, err)
	}
}
