package core

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestDateFormats(t *testing.T) {
	d := NewDate(2025, 3, 5)
	if got := d.Display(); got != "05/03/25" {
		t.Fatalf("display = %q", got)
	}
	if got := d.ISO(); got != "2025-03-05" {
		t.Fatalf("iso = %q", got)
	}
	if got := d.MonthKey(); got != "March" {
		t.Fatalf("month key = %q", got)
	}
}

func TestNewExpenseRoundsAmount(t *testing.T) {
	cases := map[string]string{
		"3.5":    "3.50",
		"3.555":  "3.56",
		"3.554":  "3.55",
		"-12.1":  "-12.10",
		"100":    "100.00",
		"0.005":  "0.01",
		"-0.005": "-0.01",
	}
	for in, want := range cases {
		e := NewExpense("x", decimal.RequireFromString(in), NewDate(2025, 1, 1))
		if got := e.Amount.StringFixed(2); got != want {
			t.Fatalf("%s rounded to %s, want %s", in, got, want)
		}
		if !e.Amount.Equal(e.Amount.Round(2)) {
			t.Fatalf("%s not stored at two places: %s", in, e.Amount)
		}
	}
}

func TestWithCategory(t *testing.T) {
	base := NewExpense("Coffee", decimal.RequireFromString("3.5"), NewDate(2025, 1, 6))

	e, err := base.WithCategory("Food")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if e.Category != "Food" || e.SpendType != SpendEssential {
		t.Fatalf("unexpected classification: %+v", e)
	}
	if base.Category != "" {
		t.Fatalf("WithCategory mutated the receiver")
	}
	if _, err := e.WithCategory("Travel"); !errors.Is(err, ErrCategoryAssigned) {
		t.Fatalf("expected ErrCategoryAssigned, got %v", err)
	}
	if _, err := base.WithCategory("Snacks"); !errors.Is(err, ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
	if _, err := base.WithCategory("  "); !errors.Is(err, ErrEmptyCategory) {
		t.Fatalf("expected ErrEmptyCategory, got %v", err)
	}
}

func TestExpenseValidate(t *testing.T) {
	good, err := NewExpense("ok", decimal.NewFromInt(1), NewDate(2025, 1, 1)).WithCategory("Food")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	zeroDate := good
	zeroDate.Date = Date{}
	noProduct := good
	noProduct.Product = ""
	noCategory := good
	noCategory.Category = ""
	unknown := good
	unknown.Category = "Snacks"
	drift := good
	drift.SpendType = SpendRecurring
	noSpend := good
	noSpend.SpendType = ""

	for i, e := range []Expense{zeroDate, noProduct, noCategory, unknown, drift, noSpend} {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestExpenseString(t *testing.T) {
	e, _ := NewExpense("Coffee", decimal.RequireFromString("3.5"), NewDate(2025, 3, 5)).WithCategory("Food")
	if got, want := e.String(), "05/03/25 - Coffee $3.50 (Food)"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestToday(t *testing.T) {
	// 17:30 UTC on the 5th is already the 6th in UTC+8
	now := time.Date(2025, 3, 5, 17, 30, 0, 0, time.UTC)
	if got := Today(now); !got.Equal(NewDate(2025, 3, 6).Time) {
		t.Fatalf("today = %s", got.ISO())
	}
	now = time.Date(2025, 3, 5, 15, 59, 0, 0, time.UTC)
	if got := Today(now); !got.Equal(NewDate(2025, 3, 5).Time) {
		t.Fatalf("today = %s", got.ISO())
	}
}

func TestValidDate(t *testing.T) {
	if _, err := ValidDate(2025, 2, 29); !errors.Is(err, ErrInvalidDay) {
		t.Fatalf("expected ErrInvalidDay, got %v", err)
	}
	if _, err := ValidDate(2025, 13, 1); !errors.Is(err, ErrInvalidMonth) {
		t.Fatalf("expected ErrInvalidMonth, got %v", err)
	}
	if d, err := ValidDate(2024, 2, 29); err != nil || d.Day() != 29 {
		t.Fatalf("leap day rejected: %v", err)
	}
}

func TestParseMonth(t *testing.T) {
	cases := []struct {
		in   string
		want time.Month
		ok   bool
	}{
		{"March", time.March, true},
		{"march", time.March, true},
		{"Mar", time.March, true},
		{"sept", time.September, true},
		{"12", time.December, true},
		{"0", 0, false},
		{"13", 0, false},
		{"Ma", 0, false},
		{"Smarch", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseMonth(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.want, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}
