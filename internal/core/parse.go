package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Separator splits product from price in chat input.
const Separator = "-"

var (
	ErrInvalidFormat = errors.New("invalid format")
	ErrInvalidAmount = errors.New("invalid amount")
)

// ParseErrorKind classifies a rejected input line.
type ParseErrorKind int

const (
	InvalidFormat ParseErrorKind = iota + 1
	InvalidAmount
)

func (k ParseErrorKind) String() string {
	switch k {
	case InvalidFormat:
		return "InvalidFormat"
	case InvalidAmount:
		return "InvalidAmount"
	default:
		return "Unknown"
	}
}

// ParseError is returned by ParseExpense. It matches ErrInvalidFormat or
// ErrInvalidAmount through errors.Is.
type ParseError struct {
	Kind  ParseErrorKind
	Input string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %s", e.Input, e.Kind)
}

func (e *ParseError) Is(target error) bool {
	switch e.Kind {
	case InvalidFormat:
		return target == ErrInvalidFormat
	case InvalidAmount:
		return target == ErrInvalidAmount
	}
	return false
}

// ParsedInput carries the fields recovered from one line before a record
// is built. Legacy is set when the line used the DD/MM/YY-Product-Price form.
type ParsedInput struct {
	Product string
	Price   string
	Date    *Date
	Legacy  bool
}

// SplitInput splits raw into its fields without interpreting the price.
//
//	"Coffee-3.50"          -> Coffee, 3.50
//	"Refund--12"           -> Refund, -12
//	"05/03/25-Coffee-3.50" -> Coffee, 3.50, 05/03/25 (legacy)
func SplitInput(raw string) (ParsedInput, error) {
	text := strings.TrimSpace(raw)
	var in ParsedInput

	if head, rest, ok := strings.Cut(text, Separator); ok {
		if d, err := ParseDisplayDate(head); err == nil && strings.Contains(rest, Separator) {
			in.Date = &d
			in.Legacy = true
			text = rest
		}
	}

	product, price, ok := strings.Cut(text, Separator)
	if !ok {
		return in, &ParseError{Kind: InvalidFormat, Input: raw}
	}
	// a leading minus on the price is a sign, any other separator is one too many
	if strings.Contains(strings.TrimPrefix(price, Separator), Separator) {
		return in, &ParseError{Kind: InvalidFormat, Input: raw}
	}
	in.Product = strings.TrimSpace(product)
	in.Price = strings.TrimSpace(price)
	if in.Product == "" || len(in.Product) > maxProductLen {
		return in, &ParseError{Kind: InvalidFormat, Input: raw}
	}
	return in, nil
}

// ParseExpense turns one chat line into an uncategorised record.
//
// The date is, in order of precedence, the one typed in the legacy form,
// the calendar override, or today in ReferenceZone.
func ParseExpense(raw string, now time.Time, override *Date) (Expense, error) {
	in, err := SplitInput(raw)
	if err != nil {
		return Expense{}, err
	}
	amount, err := ParseAmount(in.Price)
	if err != nil {
		return Expense{}, &ParseError{Kind: InvalidAmount, Input: raw}
	}

	date := Today(now)
	switch {
	case in.Date != nil:
		date = *in.Date
	case override != nil:
		date = *override
	}
	return NewExpense(in.Product, amount, date), nil
}
