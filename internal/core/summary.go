package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// MissingFigure is shown for any aggregate the ledger could not provide.
const MissingFigure = "0"

// Figure is one labelled aggregate as displayed to the user.
type Figure struct {
	Label string
	Value string
}

// Insights is the per-month summary read back from a ledger tab.
type Insights struct {
	Month          time.Month
	Total          string
	WeekdayAverage string
	WeekendAverage string
	ByCategory     []Figure
	BySpendType    []Figure
}

// EmptyInsights returns a summary for month with every figure at MissingFigure.
func EmptyInsights(month time.Month) Insights {
	in := Insights{
		Month:          month,
		Total:          MissingFigure,
		WeekdayAverage: MissingFigure,
		WeekendAverage: MissingFigure,
	}
	for _, c := range Categories() {
		in.ByCategory = append(in.ByCategory, Figure{Label: c, Value: MissingFigure})
	}
	for _, s := range SpendTypes() {
		in.BySpendType = append(in.BySpendType, Figure{Label: s, Value: MissingFigure})
	}
	return in
}

// FormatFigure renders a ledger cell as a two-place number. Cells that
// are empty or not numeric give MissingFigure.
func FormatFigure(raw string) string {
	d, err := ParseAmount(raw)
	if err != nil {
		return MissingFigure
	}
	return d.StringFixed(2)
}

// Summarize computes the same aggregates a ledger tab holds from a set of
// rows. Rows from other months are ignored.
func Summarize(month time.Month, rows []Expense) Insights {
	var (
		total                    decimal.Decimal
		weekdaySum, weekendSum   decimal.Decimal
		weekdayCount, weekendCnt int64
	)
	byCategory := map[string]decimal.Decimal{}
	bySpend := map[string]decimal.Decimal{}

	for _, r := range rows {
		if r.Date.Month() != month {
			continue
		}
		total = total.Add(r.Amount)
		switch r.Date.Weekday() {
		case time.Saturday, time.Sunday:
			weekendSum = weekendSum.Add(r.Amount)
			weekendCnt++
		default:
			weekdaySum = weekdaySum.Add(r.Amount)
			weekdayCount++
		}
		byCategory[r.Category] = byCategory[r.Category].Add(r.Amount)
		bySpend[r.SpendType] = bySpend[r.SpendType].Add(r.Amount)
	}

	in := Insights{
		Month:          month,
		Total:          total.StringFixed(2),
		WeekdayAverage: average(weekdaySum, weekdayCount),
		WeekendAverage: average(weekendSum, weekendCnt),
	}
	for _, c := range Categories() {
		in.ByCategory = append(in.ByCategory, Figure{Label: c, Value: byCategory[c].StringFixed(2)})
	}
	for _, s := range SpendTypes() {
		in.BySpendType = append(in.BySpendType, Figure{Label: s, Value: bySpend[s].StringFixed(2)})
	}
	return in
}

func average(sum decimal.Decimal, n int64) string {
	if n == 0 {
		return decimal.Zero.StringFixed(2)
	}
	return sum.Div(decimal.NewFromInt(n)).StringFixed(2)
}
