package google

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cashbot/internal/core"
	ports "cashbot/internal/sheets"

	"github.com/shopspring/decimal"
	"google.golang.org/api/googleapi"
	gsheet "google.golang.org/api/sheets/v4"
)

// Month tab layout. Rows live in A:E; the aggregate block lives in G:H and
// is filled with formulas when the tab is created.
const (
	rowsRange      = "A:E"
	headerRange    = "A1:E1"
	aggregateRange = "G1:H22"

	summaryRange   = "G2:H4"
	categoryRange  = "G7:H15"
	spendTypeRange = "G18:H22"
)

const (
	labelTotal          = "Total"
	labelWeekdayAverage = "Weekday Average"
	labelWeekendAverage = "Weekend Average"
)

func tabRange(tab, cells string) string {
	return fmt.Sprintf("%s!%s", tab, cells)
}

// readRanges are the aggregate ranges fetched for insights, in parse order.
func readRanges(tab string) []string {
	return []string{
		tabRange(tab, summaryRange),
		tabRange(tab, categoryRange),
		tabRange(tab, spendTypeRange),
	}
}

func headerValues() [][]any {
	row := make([]any, len(ports.HeaderRow))
	for i, h := range ports.HeaderRow {
		row[i] = h
	}
	return [][]any{row}
}

// headerPresent reports whether rows, read from the header range, match
// the header row.
func headerPresent(rows [][]any) bool {
	if len(rows) == 0 || len(rows[0]) < len(ports.HeaderRow) {
		return false
	}
	for i, h := range ports.HeaderRow {
		if strings.TrimSpace(cellString(rows[0][i])) != h {
			return false
		}
	}
	return true
}

func rowEmpty(rows [][]any) bool {
	for _, row := range rows {
		for _, v := range row {
			if cellString(v) != "" {
				return false
			}
		}
	}
	return true
}

// aggregateValues is the G1:H22 block. Averages only look at rows with a
// date; WEEKDAY(...,2) numbers Monday as 1.
func aggregateValues() [][]any {
	avg := func(cmp string) string {
		return fmt.Sprintf(`=IFERROR(AVERAGE(FILTER(C2:C,A2:A<>"",WEEKDAY(A2:A,2)%s)),0)`, cmp)
	}
	sumIf := func(col, label string) string {
		return fmt.Sprintf(`=SUMIF(%s2:%s,"%s",C2:C)`, col, col, label)
	}

	v := [][]any{
		{"Summary", ""},
		{labelTotal, "=SUM(C2:C)"},
		{labelWeekdayAverage, avg("<=5")},
		{labelWeekendAverage, avg(">5")},
		{"", ""},
		{"Category", "Total"},
	}
	for _, c := range core.Categories() {
		v = append(v, []any{c, sumIf("D", c)})
	}
	v = append(v, []any{"", ""}, []any{"Spend Type", "Total"})
	for _, s := range core.SpendTypes() {
		v = append(v, []any{s, sumIf("E", s)})
	}
	return v
}

// appendValues is the single row written for e. Product text that a sheet
// would evaluate as a formula is forced to a literal.
func appendValues(e core.Expense) [][]any {
	product := e.Product
	if product != "" && strings.ContainsAny(product[:1], "=+-@") {
		product = "'" + product
	}
	return [][]any{{e.Date.ISO(), product, e.Amount.StringFixed(2), e.Category, e.SpendType}}
}

// parseAggregates maps the three aggregate ranges onto an Insights value.
// Labels are matched within their own range since "Income" is both a
// category and a spend type.
func parseAggregates(month time.Month, ranges []*gsheet.ValueRange) core.Insights {
	in := core.EmptyInsights(month)
	section := func(i int) map[string]string {
		out := map[string]string{}
		if i >= len(ranges) || ranges[i] == nil {
			return out
		}
		for _, row := range ranges[i].Values {
			if len(row) == 0 {
				continue
			}
			label := strings.TrimSpace(cellString(row[0]))
			value := ""
			if len(row) > 1 {
				value = cellString(row[1])
			}
			out[label] = core.FormatFigure(value)
		}
		return out
	}

	summary := section(0)
	if v, ok := summary[labelTotal]; ok {
		in.Total = v
	}
	if v, ok := summary[labelWeekdayAverage]; ok {
		in.WeekdayAverage = v
	}
	if v, ok := summary[labelWeekendAverage]; ok {
		in.WeekendAverage = v
	}

	cats := section(1)
	for i, f := range in.ByCategory {
		if v, ok := cats[f.Label]; ok {
			in.ByCategory[i].Value = v
		}
	}
	spend := section(2)
	for i, f := range in.BySpendType {
		if v, ok := spend[f.Label]; ok {
			in.BySpendType[i].Value = v
		}
	}
	return in
}

// cellString renders an unformatted cell value.
func cellString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return decimal.NewFromFloat(x).String()
	default:
		return strings.TrimSpace(fmt.Sprint(x))
	}
}

func isRateLimited(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests
}

// isMissingTab reports the 400 the API returns for a range on a tab that
// does not exist. Other bad requests are real failures.
func isMissingTab(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(apiErr.Message), "unable to parse range")
}

func isAlreadyExists(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusBadRequest &&
		strings.Contains(strings.ToLower(apiErr.Message), "already exists")
}
