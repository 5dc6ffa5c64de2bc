package core

// Spend types derived from a category.
const (
	SpendEssential     = "Essential"
	SpendDiscretionary = "Discretionary"
	SpendRecurring     = "Recurring"
	SpendOneOff        = "One-off"
	SpendIncome        = "Income"
)

type categoryEntry struct {
	name      string
	spendType string
}

// categoryTable is the declared category order; keyboards and summaries follow it.
var categoryTable = []categoryEntry{
	{"Income", SpendIncome},
	{"Food", SpendEssential},
	{"Transport", SpendEssential},
	{"Education", SpendEssential},
	{"Shopping", SpendDiscretionary},
	{"Gifts", SpendDiscretionary},
	{"Lifestyle", SpendDiscretionary},
	{"Travel", SpendOneOff},
	{"Subscriptions", SpendRecurring},
}

var spendTypes = []string{SpendEssential, SpendDiscretionary, SpendRecurring, SpendOneOff, SpendIncome}

var spendTypeByCategory = func() map[string]string {
	m := make(map[string]string, len(categoryTable))
	for _, c := range categoryTable {
		m[c.name] = c.spendType
	}
	return m
}()

// Categories returns the category labels in declared order.
func Categories() []string {
	out := make([]string, len(categoryTable))
	for i, c := range categoryTable {
		out[i] = c.name
	}
	return out
}

// SpendTypes returns the spend-type labels in summary order.
func SpendTypes() []string {
	return append([]string(nil), spendTypes...)
}

// IsCategory reports whether label is one of the declared categories.
func IsCategory(label string) bool {
	_, ok := spendTypeByCategory[label]
	return ok
}

// Classify maps a category to its spend type. Unknown labels give "".
func Classify(category string) string {
	return spendTypeByCategory[category]
}
