package bot

import (
	"fmt"
	"strings"

	"cashbot/internal/core"
)

const (
	MsgExpensePrompt   = "Please send the expense in the format: Product-Price"
	MsgDatePrompt      = "Please select a date:"
	MsgCategoryPrompt  = "Choose a category:"
	MsgInvalidFormat   = "Incorrect format. Please use 'Product-Price' format (e.g., 'Coffee-3.50')."
	MsgSaveFailed      = "⚠️ An error occurred while saving to the spreadsheet. Please try again later."
	MsgMissingSession  = "An error occurred. Please start again."
	MsgCancelled       = "Operation cancelled."
	MsgUnknownCommand  = "Sorry, I don't know that command."
	MsgChooseCategory  = "Please choose a category from the keyboard above."
	MsgInsightsFailed  = "Could not load insights right now. Please try again later."
	MsgInternalError   = "Something went wrong. Please try again."
	MsgIdleHint        = "Send /oneoff to record an expense or /help to see all commands."
	MsgStaleSelection  = "That selection is no longer active. Please send the expense as text."
	MsgUnknownInsights = "Unknown month. Use a month name like 'March' or a number from 1 to 12."
	MsgHealth          = "CashBotic is alive!"
	MsgHelp            = "/oneoff - record an expense dated today\n" +
		"/past - record an expense for another day\n" +
		"/insights [month] - show the month's totals\n" +
		"/cancel - abandon the current entry\n" +
		"/help - show this list"
)

// Greeting is the /start reply.
func Greeting(firstName string) string {
	return fmt.Sprintf("Hello %s! Welcome to your expenditure tracker.", firstName)
}

// DateSelected confirms a calendar pick.
func DateSelected(d core.Date) string {
	return "Date selected: " + d.Display()
}

// CategoryChosen confirms a category pick.
func CategoryChosen(category string) string {
	return fmt.Sprintf("Category '%s' chosen.", category)
}

// FormatSaved is the MarkdownV2 success message for a persisted record.
func FormatSaved(e core.Expense) string {
	return "Successfully saved: " + EscapeMarkdownV2(e.String())
}

// FormatInsights renders a month summary as MarkdownV2.
func FormatInsights(in core.Insights) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*Insights for %s*\n", EscapeMarkdownV2(in.Month.String()))
	fmt.Fprintf(&b, "Total: %s\n", EscapeMarkdownV2(in.Total))
	fmt.Fprintf(&b, "Weekday average: %s\n", EscapeMarkdownV2(in.WeekdayAverage))
	fmt.Fprintf(&b, "Weekend average: %s\n", EscapeMarkdownV2(in.WeekendAverage))

	b.WriteString("\n*By category*\n")
	for _, f := range in.ByCategory {
		fmt.Fprintf(&b, "%s: %s\n", EscapeMarkdownV2(f.Label), EscapeMarkdownV2(f.Value))
	}
	b.WriteString("\n*By spend type*\n")
	for _, f := range in.BySpendType {
		fmt.Fprintf(&b, "%s: %s\n", EscapeMarkdownV2(f.Label), EscapeMarkdownV2(f.Value))
	}
	return strings.TrimRight(b.String(), "\n")
}
