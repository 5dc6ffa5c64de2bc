// Package calendar renders the inline date picker and decodes its callbacks.
//
// Every button carries a payload of the form CALENDAR;<ACTION>;<year>;<month>;<day>.
package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"cashbot/internal/bot"
	"cashbot/internal/core"
)

const prefix = "CALENDAR"

// Action is the verb carried by a calendar payload.
type Action string

const (
	ActionDay       Action = "DAY"
	ActionPrevMonth Action = "PREV-MONTH"
	ActionNextMonth Action = "NEXT-MONTH"
	ActionIgnore    Action = "IGNORE"
)

var ErrInvalidPayload = errors.New("invalid calendar payload")

// Payload is a decoded calendar callback.
type Payload struct {
	Action Action
	Year   int
	Month  int
	Day    int
}

// Date returns the day the payload points at.
func (p Payload) Date() (core.Date, error) {
	return core.ValidDate(p.Year, p.Month, p.Day)
}

// Encode renders p as callback data.
func Encode(p Payload) string {
	return fmt.Sprintf("%s;%s;%d;%d;%d", prefix, p.Action, p.Year, p.Month, p.Day)
}

// IsPayload reports whether data was produced by this package.
func IsPayload(data string) bool {
	return strings.HasPrefix(data, prefix+";")
}

// Decode parses callback data. DAY payloads must name a real date.
func Decode(data string) (Payload, error) {
	parts := strings.Split(data, ";")
	if len(parts) != 5 || parts[0] != prefix {
		return Payload{}, fmt.Errorf("%w: %q", ErrInvalidPayload, data)
	}
	p := Payload{Action: Action(parts[1])}
	switch p.Action {
	case ActionDay, ActionPrevMonth, ActionNextMonth, ActionIgnore:
	default:
		return Payload{}, fmt.Errorf("%w: unknown action %q", ErrInvalidPayload, parts[1])
	}

	nums := make([]int, 3)
	for i, s := range parts[2:] {
		n, err := strconv.Atoi(s)
		if err != nil {
			return Payload{}, fmt.Errorf("%w: %q", ErrInvalidPayload, data)
		}
		nums[i] = n
	}
	p.Year, p.Month, p.Day = nums[0], nums[1], nums[2]

	if p.Action == ActionDay {
		if _, err := p.Date(); err != nil {
			return Payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}
	return p, nil
}

// Target returns the month a navigation payload asks for. Other actions
// return the payload's own month.
func (p Payload) Target() (year int, month time.Month) {
	first := time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
	switch p.Action {
	case ActionPrevMonth:
		first = first.AddDate(0, -1, 0)
	case ActionNextMonth:
		first = first.AddDate(0, 1, 0)
	}
	return first.Year(), first.Month()
}

var weekdays = []string{"Mo", "Tu", "We", "Th", "Fr", "Sa", "Su"}

// Keyboard renders month as a grid: a title row, a weekday row, one row per
// week (Monday first) and a navigation row.
func Keyboard(year int, month time.Month) bot.Keyboard {
	ignore := func(label string) bot.Button {
		return bot.Button{Label: label, Data: Encode(Payload{Action: ActionIgnore, Year: year, Month: int(month)})}
	}

	kb := bot.Keyboard{{ignore(fmt.Sprintf("%s %d", month, year))}}

	header := make([]bot.Button, 0, len(weekdays))
	for _, w := range weekdays {
		header = append(header, ignore(w))
	}
	kb = append(kb, header)

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	days := first.AddDate(0, 1, -1).Day()
	offset := (int(first.Weekday()) + 6) % 7 // Monday = 0

	week := make([]bot.Button, 0, 7)
	for i := 0; i < offset; i++ {
		week = append(week, ignore(" "))
	}
	for d := 1; d <= days; d++ {
		week = append(week, bot.Button{
			Label: strconv.Itoa(d),
			Data:  Encode(Payload{Action: ActionDay, Year: year, Month: int(month), Day: d}),
		})
		if len(week) == 7 {
			kb = append(kb, week)
			week = make([]bot.Button, 0, 7)
		}
	}
	if len(week) > 0 {
		for len(week) < 7 {
			week = append(week, ignore(" "))
		}
		kb = append(kb, week)
	}

	kb = append(kb, []bot.Button{
		{Label: "<", Data: Encode(Payload{Action: ActionPrevMonth, Year: year, Month: int(month), Day: 1})},
		ignore(" "),
		{Label: ">", Data: Encode(Payload{Action: ActionNextMonth, Year: year, Month: int(month), Day: 1})},
	})
	return kb
}
