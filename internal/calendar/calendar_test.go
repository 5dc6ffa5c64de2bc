package calendar

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeDay(t *testing.T) {
	p, err := Decode("CALENDAR;DAY;2025;1;9")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	d, err := p.Date()
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if d.Display() != "09/01/25" {
		t.Fatalf("got %s", d.Display())
	}
}

func TestDecodeErrors(t *testing.T) {
	bad := []string{
		"",
		"Food",
		"CALENDAR;DAY;2025;1",
		"CALENDAR;DAY;2025;1;9;1",
		"CALENDAR;JUMP;2025;1;9",
		"CALENDAR;DAY;2025;x;9",
		"CALENDAR;DAY;2025;2;30",
		"CALENDAR;DAY;2025;13;1",
		"OTHER;DAY;2025;1;9",
	}
	for _, in := range bad {
		if _, err := Decode(in); !errors.Is(err, ErrInvalidPayload) {
			t.Fatalf("%q expected ErrInvalidPayload, got %v", in, err)
		}
	}
}

func TestEncodeDecode(t *testing.T) {
	for _, p := range []Payload{
		{Action: ActionDay, Year: 2024, Month: 2, Day: 29},
		{Action: ActionPrevMonth, Year: 2025, Month: 1, Day: 1},
		{Action: ActionIgnore, Year: 2025, Month: 7},
	} {
		got, err := Decode(Encode(p))
		if err != nil || got != p {
			t.Fatalf("%+v decoded to %+v (err=%v)", p, got, err)
		}
	}
}

func TestTarget(t *testing.T) {
	cases := []struct {
		p     Payload
		year  int
		month time.Month
	}{
		{Payload{Action: ActionPrevMonth, Year: 2025, Month: 1, Day: 1}, 2024, time.December},
		{Payload{Action: ActionNextMonth, Year: 2025, Month: 12, Day: 1}, 2026, time.January},
		{Payload{Action: ActionNextMonth, Year: 2025, Month: 3, Day: 1}, 2025, time.April},
		{Payload{Action: ActionIgnore, Year: 2025, Month: 3}, 2025, time.March},
	}
	for _, tc := range cases {
		y, m := tc.p.Target()
		if y != tc.year || m != tc.month {
			t.Fatalf("%+v target %d-%s", tc.p, y, m)
		}
	}
}

func TestKeyboard(t *testing.T) {
	// March 2025 starts on a Saturday and has 31 days
	kb := Keyboard(2025, time.March)
	if kb[0][0].Label != "March 2025" {
		t.Fatalf("title = %q", kb[0][0].Label)
	}
	if len(kb[1]) != 7 || kb[1][0].Label != "Mo" {
		t.Fatalf("weekday row = %+v", kb[1])
	}
	first := kb[2]
	if first[5].Label != "1" || first[4].Label != " " {
		t.Fatalf("first week = %+v", first)
	}
	if first[5].Data != "CALENDAR;DAY;2025;3;1" {
		t.Fatalf("day payload = %q", first[5].Data)
	}

	days := 0
	for _, row := range kb[2 : len(kb)-1] {
		if len(row) != 7 {
			t.Fatalf("week row has %d buttons", len(row))
		}
		for _, b := range row {
			p, err := Decode(b.Data)
			if err != nil {
				t.Fatalf("undecodable %q: %v", b.Data, err)
			}
			if p.Action == ActionDay {
				days++
			}
		}
	}
	if days != 31 {
		t.Fatalf("got %d day buttons", days)
	}

	nav := kb[len(kb)-1]
	if nav[0].Data != "CALENDAR;PREV-MONTH;2025;3;1" || nav[2].Data != "CALENDAR;NEXT-MONTH;2025;3;1" {
		t.Fatalf("nav row = %+v", nav)
	}
	if !IsPayload(nav[1].Data) || IsPayload("Food") {
		t.Fatalf("IsPayload mismatch")
	}
}
