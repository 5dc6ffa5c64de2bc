package core

import (
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1.00", true},
		{"1.0", "1.00", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"0.01", "0.01", true},
		{" 2.50 ", "2.50", true},
		{"-1", "-1.00", true},
		{"+4", "4.00", true},
		{"0", "0.00", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1e3", "1000.00", true},
		{"3E2", "300.00", true},
		{"2.5e-1", "0.25", true},
		{"-1e+1", "-10.00", true},
		{"1e400", "", false},
		{"e3", "", false},
		{"1e", "", false},
		{"NaN", "", false},
		{"Inf", "", false},
		{"1,2,3", "", false},
		{"1-2", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || got.StringFixed(2) != tc.out {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("%q expected ErrInvalidAmount, got %v", tc.in, err)
		}
	}
}
