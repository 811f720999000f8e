package core

import "testing"

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,23", "1.23", true},
		{"-12.5", "-12.5", true},
		{"+7", "7", true},
		{"$150.00", "150", true},
		{"-$3.10", "-3.1", true},
		{"1.005", "1", true}, // banker's rounding
		{"1.015", "1.02", true},
		{" 2.50 ", "2.5", true},
		{"0", "0", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1e3", "", false},
		{"", "", false},
		{"-", "", false},
		{"1,234.56", "1234.56", true},
		{"-$12,345,678.9", "-12345678.9", true},
		{"1.234,56", "1234.56", true},
		{"1,234,56.7", "", false},
		{"12,34.5", "", false},
		{"1,234.5.6", "", false},
		{",123.4", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(dec(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestParsePercent(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"25", "0.25", true},
		{"12.5%", "0.125", true},
		{"12.345", "0.1234", true},
		{"33,339", "0.3333", true},
		{"150", "1.5", true},
		{"-10", "-0.1", true},
		{"", "", false},
		{"%", "", false},
		{"ten", "", false},
	}
	for _, tc := range cases {
		got, err := ParsePercent(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(dec(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestFormat(t *testing.T) {
	if got := FormatAmount(dec("-12.3")); got != "-12.30" {
		t.Errorf("FormatAmount = %q", got)
	}
	if got := FormatPercent(dec("0.125")); got != "12.50%" {
		t.Errorf("FormatPercent = %q", got)
	}
}
