package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{"1.004", 100, true},
		{".5", 50, true},
		{" 2.50 ", 250, true},
		{"1234.56", 123456, true},
		{"-1", 0, false},
		{"+1", 0, false},
		{"0", 0, false},
		{"0.00", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestMoneyFloat(t *testing.T) {
	cases := []struct {
		cents int64
		want  float64
	}{
		{0, 0},
		{1, 0.01},
		{100, 1},
		{123456, 1234.56},
	}
	for _, tc := range cases {
		if got := (Money{Cents: tc.cents}).Float(); got != tc.want {
			t.Fatalf("Float(%d) = %v, want %v", tc.cents, got, tc.want)
		}
	}
}

func TestMoneyString(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{5, "0.05"},
		{123, "1.23"},
		{100000, "1000.00"},
		{-250, "-2.50"},
	}
	for _, tc := range cases {
		if got := (Money{Cents: tc.cents}).String(); got != tc.want {
			t.Fatalf("String(%d) = %q, want %q", tc.cents, got, tc.want)
		}
	}
}
