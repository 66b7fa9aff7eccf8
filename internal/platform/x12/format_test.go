package x12

import (
	"testing"
	"time"
)

func TestAmount(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{10000, "100.00"},
		{4000, "40.00"},
		{6050, "60.50"},
		{5, "0.05"},
		{0, "0.00"},
		{-1250, "-12.50"},
	}
	for _, tc := range cases {
		if got := Amount(tc.cents); got != tc.want {
			t.Errorf("Amount(%d) = %q, want %q", tc.cents, got, tc.want)
		}
	}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"100.00", 10000, false},
		{"100", 10000, false},
		{"100.5", 10050, false},
		{"-12.50", -1250, false},
		{".75", 75, false},
		{"", 0, true},
		{"1.234", 0, true},
		{"abc", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseAmount(%q) succeeded, want error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseAmount(%q) error: %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseAmount(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestDateRoundTrip(t *testing.T) {
	day := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	s := Date(day)
	if s != "20260215" {
		t.Fatalf("Date() = %q", s)
	}
	back, err := ParseDate(s)
	if err != nil {
		t.Fatalf("ParseDate() error: %v", err)
	}
	if !back.Equal(day) {
		t.Errorf("ParseDate() = %v, want %v", back, day)
	}
}
