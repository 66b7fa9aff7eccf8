package x12

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Date formats a time as CCYYMMDD, the D8 date format used throughout the
// HIPAA transaction sets.
func Date(t time.Time) string {
	return t.Format("20060102")
}

// ParseDate parses a CCYYMMDD element value.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse("20060102", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("x12: parse date %q: %w", s, err)
	}
	return t, nil
}

// Amount renders cents as a decimal monetary element value with two places
// and no currency symbol, e.g. 10000 -> "100.00".
func Amount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}

// ParseAmount parses a monetary element value into cents. Payers may omit the
// decimal point or send a single decimal place.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("x12: empty amount")
	}
	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = s[1:]
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if whole == "" {
		whole = "0"
	}
	switch len(frac) {
	case 0:
		frac = "00"
	case 1:
		frac += "0"
	case 2:
	default:
		return 0, fmt.Errorf("x12: amount %q has more than two decimal places", s)
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("x12: parse amount %q: %w", s, err)
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("x12: parse amount %q: %w", s, err)
	}
	cents := w*100 + f
	if negative {
		cents = -cents
	}
	return cents, nil
}
