package ledger

import (
	"strconv"
	"strings"
	"time"
)

// Period identifies a month of the ledger.
type Period struct {
	Year  int
	Month time.Month
}

// YearKey is the key of the year under Ledger.Periods.
func (p Period) YearKey() string {
	return strconv.Itoa(p.Year)
}

// MonthKey is the key of the month under YearPeriod.Months.
func (p Period) MonthKey() string {
	return p.Month.String()
}

// ParseReceiptDate resolves a MM/DD/YYYY or MM/DD/YY receipt date to its
// period. Two digit years are read as 20XX.
func ParseReceiptDate(s string) (Period, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return Period{}, &DateFormatError{Value: s}
	}

	month, ok := parseDigits(parts[0], 1, 2)
	if !ok || month < 1 || month > 12 {
		return Period{}, &DateFormatError{Value: s}
	}
	day, ok := parseDigits(parts[1], 1, 2)
	if !ok || day < 1 {
		return Period{}, &DateFormatError{Value: s}
	}

	var year int
	switch len(parts[2]) {
	case 2:
		year, ok = parseDigits(parts[2], 2, 2)
		year += 2000
	case 4:
		year, ok = parseDigits(parts[2], 4, 4)
	default:
		ok = false
	}
	if !ok {
		return Period{}, &DateFormatError{Value: s}
	}

	// time.Date normalises 02/31 into March; reject it instead.
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Day() != day {
		return Period{}, &DateFormatError{Value: s}
	}

	return Period{Year: year, Month: time.Month(month)}, nil
}

func parseDigits(s string, minLen, maxLen int) (int, bool) {
	if len(s) < minLen || len(s) > maxLen {
		return 0, false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseMonth accepts a month name ("January", "jan") or number ("1").
func ParseMonth(s string) (time.Month, bool) {
	s = strings.TrimSpace(s)
	if n, ok := parseDigits(s, 1, 2); ok {
		if n < 1 || n > 12 {
			return 0, false
		}
		return time.Month(n), true
	}
	for m := time.January; m <= time.December; m++ {
		name := m.String()
		if strings.EqualFold(s, name) || (len(s) == 3 && strings.EqualFold(s, name[:3])) {
			return m, true
		}
	}
	return 0, false
}
