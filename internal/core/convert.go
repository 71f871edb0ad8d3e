package core

// convert.go provides conversion functions for imported cell values.
//
// These functions handle the messy reality of user-provided spreadsheets:
//   - Multiple date formats (US, EU, ISO, RFC 3339)
//   - Thousands separators and percent signs in numbers
//   - Excel formula prefixes (="value")
//
// Dates are normalized to the ISO-8601 UTC form the backend stores,
// with millisecond precision: 2024-01-15T00:00:00.000Z.

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ISOLayout is the normalized date-time representation.
const ISOLayout = "2006-01-02T15:04:05.000Z07:00"

// numericRegex validates that a string is a valid numeric format after cleanup.
var numericRegex = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)([eE][+-]?\d+)?$`)

// TwoDigitYearPivot defines how 2-digit years are interpreted.
// Years that would result in dates more than this many years in the future
// are assumed to be in the previous century.
var TwoDigitYearPivot = 20

// Date layouts split by year format for proper 2-digit year handling
var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05.000Z0700",
		"2006-01-02 15:04:05Z07:00",
		time.RFC1123Z,
		time.RFC1123,
	}
	twoDigitYearLayouts = []string{
		"1/2/06", "01/02/06", "1-2-06", "1.2.06", "01.02.06",
	}
	fourDigitYearLayouts = []string{
		"2006-01-02T15:04:05.000",
		"2006-01-02T15:04:05",
		"2006-01-02T15:04",
		"2006-01-02 15:04:05",
		"2006-01-02 15:04",
		"2006-01-02",
		"2006/01/02",
		"2006.01.02",
		"1/2/2006 15:04:05",
		"1/2/2006 15:04",
		"1/2/2006", "01/02/2006", "1-2-2006", "01-02-2006", "1.2.2006", "01.02.2006",
		"Jan 2, 2006", "January 2, 2006", "2 Jan 2006", "2 January 2006",
		"Mon Jan 2 2006",
	}
)

// ParseDate parses a date or date-time in any supported layout.
// Values without a zone are interpreted as UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}

	for _, layout := range fourDigitYearLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}

	// Try 2-digit year layouts with pivot year adjustment
	pivotYear := time.Now().Year() + TwoDigitYearPivot
	for _, layout := range twoDigitYearLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			if t.Year() > pivotYear {
				t = t.AddDate(-100, 0, 0)
			}
			return t, true
		}
	}

	return time.Time{}, false
}

// NormalizeDate parses s and returns its ISO-8601 UTC form.
func NormalizeDate(s string) (string, bool) {
	t, ok := ParseDate(s)
	if !ok {
		return "", false
	}
	return FormatISO(t), true
}

// FormatISO formats t as ISO-8601 UTC with millisecond precision.
func FormatISO(t time.Time) string {
	return t.UTC().Format(ISOLayout)
}

// canonicalDate returns the normalized form of a stored date, or the value
// unchanged when it does not parse. Used when comparing backend values
// against imported ones, which may differ only in precision or zone notation.
func canonicalDate(s string) string {
	if n, ok := NormalizeDate(s); ok {
		return n
	}
	return s
}

// ParseInteger parses an integer cell, tolerating thousands separators
// and a trailing ".0" written by spreadsheets.
func ParseInteger(s string) (int, bool) {
	s = cleanNumber(s)
	if s == "" {
		return 0, false
	}
	s = strings.TrimSuffix(s, ".0")
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return i, true
}

// ParseDecimal parses a decimal cell, tolerating thousands separators and a percent sign.
func ParseDecimal(s string) (float64, bool) {
	s = strings.TrimSuffix(cleanNumber(s), "%")
	if s == "" || !numericRegex.MatchString(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func cleanNumber(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	return strings.TrimSpace(s)
}

// CleanCell removes common spreadsheet artifacts from a cell value:
// - Trims whitespace
// - Removes Excel formula prefix (="...")
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") && len(s) >= 3 {
		s = strings.TrimSpace(s[2 : len(s)-1])
	}

	return s
}
