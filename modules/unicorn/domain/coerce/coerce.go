// Package coerce turns raw snapshot cells into typed nullable values.
//
// Every function here is total: malformed input degrades to the invalid
// (null) value of the target type and never returns an error. All paths
// share IsNull, so a missing-value marker looks the same to every caller.
package coerce

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// nullTokens are compared after trimming and lower-casing.
var nullTokens = map[string]struct{}{
	"none": {},
	"null": {},
	"nil":  {},
	"nan":  {},
	"nat":  {},
	"na":   {},
	"n/a":  {},
	"<na>": {},
	"#n/a": {},
}

// IsNull reports whether raw is one of the representations of a missing value.
func IsNull(raw string) bool {
	s := strings.TrimSpace(raw)
	if s == "" {
		return true
	}
	_, ok := nullTokens[strings.ToLower(s)]
	return ok
}

// String returns the trimmed text, or null.
func String(raw string) pgtype.Text {
	if IsNull(raw) {
		return pgtype.Text{}
	}
	return pgtype.Text{String: strings.TrimSpace(raw), Valid: true}
}

// Int parses a nullable 32-bit integer. Grouping separators are ignored and
// integral decimals such as "2010.0" are accepted.
func Int(raw string) pgtype.Int4 {
	if IsNull(raw) {
		return pgtype.Int4{}
	}
	s := stripGrouping(strings.TrimSpace(raw))
	if n, err := strconv.ParseInt(s, 10, 32); err == nil {
		return pgtype.Int4{Int32: int32(n), Valid: true}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return pgtype.Int4{}
	}
	if d.IsZero() {
		return pgtype.Int4{Int32: 0, Valid: true}
	}
	// Bound the magnitude by digit count first: rescaling "1e10000000" to
	// compare or truncate it would materialize ten million digits.
	if mag := d.NumDigits() + int(d.Exponent()); mag < 1 || mag > maxInt32Digits {
		return pgtype.Int4{}
	}
	if !d.IsInteger() || d.LessThan(minInt32) || d.GreaterThan(maxInt32) {
		return pgtype.Int4{}
	}
	return pgtype.Int4{Int32: int32(d.IntPart()), Valid: true}
}

const maxInt32Digits = 10

var (
	minInt32 = decimal.NewFromInt(math.MinInt32)
	maxInt32 = decimal.NewFromInt(math.MaxInt32)
)

func stripGrouping(s string) string {
	return strings.NewReplacer(",", "", "_", "", " ", "").Replace(s)
}

// Date formats seen in the snapshot exports, most specific first.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"1/2/2006",
	"1/2/06",
	"2006/01/02",
	"01-02-2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"2-Jan-2006",
	"2-Jan-06",
}

// Date parses a calendar date and drops any time-of-day component.
func Date(raw string) pgtype.Date {
	if IsNull(raw) {
		return pgtype.Date{}
	}
	s := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err != nil {
			continue
		}
		return pgtype.Date{Time: DateOnly(t), Valid: true}
	}
	return pgtype.Date{}
}

// DateOnly truncates t to midnight UTC of its own calendar day.
func DateOnly(t time.Time) time.Time {
	if t.IsZero() {
		return time.Time{}
	}
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
