package coerce

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestIsNull(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "   ", "None", "none", "NONE", "NaN", "nan", "NaT", "<NA>", "N/A", "null"} {
		require.Truef(t, IsNull(raw), "expected %q to be null", raw)
	}
	for _, raw := range []string{"0", "Acme", "none of the above", "-"} {
		require.Falsef(t, IsNull(raw), "expected %q to be a value", raw)
	}
}

func TestNullSentinelsAcrossTypes(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "None", "none", "NaN", "NaT"} {
		require.False(t, String(raw).Valid, raw)
		require.False(t, Int(raw).Valid, raw)
		require.False(t, Date(raw).Valid, raw)
		require.False(t, Decimal(raw, Billions).Valid, raw)
	}
}

func TestString(t *testing.T) {
	t.Parallel()

	got := String("  Fintech ")
	require.True(t, got.Valid)
	require.Equal(t, "Fintech", got.String)
}

func TestInt(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw   string
		want  int32
		valid bool
	}{
		{raw: "0", want: 0, valid: true},
		{raw: "2012", want: 2012, valid: true},
		{raw: "2012.0", want: 2012, valid: true},
		{raw: "1,024", want: 1024, valid: true},
		{raw: " 7 ", want: 7, valid: true},
		{raw: "12.5", valid: false},
		{raw: "abc", valid: false},
		{raw: "99999999999", valid: false},
		{raw: "None", valid: false},
		{raw: "2147483647", want: 2147483647, valid: true},
		{raw: "-2147483648", want: -2147483648, valid: true},
		{raw: "2147483648", valid: false},
		{raw: "2147483647.0", want: 2147483647, valid: true},
		{raw: "2147483648.0", valid: false},
		{raw: "18446744073709551616.0", valid: false},
		{raw: "1e64", valid: false},
		{raw: "-1e64", valid: false},
		{raw: "2.012e3", want: 2012, valid: true},
		{raw: "0e64", want: 0, valid: true},
		{raw: "1e-3", valid: false},
	}
	for _, tc := range cases {
		got := Int(tc.raw)
		require.Equalf(t, tc.valid, got.Valid, "raw=%q", tc.raw)
		if tc.valid {
			require.Equalf(t, tc.want, got.Int32, "raw=%q", tc.raw)
		}
	}
}

func TestInt_HugeExponentsStayCheap(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"1e10000000", "-1e10000000", "1e-10000000", "5e999999999"} {
		start := time.Now()
		require.Falsef(t, Int(raw).Valid, "raw=%q", raw)
		require.Lessf(t, time.Since(start), 500*time.Millisecond, "raw=%q", raw)
	}
}

func TestDecimal(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw  string
		unit Unit
		want string
	}{
		{raw: "$1B", unit: Billions, want: "1"},
		{raw: "$2.5B", unit: Billions, want: "2.5"},
		{raw: "$500M", unit: Millions, want: "500"},
		{raw: "$500M", unit: Billions, want: "0.5"},
		{raw: "$1B", unit: Millions, want: "1000"},
		{raw: "$140", unit: Billions, want: "140"},
		{raw: "$1,250M", unit: Millions, want: "1250"},
		{raw: "750k", unit: Millions, want: "0.75"},
		{raw: "-$3M", unit: Millions, want: "-3"},
		{raw: "12.75", unit: Millions, want: "12.75"},
	}
	for _, tc := range cases {
		got := Decimal(tc.raw, tc.unit)
		require.Truef(t, got.Valid, "raw=%q", tc.raw)
		require.Truef(t, decimal.RequireFromString(tc.want).Equal(got.Decimal), "raw=%q: want %s got %s", tc.raw, tc.want, got.Decimal)
	}
}

func TestDecimal_Unparsable(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"$", "$xB", "1.2.3M", "10Q", "inf", "$ B", "1e10000000", "$1e-10000000B"} {
		start := time.Now()
		require.Falsef(t, Decimal(raw, Millions).Valid, "raw=%q", raw)
		require.Lessf(t, time.Since(start), 500*time.Millisecond, "raw=%q", raw)
	}
	require.False(t, Decimal("$1B", 0).Valid)
}

func TestDate(t *testing.T) {
	t.Parallel()

	want := time.Date(2021, 5, 1, 0, 0, 0, 0, time.UTC)
	for _, raw := range []string{"2021-05-01", "5/1/2021", "5/1/21", "2021-05-01 13:45:00", "2021-05-01T13:45:00Z", "May 1, 2021"} {
		got := Date(raw)
		require.Truef(t, got.Valid, "raw=%q", raw)
		require.Truef(t, want.Equal(got.Time), "raw=%q: got %s", raw, got.Time)
	}

	for _, raw := range []string{"2021-13-01", "yesterday", "31/31/2021"} {
		require.Falsef(t, Date(raw).Valid, "raw=%q", raw)
	}
}

func TestDateOnly(t *testing.T) {
	t.Parallel()

	require.True(t, DateOnly(time.Time{}).IsZero())

	loc := time.FixedZone("UTC+9", 9*3600)
	got := DateOnly(time.Date(2024, 3, 15, 23, 30, 0, 0, loc))
	require.Equal(t, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), got)
}
