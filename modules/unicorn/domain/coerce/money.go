package coerce

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Unit is the scale a monetary column is stored in.
type Unit int64

const (
	Ones      Unit = 1
	Thousands Unit = 1_000
	Millions  Unit = 1_000_000
	Billions  Unit = 1_000_000_000
	Trillions Unit = 1_000_000_000_000
)

var suffixUnits = map[rune]Unit{
	'k': Thousands,
	'm': Millions,
	'b': Billions,
	't': Trillions,
}

var currencyTokens = []string{"usd", "us$", "$", "€", "£", "¥"}

// Decimal parses a currency or plain numeric string expressed in unit.
// A magnitude suffix (K, M, B, T) is converted to unit, so "$500M" read as
// Billions is 0.5; a bare number is assumed to already be in unit.
func Decimal(raw string, unit Unit) decimal.NullDecimal {
	if IsNull(raw) || unit <= 0 {
		return decimal.NullDecimal{}
	}
	s := strings.ToLower(strings.TrimSpace(raw))

	negative := false
	if strings.HasPrefix(s, "-") {
		negative = true
		s = strings.TrimSpace(s[1:])
	}
	for _, tok := range currencyTokens {
		s = strings.ReplaceAll(s, tok, "")
	}
	s = stripGrouping(s)
	if s == "" {
		return decimal.NullDecimal{}
	}

	scale := unit
	if r := rune(s[len(s)-1]); unicode.IsLetter(r) {
		u, ok := suffixUnits[r]
		if !ok {
			return decimal.NullDecimal{}
		}
		scale = u
		s = s[:len(s)-1]
	}

	d, err := decimal.NewFromString(s)
	if err != nil || !plausibleMagnitude(d) {
		return decimal.NullDecimal{}
	}
	if negative {
		d = d.Neg()
	}
	if scale != unit {
		d = d.Mul(decimal.NewFromInt(int64(scale))).Div(decimal.NewFromInt(int64(unit)))
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// maxMagnitudeDigits is far beyond any monetary column; larger exponents
// are garbage and too costly to rescale.
const maxMagnitudeDigits = 64

func plausibleMagnitude(d decimal.Decimal) bool {
	if d.IsZero() {
		return true
	}
	exp := int(d.Exponent())
	return exp >= -maxMagnitudeDigits && d.NumDigits()+exp <= maxMagnitudeDigits
}
