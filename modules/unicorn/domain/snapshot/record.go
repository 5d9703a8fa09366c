package snapshot

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iota-uz/unicorn-warehouse/modules/unicorn/domain/coerce"
)

var ErrMissingCompanyName = errors.New("company name is required")

// RawRow is one source line keyed by the header text it was read under.
type RawRow struct {
	Line   int
	Fields map[string]string
}

// Get returns the raw cell for header, or "" when the column is absent.
func (r RawRow) Get(header string) string {
	return r.Fields[header]
}

// RejectError reports a row that cannot become a record.
type RejectError struct {
	Line int
	Err  error
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Err)
}

func (e *RejectError) Unwrap() error {
	return e.Err
}

// Record is one company row of a snapshot after coercion.
type Record struct {
	Line int

	CompanyName string
	Industry    pgtype.Text
	Country     pgtype.Text
	City        pgtype.Text
	FoundedYear pgtype.Int4
	DateJoined  pgtype.Date

	ValuationBillion   decimal.NullDecimal
	TotalRaisedMillion decimal.NullDecimal
	FinancialStage     pgtype.Text
	SelectInvestors    pgtype.Text
	DealTerms          pgtype.Text
	InvestorsCount     pgtype.Int4
	PortfolioExits     pgtype.Int4

	// LoadDate is the processing date of the cycle, midnight UTC.
	LoadDate time.Time
}

// Normalize maps row onto canonical fields and coerces every value.
// Only a missing company name rejects the row.
func Normalize(row RawRow, loadDate time.Time) (Record, error) {
	values := canonicalValues(row)

	name := coerce.String(values[FieldCompanyName])
	if !name.Valid {
		return Record{}, &RejectError{Line: row.Line, Err: ErrMissingCompanyName}
	}

	return Record{
		Line:        row.Line,
		CompanyName: strings.Join(strings.Fields(name.String), " "),
		Industry:    coerce.String(values[FieldIndustry]),
		Country:     coerce.String(values[FieldCountry]),
		City:        coerce.String(values[FieldCity]),
		FoundedYear: coerce.Int(values[FieldFoundedYear]),
		DateJoined:  coerce.Date(values[FieldDateJoined]),

		ValuationBillion:   coerce.Decimal(values[FieldValuationBillion], coerce.Billions),
		TotalRaisedMillion: coerce.Decimal(values[FieldTotalRaisedMillion], coerce.Millions),
		FinancialStage:     coerce.String(values[FieldFinancialStage]),
		SelectInvestors:    coerce.String(values[FieldSelectInvestors]),
		DealTerms:          coerce.String(values[FieldDealTerms]),
		InvestorsCount:     coerce.Int(values[FieldInvestorsCount]),
		PortfolioExits:     coerce.Int(values[FieldPortfolioExits]),

		LoadDate: coerce.DateOnly(loadDate),
	}, nil
}

// canonicalValues renames headers; when two headers alias the same field the
// first non-null cell in sorted header order wins. Unknown headers are dropped.
func canonicalValues(row RawRow) map[Field]string {
	headers := make([]string, 0, len(row.Fields))
	for h := range row.Fields {
		headers = append(headers, h)
	}
	sort.Strings(headers)

	out := make(map[Field]string, len(Fields))
	for _, header := range headers {
		v := row.Fields[header]
		f, ok := CanonicalField(header)
		if !ok {
			continue
		}
		if prev, seen := out[f]; seen && !coerce.IsNull(prev) {
			continue
		}
		out[f] = v
	}
	return out
}

// NormalizeAll normalizes rows in order, collecting rejections separately.
func NormalizeAll(rows []RawRow, loadDate time.Time) ([]Record, []error) {
	records := make([]Record, 0, len(rows))
	var rejected []error
	for _, row := range rows {
		rec, err := Normalize(row, loadDate)
		if err != nil {
			rejected = append(rejected, err)
			continue
		}
		records = append(records, rec)
	}
	return records, rejected
}
