package star

import (
	"errors"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/iota-uz/unicorn-warehouse/modules/unicorn/domain/snapshot"
)

var (
	ErrMissingCompanyKey = errors.New("company key is not resolved")
	ErrMissingDateKey    = errors.New("load date key is not resolved")
)

// FactSnapshot is a fact_unicorn_snapshot row keyed by (LoadDateKey, CompanyKey).
type FactSnapshot struct {
	LoadDateKey int32
	CompanyKey  int64

	ValuationBillion   decimal.NullDecimal
	TotalRaisedMillion decimal.NullDecimal
	FinancialStage     pgtype.Text
	InvestorsCount     pgtype.Int4
	DealTerms          pgtype.Text
	PortfolioExits     pgtype.Int4
}

// BuildFact derives the fact row of rec. It refuses to build a row when
// either dimension key is null so no fact can reference a missing dimension.
func BuildFact(rec snapshot.Record, loadDateKey pgtype.Int4, companyKey pgtype.Int8) (FactSnapshot, error) {
	if !loadDateKey.Valid {
		return FactSnapshot{}, ErrMissingDateKey
	}
	if !companyKey.Valid {
		return FactSnapshot{}, ErrMissingCompanyKey
	}
	return FactSnapshot{
		LoadDateKey:        loadDateKey.Int32,
		CompanyKey:         companyKey.Int64,
		ValuationBillion:   rec.ValuationBillion,
		TotalRaisedMillion: rec.TotalRaisedMillion,
		FinancialStage:     rec.FinancialStage,
		InvestorsCount:     rec.InvestorsCount,
		DealTerms:          rec.DealTerms,
		PortfolioExits:     rec.PortfolioExits,
	}, nil
}
