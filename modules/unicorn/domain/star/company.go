package star

import (
	"strings"

	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/iota-uz/unicorn-warehouse/modules/unicorn/domain/snapshot"
)

// DimCompany is a dim_company candidate. The surrogate key is assigned by
// the warehouse on first insert and is not part of the candidate.
type DimCompany struct {
	NaturalKey string
	Name       string

	Industry        pgtype.Text
	Country         pgtype.Text
	City            pgtype.Text
	FoundedYear     pgtype.Int4
	DateJoined      pgtype.Date
	SelectInvestors pgtype.Text
}

// CompanyUpsert is the outcome of persisting a DimCompany.
type CompanyUpsert struct {
	Key      int64
	Inserted bool
}

// CompanyNaturalKey folds a company name to its identity: NFC, trimmed,
// inner whitespace collapsed, Unicode case-folded.
func CompanyNaturalKey(name string) string {
	s := norm.NFC.String(name)
	s = strings.Join(strings.Fields(s), " ")
	return cases.Fold().String(s)
}

// ResolveCompany derives the company dimension candidate of rec.
func ResolveCompany(rec snapshot.Record) DimCompany {
	return DimCompany{
		NaturalKey:      CompanyNaturalKey(rec.CompanyName),
		Name:            rec.CompanyName,
		Industry:        rec.Industry,
		Country:         rec.Country,
		City:            rec.City,
		FoundedYear:     rec.FoundedYear,
		DateJoined:      rec.DateJoined,
		SelectInvestors: rec.SelectInvestors,
	}
}
