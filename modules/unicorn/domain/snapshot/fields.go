package snapshot

import "strings"

// Field is a canonical column name of a normalized record.
type Field string

const (
	FieldCompanyName        Field = "company_name"
	FieldValuationBillion   Field = "valuation_billion"
	FieldDateJoined         Field = "date_joined_unicorn_club"
	FieldCountry            Field = "country"
	FieldCity               Field = "city"
	FieldIndustry           Field = "industry"
	FieldSelectInvestors    Field = "select_investors"
	FieldFoundedYear        Field = "founded_year"
	FieldTotalRaisedMillion Field = "total_raised_million"
	FieldFinancialStage     Field = "financial_stage"
	FieldInvestorsCount     Field = "investors_count"
	FieldDealTerms          Field = "deal_terms"
	FieldPortfolioExits     Field = "portfolio_exits"
)

// Fields lists every canonical field in export order.
var Fields = []Field{
	FieldCompanyName,
	FieldValuationBillion,
	FieldDateJoined,
	FieldCountry,
	FieldCity,
	FieldIndustry,
	FieldSelectInvestors,
	FieldFoundedYear,
	FieldTotalRaisedMillion,
	FieldFinancialStage,
	FieldInvestorsCount,
	FieldDealTerms,
	FieldPortfolioExits,
}

// columnMapping maps source header text to canonical fields. The upstream
// export misspells "Select Investors" in some vintages; both spellings are kept.
var columnMapping = map[string]Field{
	"Company":           FieldCompanyName,
	"Valuation ($B)":    FieldValuationBillion,
	"Date Joined":       FieldDateJoined,
	"Country":           FieldCountry,
	"City":              FieldCity,
	"Industry":          FieldIndustry,
	"Select Inverstors": FieldSelectInvestors,
	"Select Investors":  FieldSelectInvestors,
	"Founded Year":      FieldFoundedYear,
	"Total Raised":      FieldTotalRaisedMillion,
	"Financial Stage":   FieldFinancialStage,
	"Investors Count":   FieldInvestorsCount,
	"Deal Terms":        FieldDealTerms,
	"Portfolio Exits":   FieldPortfolioExits,
}

var foldedMapping = func() map[string]Field {
	m := make(map[string]Field, len(columnMapping)+len(Fields))
	for header, f := range columnMapping {
		m[strings.ToLower(header)] = f
	}
	for _, f := range Fields {
		m[string(f)] = f
	}
	return m
}()

// CanonicalField resolves a source header. Matching is exact first, then
// case-insensitive; canonical names are accepted as their own aliases.
func CanonicalField(header string) (Field, bool) {
	h := strings.TrimSpace(header)
	if f, ok := columnMapping[h]; ok {
		return f, true
	}
	f, ok := foldedMapping[strings.ToLower(h)]
	return f, ok
}
