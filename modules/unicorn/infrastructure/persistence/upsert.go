package persistence

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
)

// upsertSpec describes an INSERT ... ON CONFLICT DO UPDATE statement. Every
// column outside the conflict target is overwritten with the incoming value.
type upsertSpec struct {
	table     pgx.Identifier
	columns   []string
	conflict  []string
	returning string
}

func (s upsertSpec) sql() string {
	isKey := make(map[string]bool, len(s.conflict))
	conflict := make([]string, len(s.conflict))
	for i, c := range s.conflict {
		isKey[c] = true
		conflict[i] = quote(c)
	}

	cols := make([]string, len(s.columns))
	params := make([]string, len(s.columns))
	var sets []string
	for i, c := range s.columns {
		cols[i] = quote(c)
		params[i] = "$" + strconv.Itoa(i+1)
		if !isKey[c] {
			sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", quote(c), quote(c)))
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) ",
		s.table.Sanitize(),
		strings.Join(cols, ", "),
		strings.Join(params, ", "),
		strings.Join(conflict, ", "),
	)
	if len(sets) == 0 {
		b.WriteString("DO NOTHING")
	} else {
		b.WriteString("DO UPDATE SET ")
		b.WriteString(strings.Join(sets, ", "))
	}
	if s.returning != "" {
		b.WriteString(" RETURNING ")
		b.WriteString(quote(s.returning))
	}
	return b.String()
}

func quote(col string) string {
	return pgx.Identifier{col}.Sanitize()
}

var (
	dimDateUpsert = upsertSpec{
		table:     pgx.Identifier{"dim_date"},
		columns:   []string{"date_key", "full_date", "year", "month", "day", "day_of_week", "is_weekday"},
		conflict:  []string{"date_key"},
		returning: "date_key",
	}.sql()

	factSnapshotUpsert = upsertSpec{
		table: pgx.Identifier{"fact_unicorn_snapshot"},
		columns: []string{
			"load_date_key", "company_key",
			"valuation_billion", "total_raised_million", "financial_stage",
			"investors_count", "deal_terms", "portfolio_exits",
		},
		conflict:  []string{"load_date_key", "company_key"},
		returning: "snapshot_id",
	}.sql()
)
