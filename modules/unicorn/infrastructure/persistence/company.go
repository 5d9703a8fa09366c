package persistence

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"github.com/iota-uz/unicorn-warehouse/modules/unicorn/domain/star"
)

// Companies are identified by star.CompanyNaturalKey, stored in
// company_natural_key under a unique constraint. The folding happens in Go
// because Postgres lower() neither case-folds nor normalizes Unicode.
const (
	selectCompanyKeyQuery = `
		SELECT company_key
		FROM dim_company
		WHERE company_natural_key = $1`

	updateCompanyQuery = `
		UPDATE dim_company SET
			company_name = $2,
			industry = $3,
			country = $4,
			city = $5,
			founded_year = $6,
			date_joined_unicorn_club = $7,
			select_investors = $8
		WHERE company_key = $1`

	insertCompanyQuery = `
		INSERT INTO dim_company (
			company_natural_key, company_name, industry, country, city,
			founded_year, date_joined_unicorn_club, select_investors
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING company_key`
)

// companyNaturalKey prefers the key resolved with the candidate and derives
// it from the name otherwise.
func companyNaturalKey(c star.DimCompany) string {
	if c.NaturalKey != "" {
		return c.NaturalKey
	}
	return star.CompanyNaturalKey(c.Name)
}

// UpsertCompany keeps the surrogate key of an existing company and
// overwrites its name and attributes; a new company gets a key on insert.
func (t *pgTx) UpsertCompany(ctx context.Context, c star.DimCompany) (star.CompanyUpsert, error) {
	natural := companyNaturalKey(c)
	if natural == "" {
		return star.CompanyUpsert{}, errors.New("dim_company: empty company name")
	}

	var key int64
	err := t.tx.QueryRow(ctx, selectCompanyKeyQuery, natural).Scan(&key)
	switch {
	case err == nil:
		tag, err := t.tx.Exec(ctx, updateCompanyQuery,
			key, c.Name, c.Industry, c.Country, c.City, c.FoundedYear, c.DateJoined, c.SelectInvestors,
		)
		if err != nil {
			return star.CompanyUpsert{}, errors.Wrapf(err, "failed to update dim_company %q", c.Name)
		}
		if tag.RowsAffected() != 1 {
			return star.CompanyUpsert{}, errors.Errorf("dim_company %q: expected 1 updated row, got %d", c.Name, tag.RowsAffected())
		}
		return star.CompanyUpsert{Key: key}, nil
	case errors.Is(err, pgx.ErrNoRows):
	default:
		return star.CompanyUpsert{}, errors.Wrapf(err, "failed to look up dim_company %q", c.Name)
	}

	if err := t.tx.QueryRow(ctx, insertCompanyQuery,
		natural, c.Name, c.Industry, c.Country, c.City, c.FoundedYear, c.DateJoined, c.SelectInvestors,
	).Scan(&key); err != nil {
		return star.CompanyUpsert{}, errors.Wrapf(err, "failed to insert dim_company %q", c.Name)
	}
	return star.CompanyUpsert{Key: key, Inserted: true}, nil
}
