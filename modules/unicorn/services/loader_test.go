package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iota-uz/unicorn-warehouse/modules/unicorn/domain/snapshot"
	"github.com/iota-uz/unicorn-warehouse/modules/unicorn/domain/star"
)

var loadDay = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

type staticSource struct {
	rows []snapshot.RawRow
	err  error
}

func (s staticSource) Extract(ctx context.Context) ([]snapshot.RawRow, error) {
	return s.rows, s.err
}

func raw(line int, kv ...string) snapshot.RawRow {
	fields := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[kv[i]] = kv[i+1]
	}
	return snapshot.RawRow{Line: line, Fields: fields}
}

func records(t *testing.T, rows ...snapshot.RawRow) []snapshot.Record {
	t.Helper()
	recs, rejects := snapshot.NormalizeAll(rows, loadDay)
	require.Empty(t, rejects)
	return recs
}

func requireNoDanglingFacts(t *testing.T, st *memState) {
	t.Helper()
	for k := range st.facts {
		_, ok := st.dates[k.date]
		require.True(t, ok, "fact references missing date %d", k.date)
		require.True(t, st.hasCompanyKey(k.company), "fact references missing company %d", k.company)
	}
}

func TestLoader_Load(t *testing.T) {
	t.Parallel()

	w := newMemWarehouse()
	loader := NewLoader(w, LoaderOptions{})

	report, err := loader.Load(context.Background(), loadDay, records(t,
		raw(2, "Company", "Acme", "Valuation ($B)", "$1B", "Date Joined", "2021-05-01", "City", "SF"),
		raw(3, "Company", "Globex", "Valuation ($B)", "$2.5B", "Date Joined", "2021-05-01"),
	))
	require.NoError(t, err)

	assert.Equal(t, 2, report.Records)
	assert.Equal(t, 2, report.DatesUpserted)
	assert.Equal(t, 2, report.CompaniesInserted)
	assert.Equal(t, 2, report.FactsUpserted)
	assert.Equal(t, 1, w.commits)

	st := w.committed
	require.Len(t, st.dates, 2)
	require.Contains(t, st.dates, int32(20240315))
	require.Contains(t, st.dates, int32(20210501))
	require.Len(t, st.companies, 2)
	require.Len(t, st.facts, 2)
	requireNoDanglingFacts(t, st)

	acme := st.companies[star.CompanyNaturalKey("Acme")]
	fact := st.facts[factKey{date: 20240315, company: acme.key}]
	require.Equal(t, "1", fact.ValuationBillion.Decimal.String())
}

func TestLoader_IsIdempotent(t *testing.T) {
	t.Parallel()

	w := newMemWarehouse()
	loader := NewLoader(w, LoaderOptions{})
	recs := records(t,
		raw(2, "Company", "Acme", "Valuation ($B)", "$1B", "Date Joined", "2021-05-01"),
		raw(3, "Company", "Globex", "Total Raised", "$500M"),
	)

	_, err := loader.Load(context.Background(), loadDay, recs)
	require.NoError(t, err)
	first := w.committed.clone()

	report, err := loader.Load(context.Background(), loadDay, recs)
	require.NoError(t, err)
	assert.Equal(t, 0, report.CompaniesInserted)
	assert.Equal(t, 2, report.CompaniesUpdated)

	require.Equal(t, first.dates, w.committed.dates)
	require.Equal(t, first.companies, w.committed.companies)
	require.Equal(t, first.facts, w.committed.facts)
	require.Equal(t, first.factIDs, w.committed.factIDs)
}

func TestLoader_IsolatesFailedRow(t *testing.T) {
	t.Parallel()

	w := newMemWarehouse()
	loader := NewLoader(w, LoaderOptions{})

	report, err := loader.Load(context.Background(), loadDay, records(t,
		raw(2, "Company", "Acme", "Valuation ($B)", "$1B"),
		raw(3, "Company", "Broken", "Valuation ($B)", "$3B", "City", strings.Repeat("x", 150)),
		raw(4, "Company", "Globex", "Valuation ($B)", "$2B"),
	))
	require.NoError(t, err)

	assert.Equal(t, 2, report.CompaniesInserted)
	assert.Equal(t, 1, report.CompaniesFailed)
	assert.Equal(t, 2, report.FactsUpserted)
	assert.Equal(t, 1, report.FactsSkipped)

	st := w.committed
	require.Len(t, st.companies, 2)
	require.NotContains(t, st.companies, star.CompanyNaturalKey("Broken"))
	require.Len(t, st.facts, 2)
	requireNoDanglingFacts(t, st)
}

func TestLoader_LastDuplicateWins(t *testing.T) {
	t.Parallel()

	w := newMemWarehouse()
	loader := NewLoader(w, LoaderOptions{})

	report, err := loader.Load(context.Background(), loadDay, records(t,
		raw(2, "Company", "Acme", "City", "SF", "Valuation ($B)", "$1B"),
		raw(3, "Company", "  ACME ", "City", "NYC", "Valuation ($B)", "$2B"),
	))
	require.NoError(t, err)
	assert.Equal(t, 1, report.CompaniesInserted)
	assert.Equal(t, 1, report.CompaniesUpdated)

	st := w.committed
	require.Len(t, st.companies, 1)
	acme := st.companies[star.CompanyNaturalKey("acme")]
	require.Equal(t, "ACME", acme.row.Name)
	require.Equal(t, "NYC", acme.row.City.String)

	require.Len(t, st.facts, 1)
	require.Equal(t, "2", st.facts[factKey{date: 20240315, company: acme.key}].ValuationBillion.Decimal.String())
}

func TestLoader_CompanyIdentityFoldsCaseAndNormalization(t *testing.T) {
	t.Parallel()

	w := newMemWarehouse()
	loader := NewLoader(w, LoaderOptions{})

	report, err := loader.Load(context.Background(), loadDay, records(t,
		raw(2, "Company", "Straße Mobility", "City", "Berlin"),
		raw(3, "Company", "STRASSE MOBILITY", "City", "Munich"),
		raw(4, "Company", "Caf\u00e9 Labs"),
		raw(5, "Company", "Cafe\u0301 Labs"),
	))
	require.NoError(t, err)
	assert.Equal(t, 2, report.CompaniesInserted)
	assert.Equal(t, 2, report.CompaniesUpdated)

	st := w.committed
	require.Len(t, st.companies, 2)
	require.Len(t, st.facts, 2)
	strasse := st.companies[star.CompanyNaturalKey("strasse mobility")]
	require.Equal(t, "STRASSE MOBILITY", strasse.row.Name)
	require.Equal(t, "Munich", strasse.row.City.String)
}

func TestLoader_LoadDateFailureAbortsCycle(t *testing.T) {
	t.Parallel()

	w := newMemWarehouse()
	w.dateErr = func(d star.DimDate) error {
		if d.DateKey == 20240315 {
			return errors.New("dim_date unavailable")
		}
		return nil
	}
	loader := NewLoader(w, LoaderOptions{})

	_, err := loader.Load(context.Background(), loadDay, records(t, raw(2, "Company", "Acme")))
	require.ErrorContains(t, err, "upsert load date 20240315")
	require.Equal(t, 0, w.commits)
	require.Empty(t, w.committed.companies)
}

func TestLoader_JoinedDateFailureKeepsRow(t *testing.T) {
	t.Parallel()

	w := newMemWarehouse()
	w.dateErr = func(d star.DimDate) error {
		if d.DateKey == 20210501 {
			return errors.New("boom")
		}
		return nil
	}
	loader := NewLoader(w, LoaderOptions{})

	report, err := loader.Load(context.Background(), loadDay, records(t,
		raw(2, "Company", "Acme", "Date Joined", "2021-05-01"),
	))
	require.NoError(t, err)
	assert.Equal(t, 1, report.DatesFailed)
	assert.Equal(t, 1, report.FactsUpserted)
	require.NotContains(t, w.committed.dates, int32(20210501))
}

func TestLoader_BeginFailure(t *testing.T) {
	t.Parallel()

	w := newMemWarehouse()
	w.beginErr = errors.New("connection refused")

	_, err := NewLoader(w, LoaderOptions{}).Load(context.Background(), loadDay, nil)
	require.ErrorContains(t, err, "connection refused")
}

func TestLoader_SingleActiveSkipsWhenLocked(t *testing.T) {
	t.Parallel()

	w := newMemWarehouse()
	w.lockHeld = true

	report, err := NewLoader(w, LoaderOptions{SingleActive: true}).Load(context.Background(), loadDay,
		records(t, raw(2, "Company", "Acme")))
	require.NoError(t, err)
	require.True(t, report.SkippedByLock)
	require.Equal(t, 0, w.commits)
	require.Empty(t, w.committed.dates)
}

func TestLoader_StopsOnCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := newMemWarehouse()
	_, err := NewLoader(w, LoaderOptions{}).Load(ctx, loadDay, records(t, raw(2, "Company", "Acme")))
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 0, w.commits)
}

func TestPipeline_EndToEnd(t *testing.T) {
	t.Parallel()

	w := newMemWarehouse()
	p := NewPipeline(staticSource{rows: []snapshot.RawRow{
		raw(2, "Company", "Acme", "Valuation ($B)", "$1B", "Date Joined", "2021-05-01"),
		raw(3, "Company", "", "Valuation ($B)", "$2B", "Date Joined", "2020-01-01"),
	}}, NewLoader(w, LoaderOptions{}))

	rows, err := p.Extract(context.Background())
	require.NoError(t, err)

	recs, rejected := p.Transform(context.Background(), rows, loadDay)
	require.Equal(t, 1, rejected)
	require.Len(t, recs, 1)

	report, err := p.Load(context.Background(), loadDay, recs)
	require.NoError(t, err)
	assert.Equal(t, 1, report.CompaniesInserted)

	st := w.committed
	require.Len(t, st.companies, 1)
	require.Contains(t, st.companies, star.CompanyNaturalKey("Acme"))
	require.Len(t, st.dates, 2)
	require.Contains(t, st.dates, int32(20210501))
	require.Contains(t, st.dates, int32(20240315))
	require.NotContains(t, st.dates, int32(20200101))
	require.Len(t, st.facts, 1)
	requireNoDanglingFacts(t, st)
}
