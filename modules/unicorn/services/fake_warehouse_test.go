package services

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/iota-uz/unicorn-warehouse/modules/unicorn/domain/star"
)

type factKey struct {
	date    int32
	company int64
}

type companyRow struct {
	key int64
	row star.DimCompany
}

type memState struct {
	dates     map[int32]star.DimDate
	companies map[string]companyRow
	facts     map[factKey]star.FactSnapshot
	nextKey   int64
	nextFact  int64
	factIDs   map[factKey]int64
}

func newMemState() *memState {
	return &memState{
		dates:     map[int32]star.DimDate{},
		companies: map[string]companyRow{},
		facts:     map[factKey]star.FactSnapshot{},
		factIDs:   map[factKey]int64{},
	}
}

func (s *memState) clone() *memState {
	return &memState{
		dates:     maps.Clone(s.dates),
		companies: maps.Clone(s.companies),
		facts:     maps.Clone(s.facts),
		factIDs:   maps.Clone(s.factIDs),
		nextKey:   s.nextKey,
		nextFact:  s.nextFact,
	}
}

func (s *memState) hasCompanyKey(key int64) bool {
	for _, c := range s.companies {
		if c.key == key {
			return true
		}
	}
	return false
}

// memWarehouse mimics the Postgres star schema: committed state is only
// replaced on Commit, and a failed savepoint discards just its own writes.
// City values longer than 100 bytes fail like the VARCHAR(100) column does.
type memWarehouse struct {
	committed *memState

	beginErr error
	dateErr  func(star.DimDate) error
	lockHeld bool
	commits  int
}

func newMemWarehouse() *memWarehouse {
	return &memWarehouse{committed: newMemState()}
}

func (w *memWarehouse) Begin(ctx context.Context) (star.Tx, error) {
	if w.beginErr != nil {
		return nil, w.beginErr
	}
	return &memTx{w: w, state: w.committed.clone()}, nil
}

type memTx struct {
	w      *memWarehouse
	state  *memState
	closed bool
}

func (t *memTx) Savepoint(ctx context.Context, fn func(ctx context.Context, tx star.Tx) error) error {
	child := &memTx{w: t.w, state: t.state.clone()}
	if err := fn(ctx, child); err != nil {
		return err
	}
	t.state = child.state
	return nil
}

func (t *memTx) UpsertDate(ctx context.Context, d star.DimDate) (int32, error) {
	if t.w.dateErr != nil {
		if err := t.w.dateErr(d); err != nil {
			return 0, err
		}
	}
	t.state.dates[d.DateKey] = d
	return d.DateKey, nil
}

func (t *memTx) UpsertCompany(ctx context.Context, c star.DimCompany) (star.CompanyUpsert, error) {
	if c.City.Valid && len(c.City.String) > 100 {
		return star.CompanyUpsert{}, errors.New("value too long for type character varying(100)")
	}
	// Keyed like company_natural_key: derived from the name, never trusted
	// from the candidate.
	natural := star.CompanyNaturalKey(c.Name)
	if existing, ok := t.state.companies[natural]; ok {
		t.state.companies[natural] = companyRow{key: existing.key, row: c}
		return star.CompanyUpsert{Key: existing.key}, nil
	}
	t.state.nextKey++
	t.state.companies[natural] = companyRow{key: t.state.nextKey, row: c}
	return star.CompanyUpsert{Key: t.state.nextKey, Inserted: true}, nil
}

func (t *memTx) UpsertFact(ctx context.Context, f star.FactSnapshot) (int64, error) {
	if _, ok := t.state.dates[f.LoadDateKey]; !ok {
		return 0, fmt.Errorf("fact_unicorn_snapshot_load_date_key_fkey: date %d", f.LoadDateKey)
	}
	if !t.state.hasCompanyKey(f.CompanyKey) {
		return 0, fmt.Errorf("fact_unicorn_snapshot_company_key_fkey: company %d", f.CompanyKey)
	}
	k := factKey{date: f.LoadDateKey, company: f.CompanyKey}
	t.state.facts[k] = f
	if id, ok := t.state.factIDs[k]; ok {
		return id, nil
	}
	t.state.nextFact++
	t.state.factIDs[k] = t.state.nextFact
	return t.state.nextFact, nil
}

func (t *memTx) TryLock(ctx context.Context, key int64) (bool, error) {
	return !t.w.lockHeld, nil
}

func (t *memTx) Commit(ctx context.Context) error {
	if t.closed {
		return errors.New("tx is closed")
	}
	t.closed = true
	t.w.committed = t.state
	t.w.commits++
	return nil
}

func (t *memTx) Rollback(ctx context.Context) error {
	t.closed = true
	return nil
}
