package persistence

import (
	"context"
	stderrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/pkg/errors"

	"github.com/iota-uz/unicorn-warehouse/modules/unicorn/domain/star"
)

// pgTx implements star.Tx. Nested scopes come from pgx, where Begin on a Tx
// issues SAVEPOINT, Commit releases it and Rollback rolls back to it.
type pgTx struct {
	tx pgx.Tx
}

func (t *pgTx) Savepoint(ctx context.Context, fn func(ctx context.Context, tx star.Tx) error) error {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to create savepoint")
	}

	if err := fn(ctx, &pgTx{tx: sp}); err != nil {
		if rErr := sp.Rollback(ctx); rErr != nil {
			return stderrors.Join(err, rErr)
		}
		return err
	}
	return errors.Wrap(sp.Commit(ctx), "failed to release savepoint")
}

func (t *pgTx) UpsertDate(ctx context.Context, d star.DimDate) (int32, error) {
	var key int32
	err := t.tx.QueryRow(ctx, dimDateUpsert,
		d.DateKey,
		pgtype.Date{Time: d.FullDate, Valid: true},
		d.Year,
		d.Month,
		d.Day,
		d.DayOfWeek,
		d.IsWeekday,
	).Scan(&key)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to upsert dim_date %d", d.DateKey)
	}
	return key, nil
}

func (t *pgTx) UpsertFact(ctx context.Context, f star.FactSnapshot) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, factSnapshotUpsert,
		f.LoadDateKey,
		f.CompanyKey,
		f.ValuationBillion,
		f.TotalRaisedMillion,
		f.FinancialStage,
		f.InvestorsCount,
		f.DealTerms,
		f.PortfolioExits,
	).Scan(&id)
	if err != nil {
		return 0, errors.Wrapf(err, "failed to upsert fact_unicorn_snapshot (%d, %d)", f.LoadDateKey, f.CompanyKey)
	}
	return id, nil
}

func (t *pgTx) TryLock(ctx context.Context, key int64) (bool, error) {
	var ok bool
	if err := t.tx.QueryRow(ctx, `SELECT pg_try_advisory_xact_lock($1::bigint)`, key).Scan(&ok); err != nil {
		return false, errors.Wrap(err, "failed to try advisory lock")
	}
	return ok, nil
}

func (t *pgTx) Commit(ctx context.Context) error {
	return errors.Wrap(t.tx.Commit(ctx), "failed to commit")
}

// Rollback is a no-op on a transaction that already ended.
func (t *pgTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return errors.Wrap(err, "failed to rollback")
	}
	return nil
}
