package services

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/unicorn-warehouse/modules/unicorn/domain/snapshot"
	"github.com/iota-uz/unicorn-warehouse/modules/unicorn/domain/star"
	"github.com/iota-uz/unicorn-warehouse/pkg/composables"
	"github.com/iota-uz/unicorn-warehouse/pkg/logging"
)

// LoadReport counts what one Load did. Rows are counted once per outcome.
type LoadReport struct {
	Records           int  `json:"records"`
	DatesUpserted     int  `json:"dates_upserted"`
	DatesFailed       int  `json:"dates_failed"`
	CompaniesInserted int  `json:"companies_inserted"`
	CompaniesUpdated  int  `json:"companies_updated"`
	CompaniesFailed   int  `json:"companies_failed"`
	FactsUpserted     int  `json:"facts_upserted"`
	FactsSkipped      int  `json:"facts_skipped"`
	FactsFailed       int  `json:"facts_failed"`
	SkippedByLock     bool `json:"skipped_by_lock,omitempty"`
}

type LoaderOptions struct {
	// SingleActive skips the load when another instance holds the warehouse
	// lock for the duration of its cycle transaction.
	SingleActive bool

	LastErrorMaxLen int
}

func (o *LoaderOptions) setDefaults() {
	if o.LastErrorMaxLen == 0 {
		o.LastErrorMaxLen = 2048
	}
}

// Loader writes one snapshot into the star schema. The whole snapshot shares
// one transaction; every row write runs in its own savepoint so a failed row
// leaves the rest of the batch intact.
type Loader struct {
	warehouse star.Warehouse
	opts      LoaderOptions
	lockKey   int64
}

func NewLoader(warehouse star.Warehouse, opts LoaderOptions) *Loader {
	opts.setDefaults()
	return &Loader{
		warehouse: warehouse,
		opts:      opts,
		lockKey:   advisoryLockKey("unicorn-etl:warehouse"),
	}
}

func advisoryLockKey(s string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return int64(h.Sum64())
}

// Load upserts the load date, then each record's dimensions and fact. The
// returned error is cycle-level: nothing of this snapshot was committed.
func (l *Loader) Load(ctx context.Context, loadDate time.Time, records []snapshot.Record) (LoadReport, error) {
	report := LoadReport{Records: len(records)}
	logger := composables.UseLogger(ctx)

	tx, err := l.warehouse.Begin(ctx)
	if err != nil {
		return report, err
	}
	defer func() {
		if err := tx.Rollback(context.Background()); err != nil {
			logger.WithError(err).Warn("loader: rollback failed")
		}
	}()

	if l.opts.SingleActive {
		ok, err := tx.TryLock(ctx, l.lockKey)
		if err != nil {
			return report, err
		}
		if !ok {
			report.SkippedByLock = true
			logger.Info("loader: another instance holds the warehouse lock; skipping load")
			return report, nil
		}
	}

	loadDim := star.ResolveDate(loadDate)
	var loadKey int32
	err = tx.Savepoint(ctx, func(ctx context.Context, tx star.Tx) error {
		var err error
		loadKey, err = tx.UpsertDate(ctx, loadDim)
		return err
	})
	if err != nil {
		return report, fmt.Errorf("upsert load date %d: %w", loadDim.DateKey, err)
	}
	report.DatesUpserted++

	seenDates := map[int32]bool{loadKey: true}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		l.loadRecord(ctx, tx, rec, loadKey, seenDates, &report)
	}

	if err := tx.Commit(ctx); err != nil {
		return report, err
	}
	return report, nil
}

func (l *Loader) loadRecord(ctx context.Context, tx star.Tx, rec snapshot.Record, loadKey int32, seenDates map[int32]bool, report *LoadReport) {
	if rec.DateJoined.Valid {
		joined := star.ResolveDate(rec.DateJoined.Time)
		if !seenDates[joined.DateKey] {
			err := tx.Savepoint(ctx, func(ctx context.Context, tx star.Tx) error {
				_, err := tx.UpsertDate(ctx, joined)
				return err
			})
			if err != nil {
				report.DatesFailed++
				l.logRowError(ctx, rec, "dim_date", err)
			} else {
				seenDates[joined.DateKey] = true
				report.DatesUpserted++
			}
		}
	}

	// A failed company write leaves companyKey null, which BuildFact refuses.
	var companyKey pgtype.Int8
	var upserted star.CompanyUpsert
	company := star.ResolveCompany(rec)
	err := tx.Savepoint(ctx, func(ctx context.Context, tx star.Tx) error {
		var err error
		upserted, err = tx.UpsertCompany(ctx, company)
		return err
	})
	switch {
	case err != nil:
		report.CompaniesFailed++
		l.logRowError(ctx, rec, "dim_company", err)
	case upserted.Inserted:
		companyKey = pgtype.Int8{Int64: upserted.Key, Valid: true}
		report.CompaniesInserted++
	default:
		companyKey = pgtype.Int8{Int64: upserted.Key, Valid: true}
		report.CompaniesUpdated++
	}

	fact, err := star.BuildFact(rec, pgtype.Int4{Int32: loadKey, Valid: true}, companyKey)
	if err != nil {
		report.FactsSkipped++
		composables.UseLogger(ctx).WithFields(rowFields(rec)).WithError(err).Debug("loader: fact skipped")
		return
	}

	err = tx.Savepoint(ctx, func(ctx context.Context, tx star.Tx) error {
		_, err := tx.UpsertFact(ctx, fact)
		return err
	})
	if err != nil {
		report.FactsFailed++
		l.logRowError(ctx, rec, "fact_unicorn_snapshot", err)
		return
	}
	report.FactsUpserted++
}

func rowFields(rec snapshot.Record) logrus.Fields {
	return logrus.Fields{
		"company_name": rec.CompanyName,
		"line":         rec.Line,
	}
}

func (l *Loader) logRowError(ctx context.Context, rec snapshot.Record, table string, err error) {
	fields := rowFields(rec)
	fields["table"] = table
	fields["error"] = logging.TruncateError(err, l.opts.LastErrorMaxLen)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		fields["sqlstate"] = pgErr.Code
		if pgErr.ConstraintName != "" {
			fields["constraint"] = pgErr.ConstraintName
		}
	}
	composables.UseLogger(ctx).WithFields(fields).Warn("loader: row write failed")
}
