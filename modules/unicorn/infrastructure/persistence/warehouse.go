package persistence

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/unicorn-warehouse/modules/unicorn/domain/star"
	"github.com/iota-uz/unicorn-warehouse/pkg/logging"
)

// ErrUnavailable marks a cycle that could not open its transaction.
var ErrUnavailable = stderrors.New("warehouse unavailable")

// TxBeginner is satisfied by *pgxpool.Pool and *pgx.Conn.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type WarehouseOptions struct {
	// BeginMaxElapsed bounds how long Begin retries a failing connection.
	BeginMaxElapsed time.Duration
	// BeginInitialInterval is the first retry delay; later ones grow
	// exponentially.
	BeginInitialInterval time.Duration

	Logger *logrus.Entry
}

func (o *WarehouseOptions) setDefaults() {
	if o.BeginMaxElapsed == 0 {
		o.BeginMaxElapsed = 2 * time.Minute
	}
	if o.BeginInitialInterval == 0 {
		o.BeginInitialInterval = 500 * time.Millisecond
	}
	if o.Logger == nil {
		o.Logger = logging.Nop()
	}
}

// Warehouse is the Postgres star schema.
type Warehouse struct {
	db   TxBeginner
	opts WarehouseOptions
}

func NewWarehouse(db TxBeginner, opts WarehouseOptions) *Warehouse {
	opts.setDefaults()
	return &Warehouse{db: db, opts: opts}
}

// Begin opens the outer cycle transaction, retrying with exponential backoff
// while the database is unreachable.
func (w *Warehouse) Begin(ctx context.Context) (star.Tx, error) {
	var tx pgx.Tx
	op := func() error {
		var err error
		tx, err = w.db.Begin(ctx)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.opts.BeginInitialInterval
	b.MaxElapsedTime = w.opts.BeginMaxElapsed
	notify := func(err error, next time.Duration) {
		w.opts.Logger.WithError(err).WithField("retry_in", next.String()).Warn("warehouse: begin failed, retrying")
	}
	if err := backoff.RetryNotify(op, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, errors.Wrap(err, "failed to begin cycle transaction"))
	}
	return &pgTx{tx: tx}, nil
}
