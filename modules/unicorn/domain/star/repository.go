package star

import "context"

// Warehouse opens the outer transaction of a load cycle.
type Warehouse interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a warehouse transaction. Savepoint runs fn in a nested scope that is
// released when fn succeeds and rolled back alone when it fails; the
// enclosing transaction stays usable either way.
type Tx interface {
	Savepoint(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	UpsertDate(ctx context.Context, d DimDate) (int32, error)
	UpsertCompany(ctx context.Context, c DimCompany) (CompanyUpsert, error)
	UpsertFact(ctx context.Context, f FactSnapshot) (int64, error)

	// TryLock takes a transaction-scoped advisory lock without waiting.
	TryLock(ctx context.Context, key int64) (bool, error)

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
