package services

import (
	"context"
	"errors"
	"time"

	"github.com/iota-uz/unicorn-warehouse/modules/unicorn/domain/snapshot"
	"github.com/iota-uz/unicorn-warehouse/modules/unicorn/infrastructure/source"
	"github.com/iota-uz/unicorn-warehouse/pkg/composables"
)

// ETL is one extract, transform and load pass over a snapshot.
type ETL interface {
	Extract(ctx context.Context) ([]snapshot.RawRow, error)
	Transform(ctx context.Context, rows []snapshot.RawRow, loadDate time.Time) ([]snapshot.Record, int)
	Load(ctx context.Context, loadDate time.Time, records []snapshot.Record) (LoadReport, error)
}

// Pipeline wires a snapshot source to the loader.
type Pipeline struct {
	source source.Source
	loader *Loader
}

func NewPipeline(src source.Source, loader *Loader) *Pipeline {
	return &Pipeline{source: src, loader: loader}
}

func (p *Pipeline) Extract(ctx context.Context) ([]snapshot.RawRow, error) {
	return p.source.Extract(ctx)
}

// Transform normalizes rows and drops the ones that cannot become records.
// It returns the kept records and how many rows were rejected.
func (p *Pipeline) Transform(ctx context.Context, rows []snapshot.RawRow, loadDate time.Time) ([]snapshot.Record, int) {
	logger := composables.UseLogger(ctx)
	records, rejects := snapshot.NormalizeAll(rows, loadDate)
	for _, err := range rejects {
		entry := logger.WithError(err)
		var rejectErr *snapshot.RejectError
		if errors.As(err, &rejectErr) {
			entry = entry.WithField("line", rejectErr.Line)
		}
		entry.Warn("pipeline: row rejected")
	}
	return records, len(rejects)
}

func (p *Pipeline) Load(ctx context.Context, loadDate time.Time, records []snapshot.Record) (LoadReport, error) {
	return p.loader.Load(ctx, loadDate, records)
}
