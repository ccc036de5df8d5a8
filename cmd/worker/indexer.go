package main

import (
	"context"

	"github.com/harborintel/portcost/internal/domain/estimate"
	"github.com/harborintel/portcost/internal/infrastructure/messaging/kafka"
	"github.com/harborintel/portcost/internal/infrastructure/monitoring/logging"
)

// recordFinder is the store subset the indexer needs.
type recordFinder interface {
	FindByID(ctx context.Context, id string) (*estimate.HistoricalRecord, error)
	Sample(ctx context.Context, limit int) ([]*estimate.HistoricalRecord, error)
}

// vectorIndex is the write side of the similarity index.
type vectorIndex interface {
	Upsert(ctx context.Context, recordID, normalizedPort string, vector []float32) error
}

// Indexer keeps the vector index in step with the record store: ingestion
// events index single records as they land, and a periodic pass re-embeds
// the most recent ones to catch anything the event stream missed.
type Indexer struct {
	store    recordFinder
	embedder estimate.Embedder
	index    vectorIndex
	logger   logging.Logger
}

// NewIndexer builds an Indexer.
func NewIndexer(store recordFinder, embedder estimate.Embedder, index vectorIndex, logger logging.Logger) *Indexer {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Indexer{
		store:    store,
		embedder: embedder,
		index:    index,
		logger:   logger.Named("indexer"),
	}
}

// HandleIngested indexes the record named by an ingestion event.  Errors
// propagate so the consumer leaves the offset uncommitted and the event is
// redelivered.
func (ix *Indexer) HandleIngested(ctx context.Context, event kafka.RecordIngestedEvent) error {
	rec, err := ix.store.FindByID(ctx, event.RecordID)
	if err != nil {
		return err
	}
	return ix.indexRecord(ctx, rec)
}

// ReindexRecent re-embeds and upserts the most recent records.  Individual
// record failures are logged and skipped so one bad record cannot stall the
// reconciliation pass.
func (ix *Indexer) ReindexRecent(ctx context.Context, limit int) error {
	records, err := ix.store.Sample(ctx, limit)
	if err != nil {
		return err
	}

	indexed := 0
	for _, rec := range records {
		if err := ix.indexRecord(ctx, rec); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			ix.logger.Warn("reindex skipped record",
				logging.String("record_id", rec.ID),
				logging.Err(err))
			continue
		}
		indexed++
	}
	ix.logger.Info("reindex pass complete",
		logging.Int("indexed", indexed),
		logging.Int("total", len(records)))
	return nil
}

func (ix *Indexer) indexRecord(ctx context.Context, rec *estimate.HistoricalRecord) error {
	spec := rec.Spec()
	vector, err := ix.embedder.Embed(ctx, spec.EmbeddingText())
	if err != nil {
		return err
	}
	return ix.index.Upsert(ctx, rec.ID, rec.NormalizedPort(), vector)
}
