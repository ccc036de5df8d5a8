// Package repositories implements the historical record store on
// PostgreSQL.  Breakdowns are stored as JSONB so the line-item taxonomy
// stays open: unknown keys round-trip unchanged.
package repositories

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/harborintel/portcost/internal/domain/estimate"
	"github.com/harborintel/portcost/internal/infrastructure/monitoring/logging"
	"github.com/harborintel/portcost/pkg/errors"
)

// db is the pgxpool subset the repository uses; tests substitute a fake.
type db interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const recordColumns = `id, port, grt, loa, draft, is_shifting, vessel_type, breakdown, total, currency, source_doc_key, recorded_at`

// RecordRepository is the PostgreSQL-backed record store.
type RecordRepository struct {
	db           db
	queryTimeout time.Duration
	logger       logging.Logger
}

var _ estimate.RecordStore = (*RecordRepository)(nil)

// NewRecordRepository builds a repository over an established pool.
func NewRecordRepository(pool db, queryTimeout time.Duration, logger logging.Logger) *RecordRepository {
	if queryTimeout == 0 {
		queryTimeout = 5 * time.Second
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &RecordRepository{db: pool, queryTimeout: queryTimeout, logger: logger.Named("record_repo")}
}

// Resolve fetches the records for the given ids in one batched query.  Ids
// with no corresponding row are omitted from the result; only transport
// failures return an error.
func (r *RecordRepository) Resolve(ctx context.Context, ids []string) (map[string]*estimate.HistoricalRecord, error) {
	result := make(map[string]*estimate.HistoricalRecord, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx,
		`SELECT `+recordColumns+` FROM fda_records WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreUnavailable, "record batch query failed")
	}
	defer rows.Close()

	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStoreUnavailable, "record scan failed")
		}
		result[rec.ID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreUnavailable, "record batch read failed")
	}
	return result, nil
}

// Sample returns up to limit records, most recent first, for the fallback
// similarity snapshot.
func (r *RecordRepository) Sample(ctx context.Context, limit int) ([]*estimate.HistoricalRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx,
		`SELECT `+recordColumns+` FROM fda_records ORDER BY recorded_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreUnavailable, "record sample query failed")
	}
	defer rows.Close()

	var records []*estimate.HistoricalRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeStoreUnavailable, "record scan failed")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeStoreUnavailable, "record sample read failed")
	}
	return records, nil
}

// Save upserts one record, keyed by id.  This is the ingestion write path;
// the serving path only reads.
func (r *RecordRepository) Save(ctx context.Context, rec *estimate.HistoricalRecord) error {
	if rec == nil || rec.ID == "" {
		return errors.New(errors.ErrCodeValidation, "record id is required")
	}
	if !rec.ConsistentTotal() {
		return errors.New(errors.ErrCodeValidation, "record total does not match breakdown sum").
			WithDetail("id=" + rec.ID)
	}

	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	_, err := r.db.Exec(ctx, `
		INSERT INTO fda_records
			(id, port, grt, loa, draft, is_shifting, vessel_type, breakdown, total, currency, source_doc_key, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			port = EXCLUDED.port,
			grt = EXCLUDED.grt,
			loa = EXCLUDED.loa,
			draft = EXCLUDED.draft,
			is_shifting = EXCLUDED.is_shifting,
			vessel_type = EXCLUDED.vessel_type,
			breakdown = EXCLUDED.breakdown,
			total = EXCLUDED.total,
			currency = EXCLUDED.currency,
			source_doc_key = EXCLUDED.source_doc_key,
			recorded_at = EXCLUDED.recorded_at`,
		rec.ID, estimate.NormalizePort(rec.Port), rec.GRT, rec.LOA, rec.Draft, rec.IsShifting,
		rec.VesselType, rec.Breakdown, rec.Total, rec.Currency, rec.SourceDocKey, rec.Timestamp)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeStoreUnavailable, "record upsert failed")
	}
	return nil
}

// FindByID fetches a single record, for diagnostics and the CLI.
func (r *RecordRepository) FindByID(ctx context.Context, id string) (*estimate.HistoricalRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	row := r.db.QueryRow(ctx,
		`SELECT `+recordColumns+` FROM fda_records WHERE id = $1`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, errors.NotFound("record not found").WithDetail("id=" + id)
		}
		return nil, errors.Wrap(err, errors.ErrCodeStoreUnavailable, "record query failed")
	}
	return rec, nil
}

// scanRecord reads one row in recordColumns order.
func scanRecord(row pgx.Row) (*estimate.HistoricalRecord, error) {
	var (
		rec          estimate.HistoricalRecord
		draft        *float64
		vesselType   *string
		sourceDocKey *string
	)
	err := row.Scan(&rec.ID, &rec.Port, &rec.GRT, &rec.LOA, &draft, &rec.IsShifting,
		&vesselType, &rec.Breakdown, &rec.Total, &rec.Currency, &sourceDocKey, &rec.Timestamp)
	if err != nil {
		return nil, err
	}
	rec.Draft = draft
	if vesselType != nil {
		rec.VesselType = *vesselType
	}
	if sourceDocKey != nil {
		rec.SourceDocKey = *sourceDocKey
	}
	return &rec, nil
}
