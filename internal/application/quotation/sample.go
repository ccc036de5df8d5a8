package quotation

import (
	"context"
	"sort"
	"sync/atomic"
	"time"

	"github.com/harborintel/portcost/internal/domain/estimate"
	"github.com/harborintel/portcost/internal/infrastructure/monitoring/logging"
	"github.com/harborintel/portcost/internal/infrastructure/monitoring/prometheus"
)

// sampleEntry pairs a historical record with its precomputed feature
// vector so fallback scans never normalize twice.
type sampleEntry struct {
	record *estimate.HistoricalRecord
	vector estimate.FeatureVector
}

// sampleSnapshot is an immutable view of the fallback sample.  Refresh
// builds a new snapshot and swaps the pointer; in-flight readers keep the
// one they started with.
type sampleSnapshot struct {
	entries     []sampleEntry
	refreshedAt time.Time
}

// FallbackSample holds a cached sample of recent historical records with
// precomputed feature vectors.  When the embedding provider is down, the
// engine ranks against this sample with an in-process scan instead of the
// vector index.
type FallbackSample struct {
	store   estimate.RecordStore
	limit   int
	current atomic.Pointer[sampleSnapshot]
	metrics *prometheus.AppMetrics
	logger  logging.Logger
}

// NewFallbackSample builds an empty sample.  Call Refresh (or Run) to
// populate it.
func NewFallbackSample(store estimate.RecordStore, limit int, metrics *prometheus.AppMetrics, logger logging.Logger) *FallbackSample {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &FallbackSample{
		store:   store,
		limit:   limit,
		metrics: metrics,
		logger:  logger.Named("fallback_sample"),
	}
}

// Refresh rebuilds the snapshot from the record store and swaps it in.
// Records whose attributes cannot be normalized are skipped rather than
// failing the refresh.  The previous snapshot stays in place on error.
func (s *FallbackSample) Refresh(ctx context.Context, trigger string) error {
	records, err := s.store.Sample(ctx, s.limit)
	if err != nil {
		s.logger.Warn("fallback sample refresh failed",
			logging.String("trigger", trigger),
			logging.Err(err))
		return err
	}

	entries := make([]sampleEntry, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		vec, err := estimate.Normalize(rec.Spec())
		if err != nil {
			s.logger.Debug("skipping unnormalizable record",
				logging.String("record_id", rec.ID),
				logging.Err(err))
			continue
		}
		entries = append(entries, sampleEntry{record: rec, vector: vec})
	}

	snap := &sampleSnapshot{entries: entries, refreshedAt: time.Now().UTC()}
	s.current.Store(snap)

	if s.metrics != nil {
		s.metrics.SampleSize.WithLabelValues("store").Set(float64(len(entries)))
		s.metrics.SampleRefreshTotal.WithLabelValues(trigger).Inc()
		s.metrics.SampleRefreshAge.WithLabelValues().Set(0)
	}
	s.logger.Info("fallback sample refreshed",
		logging.String("trigger", trigger),
		logging.Int("records", len(entries)))
	return nil
}

// Run refreshes on a fixed interval until ctx is canceled.  The initial
// refresh happens immediately.
func (s *FallbackSample) Run(ctx context.Context, interval time.Duration) error {
	if err := s.Refresh(ctx, "startup"); err != nil {
		s.logger.Warn("initial sample refresh failed, serving empty sample until next tick", logging.Err(err))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			_ = s.Refresh(ctx, "periodic")
		}
	}
}

// Size reports how many records the current snapshot holds.
func (s *FallbackSample) Size() int {
	snap := s.current.Load()
	if snap == nil {
		return 0
	}
	return len(snap.entries)
}

// RefreshedAt reports when the current snapshot was built, zero if never.
func (s *FallbackSample) RefreshedAt() time.Time {
	snap := s.current.Load()
	if snap == nil {
		return time.Time{}
	}
	return snap.refreshedAt
}

// NearestNeighbors scans the snapshot and returns the k closest records by
// feature-vector distance, ascending, with records attached.  An empty
// snapshot returns nil.
func (s *FallbackSample) NearestNeighbors(vector estimate.FeatureVector, k int) []estimate.NeighborMatch {
	snap := s.current.Load()
	if snap == nil || len(snap.entries) == 0 || k < 1 {
		return nil
	}

	matches := make([]estimate.NeighborMatch, 0, len(snap.entries))
	for _, e := range snap.entries {
		d, err := vector.DistanceTo(e.vector)
		if err != nil {
			continue
		}
		matches = append(matches, estimate.NeighborMatch{
			RecordID: e.record.ID,
			Distance: d,
			Record:   e.record,
		})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Distance < matches[j].Distance })
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}
