// Package quotation orchestrates a single estimate request: normalize the
// vessel specification, embed it, retrieve similar historical records,
// aggregate their cost breakdowns, and optionally narrate the result.
package quotation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/harborintel/portcost/internal/domain/estimate"
	"github.com/harborintel/portcost/internal/infrastructure/monitoring/logging"
	"github.com/harborintel/portcost/internal/infrastructure/monitoring/prometheus"
	"github.com/harborintel/portcost/pkg/errors"
)

// Pipeline states.  Intermediate states are logged at debug level as a
// request advances; the terminal state labels request metrics.  failed is
// reachable from any step.
const (
	stateReceived   = "received"
	stateNormalized = "normalized"
	stateEmbedded   = "embedded"
	stateRetrieved  = "retrieved"
	stateAggregated = "aggregated"
	stateExplained  = "explained"
	stateDone       = "done"
	stateFailed     = "failed"
)

// Config holds engine tunables.
type Config struct {
	// TopK is how many neighbors to request from the similarity index.
	TopK int
	// EmbedRetries is how many extra attempts a failed embedding call
	// gets before the engine falls back to feature-vector similarity.
	EmbedRetries int
	// IndexRetries is how many extra attempts a failed index query gets
	// before the request fails.
	IndexRetries int
	// RetryBackoff is the pause between retry attempts.
	RetryBackoff time.Duration
	// StoreTimeout bounds the batched record resolution call.
	StoreTimeout time.Duration
	// EmbedModelVersion participates in the cache fingerprint so that a
	// model upgrade invalidates old entries.
	EmbedModelVersion string
	// NarrativeEnabled turns on the post-hoc narrative step.
	NarrativeEnabled bool
}

func (c *Config) applyDefaults() {
	if c.TopK < 1 {
		c.TopK = 10
	}
	if c.EmbedRetries < 0 {
		c.EmbedRetries = 0
	}
	if c.IndexRetries < 0 {
		c.IndexRetries = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 200 * time.Millisecond
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 5 * time.Second
	}
}

// resultCache is the estimate cache seam.  The redis-backed implementation
// guarantees at most one computation per fingerprint in flight.
type resultCache interface {
	GetOrCompute(ctx context.Context, fingerprint string, compute func(ctx context.Context) (*estimate.SynthesizedEstimate, error)) (*estimate.SynthesizedEstimate, bool, error)
}

// Engine runs the estimate pipeline.  All collaborators are injected;
// narrator, sample, cache and metrics may be nil, which disables the
// corresponding step.
type Engine struct {
	cfg        Config
	embedder   estimate.Embedder
	index      estimate.SimilarityIndex
	store      estimate.RecordStore
	aggregator *estimate.Aggregator
	narrator   *Narrator
	sample     *FallbackSample
	cache      resultCache
	metrics    *prometheus.AppMetrics
	logger     logging.Logger
}

// NewEngine builds an Engine.  embedder, index, store and aggregator are
// required.
func NewEngine(
	cfg Config,
	embedder estimate.Embedder,
	index estimate.SimilarityIndex,
	store estimate.RecordStore,
	aggregator *estimate.Aggregator,
	narrator *Narrator,
	sample *FallbackSample,
	cache resultCache,
	metrics *prometheus.AppMetrics,
	logger logging.Logger,
) (*Engine, error) {
	if embedder == nil || index == nil || store == nil || aggregator == nil {
		return nil, errors.New(errors.ErrCodeValidation, "engine: embedder, index, store and aggregator are required")
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	cfg.applyDefaults()

	return &Engine{
		cfg:        cfg,
		embedder:   embedder,
		index:      index,
		store:      store,
		aggregator: aggregator,
		narrator:   narrator,
		sample:     sample,
		cache:      cache,
		metrics:    metrics,
		logger:     logger.Named("engine"),
	}, nil
}

// Estimate runs the full pipeline for one specification.  The result is
// either a complete SynthesizedEstimate or a typed error; a partial
// estimate is never returned.  Identical specifications share one
// computation through the result cache.
func (e *Engine) Estimate(ctx context.Context, spec estimate.VesselSpec, mode estimate.EstimateMode) (*estimate.SynthesizedEstimate, error) {
	start := time.Now()

	if err := spec.Validate(); err != nil {
		e.observeTerminal(mode, stateFailed, start)
		return nil, err
	}

	fingerprint := spec.Fingerprint(mode, estimate.FeatureModelVersion, e.cfg.EmbedModelVersion)

	if e.cache == nil {
		est, err := e.compute(ctx, spec, mode)
		e.observeResult(mode, est, err, start)
		return est, err
	}

	est, cached, err := e.cache.GetOrCompute(ctx, fingerprint, func(ctx context.Context) (*estimate.SynthesizedEstimate, error) {
		return e.compute(ctx, spec, mode)
	})
	if e.metrics != nil {
		if cached {
			e.metrics.CacheHitsTotal.WithLabelValues("estimate").Inc()
		} else {
			e.metrics.CacheMissesTotal.WithLabelValues("estimate").Inc()
		}
	}
	e.observeResult(mode, est, err, start)
	return est, err
}

// compute is the uncached pipeline body.
func (e *Engine) compute(ctx context.Context, spec estimate.VesselSpec, mode estimate.EstimateMode) (*estimate.SynthesizedEstimate, error) {
	logger := e.logger.With(
		logging.String("request_id", uuid.NewString()),
		logging.String("port", spec.NormalizedPort()),
		logging.String("mode", string(mode)),
	)
	advance(logger, stateReceived)

	matches, err := e.retrieve(ctx, spec, logger)
	if err != nil {
		return nil, err
	}

	est, err := e.aggregator.Aggregate(spec, matches, mode)
	if err != nil {
		// InsufficientDataError goes to the caller verbatim; more
		// retries will not produce more history.
		return nil, err
	}
	advance(logger, stateAggregated)
	logger.Info("estimate aggregated",
		logging.Int("matches", len(est.ContributingRecordIDs)),
		logging.Float64("total", est.Total),
		logging.Float64("confidence", est.Confidence))

	e.explain(ctx, est, matches, logger)
	return est, nil
}

// retrieve turns the specification into ranked, resolved neighbor matches.
// The embedding path is primary; on exhaustion it degrades to an in-process
// scan over the fallback sample.
func (e *Engine) retrieve(ctx context.Context, spec estimate.VesselSpec, logger logging.Logger) ([]estimate.NeighborMatch, error) {
	text := spec.EmbeddingText()
	advance(logger, stateNormalized)

	vector, err := e.embedWithRetry(ctx, text)
	if err != nil {
		logger.Warn("embedding unavailable, falling back to feature-vector similarity", logging.Err(err))
		if e.metrics != nil {
			e.metrics.EmbeddingFallbacksTotal.WithLabelValues().Inc()
		}
		matches, err := e.fallbackMatches(spec)
		if err != nil {
			return nil, err
		}
		advance(logger, stateRetrieved)
		return matches, nil
	}
	advance(logger, stateEmbedded)

	refs, err := e.queryWithRetry(ctx, vector, spec.NormalizedPort())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeUpstreamUnavailable, "similarity retrieval failed after retries")
	}
	matches, err := e.resolveRefs(ctx, refs)
	if err != nil {
		return nil, err
	}
	advance(logger, stateRetrieved)
	return matches, nil
}

func (e *Engine) embedWithRetry(ctx context.Context, text string) ([]float32, error) {
	var lastErr error
	for attempt := 0; attempt <= e.cfg.EmbedRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, e.cfg.RetryBackoff); err != nil {
				return nil, err
			}
		}
		vector, err := e.embedder.Embed(ctx, text)
		if err == nil {
			return vector, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// queryWithRetry asks the index for same-port neighbors first and widens to
// all ports only when that yields too little same-port evidence for the
// aggregator to work with.
func (e *Engine) queryWithRetry(ctx context.Context, vector []float32, port string) ([]estimate.NeighborRef, error) {
	refs, err := e.queryOnce(ctx, vector, estimate.QueryFilter{Port: port})
	if err != nil {
		return nil, err
	}
	if len(refs) >= 2 {
		return refs, nil
	}

	all, err := e.queryOnce(ctx, vector, estimate.QueryFilter{})
	if err != nil {
		return nil, err
	}
	if len(all) > len(refs) {
		return all, nil
	}
	return refs, nil
}

func (e *Engine) queryOnce(ctx context.Context, vector []float32, filter estimate.QueryFilter) ([]estimate.NeighborRef, error) {
	var lastErr error
	for attempt := 0; attempt <= e.cfg.IndexRetries; attempt++ {
		if attempt > 0 {
			if err := sleepCtx(ctx, e.cfg.RetryBackoff); err != nil {
				return nil, err
			}
		}
		refs, err := e.index.Query(ctx, vector, e.cfg.TopK, filter)
		if err == nil {
			return refs, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// resolveRefs batch-resolves neighbor ids to full records.  Unresolvable
// ids stay in the match list with a nil record; the aggregator treats them
// as reduced evidence.
func (e *Engine) resolveRefs(ctx context.Context, refs []estimate.NeighborRef) ([]estimate.NeighborMatch, error) {
	if len(refs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(refs))
	for i, ref := range refs {
		ids[i] = ref.RecordID
	}

	resolveCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()

	records, err := e.store.Resolve(resolveCtx, ids)
	if err != nil {
		// One more attempt; the store is load-bearing for the primary
		// path.
		if err := sleepCtx(ctx, e.cfg.RetryBackoff); err != nil {
			return nil, err
		}
		retryCtx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
		defer cancel()
		records, err = e.store.Resolve(retryCtx, ids)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeUpstreamUnavailable, "record resolution failed after retries")
		}
	}

	matches := make([]estimate.NeighborMatch, len(refs))
	for i, ref := range refs {
		matches[i] = estimate.NeighborMatch{
			RecordID: ref.RecordID,
			Distance: ref.Distance,
			Record:   records[ref.RecordID],
		}
	}
	return matches, nil
}

// fallbackMatches ranks against the in-process feature-vector sample.  An
// empty or missing sample exhausts the fallback.
func (e *Engine) fallbackMatches(spec estimate.VesselSpec) ([]estimate.NeighborMatch, error) {
	if e.sample == nil || e.sample.Size() == 0 {
		return nil, errors.New(errors.ErrCodeNoSimilarityAvailable,
			"embedding unavailable and no fallback sample loaded")
	}
	vector, err := estimate.Normalize(spec)
	if err != nil {
		return nil, err
	}
	return e.sample.NearestNeighbors(vector, e.cfg.TopK), nil
}

// explain runs the optional narrative step.  It never fails the request;
// a generation failure only sets the missing-narrative flag.
func (e *Engine) explain(ctx context.Context, est *estimate.SynthesizedEstimate, matches []estimate.NeighborMatch, logger logging.Logger) {
	if !e.cfg.NarrativeEnabled || e.narrator == nil {
		return
	}

	narrative, err := e.narrator.Narrate(ctx, est, matches)
	if err != nil {
		est.NarrativeMissing = true
		if e.metrics != nil {
			e.metrics.NarrativeFailuresTotal.WithLabelValues().Inc()
		}
		logger.Warn("narrative generation failed", logging.Err(err))
		return
	}
	est.Narrative = narrative
}

func (e *Engine) observeResult(mode estimate.EstimateMode, est *estimate.SynthesizedEstimate, err error, start time.Time) {
	if e.metrics == nil {
		return
	}
	if err != nil {
		e.observeTerminal(mode, stateFailed, start)
		return
	}
	terminal := stateDone
	if est.Narrative != "" {
		terminal = stateExplained
	}
	e.observeTerminal(mode, terminal, start)
	e.metrics.EstimateNeighborCount.WithLabelValues(string(mode)).Observe(float64(len(est.ContributingRecordIDs)))
	e.metrics.EstimateConfidence.WithLabelValues(string(mode)).Observe(est.Confidence)
}

func (e *Engine) observeTerminal(mode estimate.EstimateMode, state string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.EstimateRequestsTotal.WithLabelValues(string(mode), state).Inc()
	e.metrics.EstimateDuration.WithLabelValues(string(mode)).Observe(time.Since(start).Seconds())
}

// advance records a pipeline state transition on the request log.
func advance(logger logging.Logger, state string) {
	logger.Debug("pipeline advanced", logging.String("state", state))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
