package prometheus

// AppMetrics holds all application metrics for the estimation platform.
type AppMetrics struct {
	// HTTP layer
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec

	// Quotation engine
	EstimateRequestsTotal   CounterVec   // labels: mode, state
	EstimateDuration        HistogramVec // labels: mode
	EstimateNeighborCount   HistogramVec // labels: mode
	EstimateConfidence      HistogramVec // labels: mode
	EmbeddingFallbacksTotal CounterVec
	NarrativeFailuresTotal  CounterVec

	// Cache
	CacheHitsTotal   CounterVec // labels: cache
	CacheMissesTotal CounterVec // labels: cache

	// Fallback sample
	SampleSize        GaugeVec // labels: source
	SampleRefreshAge  GaugeVec
	SampleRefreshTotal CounterVec // labels: trigger

	// Upstreams
	UpstreamRequestDuration HistogramVec // labels: upstream
	UpstreamErrorsTotal     CounterVec   // labels: upstream, code
}

// Histogram bucket defaults tuned for this workload.
var (
	DefaultHTTPDurationBuckets     = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}
	DefaultEstimateDurationBuckets = []float64{.05, .1, .25, .5, 1, 2, 5, 10, 30}
	DefaultNeighborCountBuckets    = []float64{0, 1, 2, 3, 5, 8, 13, 21, 34}
	DefaultConfidenceBuckets       = []float64{.1, .2, .3, .4, .5, .6, .7, .8, .9, 1}
	DefaultUpstreamDurationBuckets = []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 15, 60}
)

// NewAppMetrics registers all platform metrics on the collector and returns
// the populated AppMetrics struct.  Safe to call more than once on the same
// collector; registration is idempotent per metric name.
func NewAppMetrics(c MetricsCollector) *AppMetrics {
	return &AppMetrics{
		HTTPRequestsTotal: c.RegisterCounter(
			"http_requests_total", "Total HTTP requests by method, path and status.",
			"method", "path", "status"),
		HTTPRequestDuration: c.RegisterHistogram(
			"http_request_duration_seconds", "HTTP request latency.",
			DefaultHTTPDurationBuckets, "method", "path"),

		EstimateRequestsTotal: c.RegisterCounter(
			"estimate_requests_total", "Estimate requests by mode and terminal state.",
			"mode", "state"),
		EstimateDuration: c.RegisterHistogram(
			"estimate_duration_seconds", "End-to-end estimate latency.",
			DefaultEstimateDurationBuckets, "mode"),
		EstimateNeighborCount: c.RegisterHistogram(
			"estimate_neighbor_count", "Usable neighbor matches per estimate.",
			DefaultNeighborCountBuckets, "mode"),
		EstimateConfidence: c.RegisterHistogram(
			"estimate_confidence", "Confidence of synthesized estimates.",
			DefaultConfidenceBuckets, "mode"),
		EmbeddingFallbacksTotal: c.RegisterCounter(
			"embedding_fallbacks_total", "Requests served via the feature-vector fallback scan."),
		NarrativeFailuresTotal: c.RegisterCounter(
			"narrative_failures_total", "Narrative generations that failed and were degraded."),

		CacheHitsTotal: c.RegisterCounter(
			"cache_hits_total", "Cache hits by cache name.", "cache"),
		CacheMissesTotal: c.RegisterCounter(
			"cache_misses_total", "Cache misses by cache name.", "cache"),

		SampleSize: c.RegisterGauge(
			"sample_size", "Feature-vector fallback sample size.", "source"),
		SampleRefreshAge: c.RegisterGauge(
			"sample_refresh_age_seconds", "Seconds since the fallback sample was last swapped."),
		SampleRefreshTotal: c.RegisterCounter(
			"sample_refresh_total", "Fallback sample refreshes by trigger.", "trigger"),

		UpstreamRequestDuration: c.RegisterHistogram(
			"upstream_request_duration_seconds", "Latency of upstream calls.",
			DefaultUpstreamDurationBuckets, "upstream"),
		UpstreamErrorsTotal: c.RegisterCounter(
			"upstream_errors_total", "Upstream call failures by service and code.",
			"upstream", "code"),
	}
}
