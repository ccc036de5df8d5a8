package estimate

import "context"

// QueryFilter narrows a similarity-index query before ranking, when the
// underlying index supports metadata filtering.  A zero filter matches all
// records.
type QueryFilter struct {
	// Port, when set, restricts candidates to records at this normalized
	// port.
	Port string
}

// SimilarityIndex is the read-side contract of the external vector search
// service.  Implementations must return candidates in ascending distance
// order and must report unavailability as ErrCodeIndexUnavailable rather
// than an empty result: an empty true result and a failed call are distinct.
type SimilarityIndex interface {
	Query(ctx context.Context, vector []float32, k int, filter QueryFilter) ([]NeighborRef, error)
}

// RecordStore resolves retrieval hits to full historical records.
type RecordStore interface {
	// Resolve returns the records for the given ids in one batched call.
	// Ids that cannot be resolved are omitted from the result; only
	// transport failures return an error (ErrCodeStoreUnavailable).
	Resolve(ctx context.Context, ids []string) (map[string]*HistoricalRecord, error)

	// Sample returns up to limit recent records for the fallback similarity
	// snapshot, most recent first.
	Sample(ctx context.Context, limit int) ([]*HistoricalRecord, error)
}

// Embedder is the contract of the external embedding provider.  A failure or
// a degenerate (zero or short) vector is reported as
// ErrCodeEmbeddingUnavailable; zero vectors are never substituted silently.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// NarrativeGenerator renders a synthesized estimate as natural-language
// text.  It receives the structured estimate as grounding and is never
// permitted to alter the numbers.
type NarrativeGenerator interface {
	Generate(ctx context.Context, est *SynthesizedEstimate, supportingText string) (string, error)
}
