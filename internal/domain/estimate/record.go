package estimate

import (
	"math"
	"time"
)

// HistoricalRecord is a past final disbursement account or quotation, owned
// by the record store and read-only to this package.  Breakdown keys are an
// open taxonomy: unknown line-item names pass through aggregation unchanged.
type HistoricalRecord struct {
	ID         string             `json:"id"`
	Port       string             `json:"port"`
	GRT        float64            `json:"grt"`
	LOA        float64            `json:"loa"`
	Draft      *float64           `json:"draft,omitempty"`
	IsShifting bool               `json:"is_shifting"`
	VesselType string             `json:"vessel_type,omitempty"`
	Breakdown  map[string]float64 `json:"breakdown"`
	Total      float64            `json:"total"`
	Currency   string             `json:"currency,omitempty"`

	// SourceDocKey references the source document in object storage, used
	// only for narrative grounding, never for the numeric path.
	SourceDocKey string `json:"source_doc_key,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

// NormalizedPort returns the canonical form of the record's port name.
func (r *HistoricalRecord) NormalizedPort() string {
	return NormalizePort(r.Port)
}

// ConsistentTotal reports whether the stored total matches the sum of the
// breakdown within rounding tolerance.  Inconsistent records are logged and
// skipped by ingestion, never repaired here.
func (r *HistoricalRecord) ConsistentTotal() bool {
	var sum float64
	for _, amount := range r.Breakdown {
		sum += amount
	}
	return math.Abs(sum-r.Total) < 0.01*float64(len(r.Breakdown)+1)
}

// Spec reconstructs the vessel specification implied by the record's stored
// attributes, for feature-vector comparison in the fallback scan.
func (r *HistoricalRecord) Spec() VesselSpec {
	return VesselSpec{
		Port:       r.Port,
		GRT:        r.GRT,
		LOA:        r.LOA,
		Draft:      r.Draft,
		IsShifting: r.IsShifting,
		VesselType: r.VesselType,
	}
}

// NeighborRef is an unresolved retrieval hit: a record identifier with its
// distance from the query vector, as returned by the similarity index.
type NeighborRef struct {
	RecordID string  `json:"record_id"`
	Distance float64 `json:"distance"`
}

// NeighborMatch pairs a retrieval hit with its resolved record.  Matches are
// ephemeral, created per query, and ordered by ascending distance.  Record
// is nil when the store could not resolve the id; the aggregator treats that
// as reduced evidence, not an error.
type NeighborMatch struct {
	RecordID string
	Distance float64
	Record   *HistoricalRecord
}
