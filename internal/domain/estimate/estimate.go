package estimate

import (
	"math"
	"sort"
	"time"
)

// OtherChargesItem is the roll-up line item used by quotation mode for
// amounts outside the top items.
const OtherChargesItem = "other_charges"

// VesselSummary condenses the query vessel's attributes for inclusion on the
// estimate, so that a stored or cached result is self-describing.
type VesselSummary struct {
	Name       string   `json:"name,omitempty"`
	Type       string   `json:"type,omitempty"`
	GRT        float64  `json:"grt"`
	LOA        float64  `json:"loa"`
	Draft      *float64 `json:"draft,omitempty"`
	IsShifting bool     `json:"is_shifting"`
}

// SynthesizedEstimate is the calibrated cost estimate produced by the
// aggregator.  Invariant: Total equals the exact sum of Breakdown values
// (both post-rounding), and Confidence is bounded to [0,1].
type SynthesizedEstimate struct {
	Port     string        `json:"port"`
	Vessel   VesselSummary `json:"vessel"`
	Mode     EstimateMode  `json:"mode"`
	Currency string        `json:"currency"`

	Breakdown map[string]float64 `json:"breakdown"`
	Total     float64            `json:"total"`

	// Confidence summarizes retrieval quality and data coverage, in [0,1].
	Confidence float64 `json:"confidence"`

	// ContributingRecordIDs lists the historical records behind the numbers,
	// ordered by ascending distance.
	ContributingRecordIDs []string `json:"contributing_record_ids"`

	// LowCoverageItems names breakdown entries present in too few of the
	// contributing records to be individually trustworthy.  They are still
	// included in the breakdown and the total.
	LowCoverageItems []string `json:"low_coverage_items,omitempty"`

	// PortFallback is set when too few same-port matches existed and the
	// aggregation fell back to cross-port evidence.
	PortFallback bool `json:"port_fallback,omitempty"`

	// FeatureModel records the normalization scheme in effect, so cached
	// estimates from a retired scheme are identifiable.
	FeatureModel string `json:"feature_model"`

	// Narrative is the optional natural-language rendering.  When narrative
	// generation was requested but failed, NarrativeMissing is set and the
	// numeric result is returned unchanged.
	Narrative        string `json:"narrative,omitempty"`
	NarrativeMissing bool   `json:"narrative_missing,omitempty"`

	GeneratedAt time.Time `json:"generated_at"`
}

// ItemsByAmount returns the breakdown's line-item names ordered by
// descending amount, ties broken alphabetically for determinism.
func (e *SynthesizedEstimate) ItemsByAmount() []string {
	items := make([]string, 0, len(e.Breakdown))
	for name := range e.Breakdown {
		items = append(items, name)
	}
	sort.Slice(items, func(i, j int) bool {
		ai, aj := e.Breakdown[items[i]], e.Breakdown[items[j]]
		if ai != aj {
			return ai > aj
		}
		return items[i] < items[j]
	})
	return items
}

// CheckTotal reports whether the total invariant holds.
func (e *SynthesizedEstimate) CheckTotal() bool {
	var sum float64
	for _, amount := range e.Breakdown {
		sum += amount
	}
	// Both sides are already rounded to the minor unit; compare at half a
	// minor unit to absorb float accumulation noise.
	return math.Abs(roundMinorUnit(sum)-e.Total) < 0.005
}
