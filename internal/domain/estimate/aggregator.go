package estimate

import (
	"math"
	"sort"
	"time"

	"github.com/harborintel/portcost/pkg/errors"
)

// AggregatorConfig holds the tunable constants of the aggregation algorithm.
// All of them are deployment-level settings, never derived per request.
type AggregatorConfig struct {
	// TonnageExponent is the sub-linear exponent applied to the tonnage
	// ratio when scaling historical amounts to the query vessel's size.
	// Port costs grow slower than vessel size; values in (0,1).
	TonnageExponent float64

	// CoverageThreshold is the minimum fraction of contributing records a
	// line item must appear in to escape the low-coverage flag.
	CoverageThreshold float64

	// Currency labels the synthesized amounts.  Amounts are rounded to two
	// minor-unit decimals regardless of currency.
	Currency string

	// QuotationTopItems is how many line items quotation mode keeps before
	// rolling the remainder into OtherChargesItem.
	QuotationTopItems int
}

// DefaultAggregatorConfig returns the standard production constants.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		TonnageExponent:   0.62,
		CoverageThreshold: 0.2,
		Currency:          "THB",
		QuotationTopItems: 5,
	}
}

// Aggregator synthesizes a calibrated estimate from weighted neighbor
// matches.  It is pure: no I/O, no shared state, deterministic for fixed
// inputs.
type Aggregator struct {
	cfg AggregatorConfig
}

// NewAggregator builds an Aggregator, filling zero config fields with the
// production defaults.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	def := DefaultAggregatorConfig()
	if cfg.TonnageExponent == 0 {
		cfg.TonnageExponent = def.TonnageExponent
	}
	if cfg.CoverageThreshold == 0 {
		cfg.CoverageThreshold = def.CoverageThreshold
	}
	if cfg.Currency == "" {
		cfg.Currency = def.Currency
	}
	if cfg.QuotationTopItems == 0 {
		cfg.QuotationTopItems = def.QuotationTopItems
	}
	return &Aggregator{cfg: cfg}
}

// weightedAmount is one record's scaled contribution to a line item.
type weightedAmount struct {
	amount float64
	weight float64
}

// Aggregate runs the core algorithm: filter matches to comparable evidence,
// weight them by similarity, scale amounts to the query vessel's tonnage,
// take the weighted median per line item, and attach a bounded confidence
// signal.  Matches must be ordered by ascending distance.  Zero usable
// matches fail with ErrCodeInsufficientData: callers handle "no estimate
// available" explicitly rather than receiving a zero-confidence guess.
func (a *Aggregator) Aggregate(spec VesselSpec, matches []NeighborMatch, mode EstimateMode) (*SynthesizedEstimate, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	usable := usableMatches(matches)
	if len(usable) == 0 {
		return nil, errors.InsufficientData("no usable historical matches").
			WithDetail("port=" + spec.NormalizedPort())
	}

	// Step 1: prefer same-port evidence; with fewer than 2 same-port
	// matches, fall back to the full set and penalize confidence.
	queryPort := spec.NormalizedPort()
	samePort := filterMatches(usable, func(m NeighborMatch) bool {
		return m.Record.NormalizedPort() == queryPort
	})
	portFallback := false
	selected := samePort
	if len(samePort) < 2 {
		selected = usable
		portFallback = true
	}

	// Shifting bias: a shifting call is only comparable to shifting
	// history.  Restrict to shifting-tagged records when at least 2 exist;
	// otherwise keep the set and reduce confidence.
	shiftingPenalty := false
	if spec.IsShifting {
		shifting := filterMatches(selected, func(m NeighborMatch) bool {
			return m.Record.IsShifting
		})
		if len(shifting) >= 2 {
			selected = shifting
		} else {
			shiftingPenalty = true
		}
	}

	// Steps 2–3: similarity weights and tonnage scaling.
	perItem := make(map[string][]weightedAmount)
	itemRecordCount := make(map[string]int)
	var weightSum float64
	contributing := make([]string, 0, len(selected))
	for _, m := range selected {
		w := 1.0 / (1.0 + m.Distance)
		weightSum += w
		contributing = append(contributing, m.RecordID)

		scale := 1.0
		if m.Record.GRT > 0 {
			scale = math.Pow(spec.GRT/m.Record.GRT, a.cfg.TonnageExponent)
		}
		for item, amount := range m.Record.Breakdown {
			perItem[item] = append(perItem[item], weightedAmount{amount: amount * scale, weight: w})
			itemRecordCount[item]++
		}
	}

	// Steps 4–5: weighted median per item, minor-unit rounding, exact-sum
	// total.
	breakdown := make(map[string]float64, len(perItem))
	var lowCoverage []string
	covered := 0
	for item, samples := range perItem {
		breakdown[item] = roundMinorUnit(weightedMedian(samples))
		if float64(itemRecordCount[item]) >= a.cfg.CoverageThreshold*float64(len(selected)) {
			covered++
		} else {
			lowCoverage = append(lowCoverage, item)
		}
	}
	sort.Strings(lowCoverage)

	coverageFraction := 1.0
	if len(perItem) > 0 {
		coverageFraction = float64(covered) / float64(len(perItem))
	}

	est := &SynthesizedEstimate{
		Port:                  queryPort,
		Vessel:                spec.Summary(),
		Mode:                  mode,
		Currency:              a.cfg.Currency,
		Breakdown:             breakdown,
		ContributingRecordIDs: contributing,
		LowCoverageItems:      lowCoverage,
		PortFallback:          portFallback,
		FeatureModel:          FeatureModelVersion,
		GeneratedAt:           time.Now().UTC(),
	}

	if mode == ModeQuotation {
		a.rollUp(est)
	}
	est.Total = roundMinorUnit(sumAmounts(est.Breakdown))

	// Step 6: confidence, monotone in each factor and bounded to [0,1].
	meanWeight := weightSum / float64(len(selected))
	est.Confidence = confidence(len(selected), meanWeight, coverageFraction, portFallback, shiftingPenalty)

	return est, nil
}

// rollUp converts a full breakdown into quotation shape: the top items by
// amount survive, everything else collapses into OtherChargesItem.
func (a *Aggregator) rollUp(est *SynthesizedEstimate) {
	if len(est.Breakdown) <= a.cfg.QuotationTopItems {
		return
	}
	keep := est.ItemsByAmount()[:a.cfg.QuotationTopItems]
	kept := make(map[string]bool, len(keep))
	for _, item := range keep {
		kept[item] = true
	}

	rolled := make(map[string]float64, a.cfg.QuotationTopItems+1)
	var other float64
	for item, amount := range est.Breakdown {
		if kept[item] {
			rolled[item] = amount
		} else {
			other += amount
		}
	}
	if other != 0 {
		rolled[OtherChargesItem] = roundMinorUnit(other)
	}
	est.Breakdown = rolled

	// Low-coverage flags for rolled items no longer refer to visible
	// entries; keep only the survivors' flags.
	var flags []string
	for _, item := range est.LowCoverageItems {
		if kept[item] {
			flags = append(flags, item)
		}
	}
	est.LowCoverageItems = flags
}

// usableMatches drops unresolved hits and records with no breakdown data,
// preserving order.
func usableMatches(matches []NeighborMatch) []NeighborMatch {
	out := make([]NeighborMatch, 0, len(matches))
	for _, m := range matches {
		if m.Record != nil && len(m.Record.Breakdown) > 0 {
			out = append(out, m)
		}
	}
	return out
}

func filterMatches(matches []NeighborMatch, keep func(NeighborMatch) bool) []NeighborMatch {
	out := make([]NeighborMatch, 0, len(matches))
	for _, m := range matches {
		if keep(m) {
			out = append(out, m)
		}
	}
	return out
}

// weightedMedian returns the lower weighted median: the smallest amount
// whose cumulative weight reaches half the total.  Chosen over the mean for
// outlier resistance against anomalous historical entries.
func weightedMedian(samples []weightedAmount) float64 {
	sorted := make([]weightedAmount, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].amount < sorted[j].amount })

	var total float64
	for _, s := range sorted {
		total += s.weight
	}
	half := total / 2
	var cum float64
	for _, s := range sorted {
		cum += s.weight
		if cum >= half {
			return s.amount
		}
	}
	return sorted[len(sorted)-1].amount
}

// confidence combines match count, mean similarity weight, and coverage
// fraction into a bounded score, then applies the fallback penalties.  Each
// factor is non-decreasing in its input; penalties only shrink the score.
func confidence(matchCount int, meanWeight, coverageFraction float64, portFallback, shiftingPenalty bool) float64 {
	c := float64(matchCount) / (float64(matchCount) + 3.0)
	c *= 0.5 + 0.5*clamp01(meanWeight)
	c *= 0.5 + 0.5*clamp01(coverageFraction)
	if portFallback {
		c *= 0.6
	}
	if shiftingPenalty {
		c *= 0.85
	}
	return clamp01(c)
}

func sumAmounts(breakdown map[string]float64) float64 {
	var sum float64
	for _, amount := range breakdown {
		sum += amount
	}
	return sum
}

// roundMinorUnit rounds half-up to two minor-unit decimals.
func roundMinorUnit(x float64) float64 {
	return math.Floor(x*100+0.5) / 100
}
