package estimate

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborintel/portcost/pkg/errors"
)

// newMatch builds a resolved neighbor match at the given distance.
func newMatch(id, port string, grt float64, shifting bool, breakdown map[string]float64, distance float64) NeighborMatch {
	var total float64
	for _, v := range breakdown {
		total += v
	}
	return NeighborMatch{
		RecordID: id,
		Distance: distance,
		Record: &HistoricalRecord{
			ID:         id,
			Port:       port,
			GRT:        grt,
			LOA:        110,
			IsShifting: shifting,
			Breakdown:  breakdown,
			Total:      total,
			Timestamp:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		},
	}
}

func TestAggregate_WeightedMedianScenario(t *testing.T) {
	// Three same-port shifting matches at similar tonnage with tug hire
	// 90000 / 95000 / 100000 must synthesize the median, 95000.
	spec := validSpec()
	matches := []NeighborMatch{
		newMatch("r1", "Map Ta Phut", 4626, true, map[string]float64{"tug_hire": 90000}, 0.10),
		newMatch("r2", "Map Ta Phut", 4626, true, map[string]float64{"tug_hire": 95000}, 0.12),
		newMatch("r3", "Map Ta Phut", 4626, true, map[string]float64{"tug_hire": 100000}, 0.14),
	}

	est, err := NewAggregator(AggregatorConfig{}).Aggregate(spec, matches, ModeFDA)
	require.NoError(t, err)

	assert.InDelta(t, 95000, est.Breakdown["tug_hire"], 0.01)
	assert.Equal(t, "map ta phut", est.Port)
	assert.Equal(t, []string{"r1", "r2", "r3"}, est.ContributingRecordIDs)
	assert.False(t, est.PortFallback)
	assert.True(t, est.CheckTotal())
}

func TestAggregate_OutlierResistance(t *testing.T) {
	// One wildly anomalous record among five must not drag the line item
	// the way a mean would.
	spec := validSpec()
	spec.IsShifting = false

	amounts := []float64{90000, 92000, 94000, 96000, 5000000}
	matches := make([]NeighborMatch, len(amounts))
	for i, a := range amounts {
		matches[i] = newMatch(fmt.Sprintf("r%d", i), "Map Ta Phut", 4626, false,
			map[string]float64{"pilotage": a}, 0.1)
	}

	est, err := NewAggregator(AggregatorConfig{}).Aggregate(spec, matches, ModeFDA)
	require.NoError(t, err)

	got := est.Breakdown["pilotage"]
	var mean float64
	for _, a := range amounts {
		mean += a
	}
	mean /= float64(len(amounts))

	assert.InDelta(t, 94000, got, 0.01, "weighted median picks the central value")
	assert.Less(t, math.Abs(got-94000), math.Abs(mean-94000))
}

func TestAggregate_TotalEqualsBreakdownSum(t *testing.T) {
	spec := validSpec()
	matches := []NeighborMatch{
		newMatch("r1", "Map Ta Phut", 4626, true, map[string]float64{
			"tug_hire": 90000.333, "pilotage": 42000.111, "clearance": 8000.777,
		}, 0.2),
		newMatch("r2", "Map Ta Phut", 4800, true, map[string]float64{
			"tug_hire": 95000.5, "pilotage": 41000.25,
		}, 0.3),
	}

	est, err := NewAggregator(AggregatorConfig{}).Aggregate(spec, matches, ModeFDA)
	require.NoError(t, err)

	var sum float64
	for _, v := range est.Breakdown {
		sum += v
	}
	assert.InDelta(t, sum, est.Total, 0.005, "total is the exact sum of rounded items")
	assert.True(t, est.CheckTotal())
}

func TestAggregate_ConfidenceMonotoneInMatchCount(t *testing.T) {
	spec := validSpec()
	spec.IsShifting = false

	prev := -1.0
	for n := 2; n <= 8; n++ {
		matches := make([]NeighborMatch, n)
		for i := range matches {
			matches[i] = newMatch(fmt.Sprintf("r%d", i), "Map Ta Phut", 4626, false,
				map[string]float64{"tug_hire": 90000}, 0.25)
		}
		est, err := NewAggregator(AggregatorConfig{}).Aggregate(spec, matches, ModeFDA)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, est.Confidence, prev, "n=%d", n)
		assert.LessOrEqual(t, est.Confidence, 1.0)
		prev = est.Confidence
	}
}

func TestAggregate_ZeroUsableMatches(t *testing.T) {
	spec := validSpec()

	_, err := NewAggregator(AggregatorConfig{}).Aggregate(spec, nil, ModeFDA)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInsufficientData))

	// Unresolved hits and empty breakdowns are not evidence.
	matches := []NeighborMatch{
		{RecordID: "gone", Distance: 0.1},
		newMatch("empty", "Map Ta Phut", 4626, true, map[string]float64{}, 0.2),
	}
	_, err = NewAggregator(AggregatorConfig{}).Aggregate(spec, matches, ModeFDA)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInsufficientData))
}

func TestAggregate_PortFallbackPenalty(t *testing.T) {
	spec := validSpec()
	spec.IsShifting = false

	samePort := []NeighborMatch{
		newMatch("r1", "Map Ta Phut", 4626, false, map[string]float64{"tug_hire": 90000}, 0.1),
		newMatch("r2", "Map Ta Phut", 4626, false, map[string]float64{"tug_hire": 95000}, 0.1),
	}
	crossPort := []NeighborMatch{
		newMatch("r1", "Laem Chabang", 4626, false, map[string]float64{"tug_hire": 90000}, 0.1),
		newMatch("r2", "Sattahip", 4626, false, map[string]float64{"tug_hire": 95000}, 0.1),
	}

	agg := NewAggregator(AggregatorConfig{})
	same, err := agg.Aggregate(spec, samePort, ModeFDA)
	require.NoError(t, err)
	cross, err := agg.Aggregate(spec, crossPort, ModeFDA)
	require.NoError(t, err)

	assert.False(t, same.PortFallback)
	assert.True(t, cross.PortFallback)
	assert.Less(t, cross.Confidence, same.Confidence)
}

func TestAggregate_ShiftingBias(t *testing.T) {
	spec := validSpec() // shifting call

	matches := []NeighborMatch{
		newMatch("s1", "Map Ta Phut", 4626, true, map[string]float64{"tug_hire": 120000}, 0.1),
		newMatch("s2", "Map Ta Phut", 4626, true, map[string]float64{"tug_hire": 130000}, 0.1),
		newMatch("n1", "Map Ta Phut", 4626, false, map[string]float64{"tug_hire": 60000}, 0.1),
		newMatch("n2", "Map Ta Phut", 4626, false, map[string]float64{"tug_hire": 62000}, 0.1),
	}

	est, err := NewAggregator(AggregatorConfig{}).Aggregate(spec, matches, ModeFDA)
	require.NoError(t, err)

	// Only the shifting-tagged records contribute.
	assert.ElementsMatch(t, []string{"s1", "s2"}, est.ContributingRecordIDs)
	assert.GreaterOrEqual(t, est.Breakdown["tug_hire"], 120000.0)
}

func TestAggregate_ShiftingEvidenceMissingReducesConfidence(t *testing.T) {
	shifting := validSpec()
	steady := validSpec()
	steady.IsShifting = false

	// No shifting-tagged history exists, so the shifting call proceeds on
	// the same evidence with reduced confidence.
	matches := func() []NeighborMatch {
		return []NeighborMatch{
			newMatch("r1", "Map Ta Phut", 4626, false, map[string]float64{"tug_hire": 90000}, 0.1),
			newMatch("r2", "Map Ta Phut", 4626, false, map[string]float64{"tug_hire": 95000}, 0.1),
		}
	}

	agg := NewAggregator(AggregatorConfig{})
	withPenalty, err := agg.Aggregate(shifting, matches(), ModeFDA)
	require.NoError(t, err)
	without, err := agg.Aggregate(steady, matches(), ModeFDA)
	require.NoError(t, err)

	assert.Less(t, withPenalty.Confidence, without.Confidence)
}

func TestAggregate_TonnageScaling(t *testing.T) {
	// Historical record at 4x the query tonnage: amounts scale down by
	// (1/4)^0.62, not by 1/4.
	spec := validSpec()
	matches := []NeighborMatch{
		newMatch("big1", "Map Ta Phut", 4*4626, true, map[string]float64{"tug_hire": 100000}, 0.1),
		newMatch("big2", "Map Ta Phut", 4*4626, true, map[string]float64{"tug_hire": 100000}, 0.1),
	}

	est, err := NewAggregator(AggregatorConfig{}).Aggregate(spec, matches, ModeFDA)
	require.NoError(t, err)

	linear := 100000.0 / 4
	sublinear := 100000.0 * math.Pow(0.25, 0.62)
	assert.InDelta(t, sublinear, est.Breakdown["tug_hire"], 1.0)
	assert.Greater(t, est.Breakdown["tug_hire"], linear)
}

func TestAggregate_LowCoverageFlag(t *testing.T) {
	spec := validSpec()
	spec.IsShifting = false

	// "agency_fee" appears in 1 of 6 records (≈17%), below the 20%
	// threshold; it stays in the breakdown but is flagged.
	matches := make([]NeighborMatch, 0, 6)
	for i := 0; i < 6; i++ {
		bd := map[string]float64{"tug_hire": 90000}
		if i == 0 {
			bd["agency_fee"] = 5000
		}
		matches = append(matches, newMatch(fmt.Sprintf("r%d", i), "Map Ta Phut", 4626, false, bd, 0.1))
	}

	est, err := NewAggregator(AggregatorConfig{}).Aggregate(spec, matches, ModeFDA)
	require.NoError(t, err)

	assert.Contains(t, est.Breakdown, "agency_fee")
	assert.Equal(t, []string{"agency_fee"}, est.LowCoverageItems)
	assert.True(t, est.CheckTotal())
}

func TestAggregate_QuotationRollUp(t *testing.T) {
	spec := validSpec()
	spec.IsShifting = false

	bd := map[string]float64{
		"tug_hire":   90000,
		"pilotage":   40000,
		"clearance":  9000,
		"formality":  7000,
		"agency_fee": 5000,
		"launch":     3000,
		"garbage":    1500,
	}
	matches := []NeighborMatch{
		newMatch("r1", "Map Ta Phut", 4626, false, bd, 0.1),
		newMatch("r2", "Map Ta Phut", 4626, false, bd, 0.1),
	}

	agg := NewAggregator(AggregatorConfig{QuotationTopItems: 5})
	est, err := agg.Aggregate(spec, matches, ModeQuotation)
	require.NoError(t, err)

	require.Len(t, est.Breakdown, 6, "top 5 items plus other_charges")
	assert.Contains(t, est.Breakdown, OtherChargesItem)
	assert.InDelta(t, 3000+1500, est.Breakdown[OtherChargesItem], 0.01)
	assert.NotContains(t, est.Breakdown, "launch")
	assert.True(t, est.CheckTotal(), "rolled-up total still equals the sum of its breakdown")

	full, err := agg.Aggregate(spec, matches, ModeFDA)
	require.NoError(t, err)
	assert.InDelta(t, full.Total, est.Total, 0.02)
}

func TestWeightedMedian(t *testing.T) {
	tests := []struct {
		name    string
		samples []weightedAmount
		want    float64
	}{
		{
			name: "equal_weights_odd",
			samples: []weightedAmount{
				{90000, 1}, {95000, 1}, {100000, 1},
			},
			want: 95000,
		},
		{
			name: "heavy_weight_dominates",
			samples: []weightedAmount{
				{10, 0.1}, {20, 0.1}, {100, 5},
			},
			want: 100,
		},
		{
			name:    "single_sample",
			samples: []weightedAmount{{42, 0.5}},
			want:    42,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, weightedMedian(tt.samples), 1e-9)
		})
	}
}

func TestRoundMinorUnit(t *testing.T) {
	assert.Equal(t, 1.23, roundMinorUnit(1.234))
	assert.Equal(t, 1.24, roundMinorUnit(1.235))
	assert.Equal(t, 1.24, roundMinorUnit(1.236))
	assert.Equal(t, 0.0, roundMinorUnit(0))
}
