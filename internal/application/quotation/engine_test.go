package quotation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/harborintel/portcost/internal/domain/estimate"
	"github.com/harborintel/portcost/internal/infrastructure/monitoring/logging"
	"github.com/harborintel/portcost/pkg/errors"
)

type fakeEmbedder struct {
	embedFunc func(ctx context.Context, text string) ([]float32, error)
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return f.embedFunc(ctx, text)
}

type fakeIndex struct {
	queryFunc func(ctx context.Context, vector []float32, k int, filter estimate.QueryFilter) ([]estimate.NeighborRef, error)
}

func (f *fakeIndex) Query(ctx context.Context, vector []float32, k int, filter estimate.QueryFilter) ([]estimate.NeighborRef, error) {
	return f.queryFunc(ctx, vector, k, filter)
}

type fakeStore struct {
	resolveFunc func(ctx context.Context, ids []string) (map[string]*estimate.HistoricalRecord, error)
	sampleFunc  func(ctx context.Context, limit int) ([]*estimate.HistoricalRecord, error)
}

func (f *fakeStore) Resolve(ctx context.Context, ids []string) (map[string]*estimate.HistoricalRecord, error) {
	return f.resolveFunc(ctx, ids)
}

func (f *fakeStore) Sample(ctx context.Context, limit int) ([]*estimate.HistoricalRecord, error) {
	return f.sampleFunc(ctx, limit)
}

type fakeGenerator struct {
	generateFunc func(ctx context.Context, est *estimate.SynthesizedEstimate, supportingText string) (string, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, est *estimate.SynthesizedEstimate, supportingText string) (string, error) {
	return f.generateFunc(ctx, est, supportingText)
}

func floatPtr(v float64) *float64 { return &v }

func validSpec() estimate.VesselSpec {
	return estimate.VesselSpec{
		Port:       "Map Ta Phut",
		GRT:        4626,
		LOA:        112,
		Draft:      floatPtr(6.5),
		IsShifting: true,
	}
}

func mapTaPhutRecord(id string, tugHire float64) *estimate.HistoricalRecord {
	return &estimate.HistoricalRecord{
		ID:         id,
		Port:       "map ta phut",
		GRT:        4600,
		LOA:        110,
		IsShifting: true,
		Breakdown:  map[string]float64{"tug_hire": tugHire, "pilotage": 30000},
		Total:      tugHire + 30000,
		Timestamp:  time.Now().UTC(),
	}
}

func mapTaPhutFixtures() (refs []estimate.NeighborRef, records map[string]*estimate.HistoricalRecord) {
	records = map[string]*estimate.HistoricalRecord{
		"rec-1": mapTaPhutRecord("rec-1", 90000),
		"rec-2": mapTaPhutRecord("rec-2", 95000),
		"rec-3": mapTaPhutRecord("rec-3", 100000),
	}
	refs = []estimate.NeighborRef{
		{RecordID: "rec-1", Distance: 0.10},
		{RecordID: "rec-2", Distance: 0.12},
		{RecordID: "rec-3", Distance: 0.15},
	}
	return refs, records
}

func workingCollaborators() (*fakeEmbedder, *fakeIndex, *fakeStore) {
	refs, records := mapTaPhutFixtures()
	embedder := &fakeEmbedder{
		embedFunc: func(context.Context, string) ([]float32, error) {
			return make([]float32, 768), nil
		},
	}
	index := &fakeIndex{
		queryFunc: func(_ context.Context, _ []float32, _ int, _ estimate.QueryFilter) ([]estimate.NeighborRef, error) {
			return refs, nil
		},
	}
	store := &fakeStore{
		resolveFunc: func(_ context.Context, _ []string) (map[string]*estimate.HistoricalRecord, error) {
			return records, nil
		},
		sampleFunc: func(_ context.Context, _ int) ([]*estimate.HistoricalRecord, error) {
			return []*estimate.HistoricalRecord{records["rec-1"], records["rec-2"], records["rec-3"]}, nil
		},
	}
	return embedder, index, store
}

func fastConfig() Config {
	return Config{
		TopK:         10,
		EmbedRetries: 1,
		IndexRetries: 2,
		RetryBackoff: time.Millisecond,
		StoreTimeout: time.Second,
	}
}

func newTestEngine(t *testing.T, cfg Config, embedder estimate.Embedder, index estimate.SimilarityIndex, store estimate.RecordStore, opts ...func(*Engine)) *Engine {
	t.Helper()
	e, err := NewEngine(cfg, embedder, index, store,
		estimate.NewAggregator(estimate.DefaultAggregatorConfig()),
		nil, nil, nil, nil, nil)
	require.NoError(t, err)
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func TestEstimate_HappyPath(t *testing.T) {
	embedder, index, store := workingCollaborators()
	engine := newTestEngine(t, fastConfig(), embedder, index, store)

	est, err := engine.Estimate(context.Background(), validSpec(), estimate.ModeFDA)
	require.NoError(t, err)
	assert.Equal(t, "map ta phut", est.Port)
	assert.InDelta(t, 95000, est.Breakdown["tug_hire"], 1500)
	assert.Equal(t, []string{"rec-1", "rec-2", "rec-3"}, est.ContributingRecordIDs)
	assert.True(t, est.CheckTotal())
	assert.False(t, est.NarrativeMissing)
}

func loggedStates(logs *observer.ObservedLogs) []string {
	var states []string
	for _, entry := range logs.FilterMessage("pipeline advanced").All() {
		states = append(states, entry.ContextMap()["state"].(string))
	}
	return states
}

func TestEstimate_PipelineStatesLogged(t *testing.T) {
	t.Run("primary path", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		embedder, index, store := workingCollaborators()
		engine := newTestEngine(t, fastConfig(), embedder, index, store, func(e *Engine) {
			e.logger = logging.NewLoggerFromCore(core)
		})

		_, err := engine.Estimate(context.Background(), validSpec(), estimate.ModeFDA)
		require.NoError(t, err)
		assert.Equal(t,
			[]string{stateReceived, stateNormalized, stateEmbedded, stateRetrieved, stateAggregated},
			loggedStates(logs))
	})

	t.Run("fallback path skips embedded", func(t *testing.T) {
		core, logs := observer.New(zapcore.DebugLevel)
		embedder := &fakeEmbedder{embedFunc: func(context.Context, string) ([]float32, error) {
			return nil, errors.New(errors.ErrCodeEmbeddingUnavailable, "provider down")
		}}
		_, index, store := workingCollaborators()
		sample := NewFallbackSample(store, 100, nil, nil)
		require.NoError(t, sample.Refresh(context.Background(), "test"))
		engine := newTestEngine(t, fastConfig(), embedder, index, store, func(e *Engine) {
			e.sample = sample
			e.logger = logging.NewLoggerFromCore(core)
		})

		_, err := engine.Estimate(context.Background(), validSpec(), estimate.ModeFDA)
		require.NoError(t, err)
		assert.Equal(t,
			[]string{stateReceived, stateNormalized, stateRetrieved, stateAggregated},
			loggedStates(logs))
	})
}

func TestEstimate_InvalidSpecFailsWithoutRetry(t *testing.T) {
	embedCalls := 0
	embedder := &fakeEmbedder{embedFunc: func(context.Context, string) ([]float32, error) {
		embedCalls++
		return nil, nil
	}}
	_, index, store := workingCollaborators()
	engine := newTestEngine(t, fastConfig(), embedder, index, store)

	_, err := engine.Estimate(context.Background(), estimate.VesselSpec{Port: "x"}, estimate.ModeFDA)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidSpec))
	assert.Zero(t, embedCalls)
}

func TestEstimate_EmbedRetriesOnceThenSucceeds(t *testing.T) {
	embedCalls := 0
	embedder := &fakeEmbedder{embedFunc: func(context.Context, string) ([]float32, error) {
		embedCalls++
		if embedCalls == 1 {
			return nil, errors.New(errors.ErrCodeEmbeddingUnavailable, "timeout")
		}
		return make([]float32, 768), nil
	}}
	_, index, store := workingCollaborators()
	engine := newTestEngine(t, fastConfig(), embedder, index, store)

	_, err := engine.Estimate(context.Background(), validSpec(), estimate.ModeFDA)
	require.NoError(t, err)
	assert.Equal(t, 2, embedCalls)
}

func TestEstimate_EmbedExhaustionFallsBackToSample(t *testing.T) {
	embedder := &fakeEmbedder{embedFunc: func(context.Context, string) ([]float32, error) {
		return nil, errors.New(errors.ErrCodeEmbeddingUnavailable, "provider down")
	}}
	indexCalls := 0
	index := &fakeIndex{queryFunc: func(context.Context, []float32, int, estimate.QueryFilter) ([]estimate.NeighborRef, error) {
		indexCalls++
		return nil, nil
	}}
	_, _, store := workingCollaborators()

	sample := NewFallbackSample(store, 100, nil, nil)
	require.NoError(t, sample.Refresh(context.Background(), "test"))

	engine := newTestEngine(t, fastConfig(), embedder, index, store, func(e *Engine) {
		e.sample = sample
	})

	est, err := engine.Estimate(context.Background(), validSpec(), estimate.ModeFDA)
	require.NoError(t, err)
	assert.Zero(t, indexCalls)
	assert.InDelta(t, 95000, est.Breakdown["tug_hire"], 1500)
}

func TestEstimate_EmbedExhaustionWithoutSampleFails(t *testing.T) {
	embedder := &fakeEmbedder{embedFunc: func(context.Context, string) ([]float32, error) {
		return nil, errors.New(errors.ErrCodeEmbeddingUnavailable, "provider down")
	}}
	_, index, store := workingCollaborators()
	engine := newTestEngine(t, fastConfig(), embedder, index, store)

	_, err := engine.Estimate(context.Background(), validSpec(), estimate.ModeFDA)
	assert.True(t, errors.IsCode(err, errors.ErrCodeNoSimilarityAvailable))
}

func TestEstimate_IndexRetriesThenFails(t *testing.T) {
	embedder, _, store := workingCollaborators()
	indexCalls := 0
	index := &fakeIndex{queryFunc: func(context.Context, []float32, int, estimate.QueryFilter) ([]estimate.NeighborRef, error) {
		indexCalls++
		return nil, errors.New(errors.ErrCodeIndexUnavailable, "index down")
	}}
	engine := newTestEngine(t, fastConfig(), embedder, index, store)

	_, err := engine.Estimate(context.Background(), validSpec(), estimate.ModeFDA)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUpstreamUnavailable))
	assert.Equal(t, 3, indexCalls)
}

func TestEstimate_WidensToAllPortsWhenSamePortIsThin(t *testing.T) {
	refs, records := mapTaPhutFixtures()
	embedder, _, _ := workingCollaborators()
	store := &fakeStore{resolveFunc: func(_ context.Context, _ []string) (map[string]*estimate.HistoricalRecord, error) {
		return records, nil
	}}

	var filters []estimate.QueryFilter
	index := &fakeIndex{queryFunc: func(_ context.Context, _ []float32, _ int, filter estimate.QueryFilter) ([]estimate.NeighborRef, error) {
		filters = append(filters, filter)
		if filter.Port != "" {
			return refs[:1], nil
		}
		return refs, nil
	}}
	engine := newTestEngine(t, fastConfig(), embedder, index, store)

	est, err := engine.Estimate(context.Background(), validSpec(), estimate.ModeFDA)
	require.NoError(t, err)
	require.Len(t, filters, 2)
	assert.Equal(t, "map ta phut", filters[0].Port)
	assert.Empty(t, filters[1].Port)
	assert.Len(t, est.ContributingRecordIDs, 3)
}

func TestEstimate_UnresolvedNeighborsAreReducedEvidence(t *testing.T) {
	refs, records := mapTaPhutFixtures()
	embedder, _, _ := workingCollaborators()
	index := &fakeIndex{queryFunc: func(context.Context, []float32, int, estimate.QueryFilter) ([]estimate.NeighborRef, error) {
		return refs, nil
	}}
	store := &fakeStore{resolveFunc: func(_ context.Context, _ []string) (map[string]*estimate.HistoricalRecord, error) {
		return map[string]*estimate.HistoricalRecord{
			"rec-1": records["rec-1"],
			"rec-2": records["rec-2"],
		}, nil
	}}
	engine := newTestEngine(t, fastConfig(), embedder, index, store)

	est, err := engine.Estimate(context.Background(), validSpec(), estimate.ModeFDA)
	require.NoError(t, err)
	assert.Equal(t, []string{"rec-1", "rec-2"}, est.ContributingRecordIDs)
}

func TestEstimate_StoreFailureAfterRetryIsUpstreamUnavailable(t *testing.T) {
	refs, _ := mapTaPhutFixtures()
	embedder, _, _ := workingCollaborators()
	index := &fakeIndex{queryFunc: func(context.Context, []float32, int, estimate.QueryFilter) ([]estimate.NeighborRef, error) {
		return refs, nil
	}}
	resolveCalls := 0
	store := &fakeStore{resolveFunc: func(context.Context, []string) (map[string]*estimate.HistoricalRecord, error) {
		resolveCalls++
		return nil, errors.New(errors.ErrCodeStoreUnavailable, "store down")
	}}
	engine := newTestEngine(t, fastConfig(), embedder, index, store)

	_, err := engine.Estimate(context.Background(), validSpec(), estimate.ModeFDA)
	assert.True(t, errors.IsCode(err, errors.ErrCodeUpstreamUnavailable))
	assert.Equal(t, 2, resolveCalls)
}

func TestEstimate_EmptyRetrievalIsInsufficientData(t *testing.T) {
	embedder, _, store := workingCollaborators()
	index := &fakeIndex{queryFunc: func(context.Context, []float32, int, estimate.QueryFilter) ([]estimate.NeighborRef, error) {
		return nil, nil
	}}
	engine := newTestEngine(t, fastConfig(), embedder, index, store)

	_, err := engine.Estimate(context.Background(), validSpec(), estimate.ModeFDA)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInsufficientData))
}

func TestEstimate_NarrativeFailureSetsMissingFlagOnly(t *testing.T) {
	embedder, index, store := workingCollaborators()
	generator := &fakeGenerator{generateFunc: func(context.Context, *estimate.SynthesizedEstimate, string) (string, error) {
		return "", errors.New(errors.ErrCodeNarrativeFailed, "provider error")
	}}

	cfg := fastConfig()
	cfg.NarrativeEnabled = true
	engine := newTestEngine(t, cfg, embedder, index, store, func(e *Engine) {
		e.narrator = NewNarrator(generator, nil, time.Second, nil)
	})

	est, err := engine.Estimate(context.Background(), validSpec(), estimate.ModeFDA)
	require.NoError(t, err)
	assert.True(t, est.NarrativeMissing)
	assert.Empty(t, est.Narrative)
}

func TestEstimate_NarrativeSuccess(t *testing.T) {
	embedder, index, store := workingCollaborators()
	generator := &fakeGenerator{generateFunc: func(_ context.Context, est *estimate.SynthesizedEstimate, _ string) (string, error) {
		assert.InDelta(t, 95000, est.Breakdown["tug_hire"], 1500)
		return "Expect roughly THB 125,000 for this call.", nil
	}}

	cfg := fastConfig()
	cfg.NarrativeEnabled = true
	engine := newTestEngine(t, cfg, embedder, index, store, func(e *Engine) {
		e.narrator = NewNarrator(generator, nil, time.Second, nil)
	})

	est, err := engine.Estimate(context.Background(), validSpec(), estimate.ModeFDA)
	require.NoError(t, err)
	assert.Equal(t, "Expect roughly THB 125,000 for this call.", est.Narrative)
	assert.False(t, est.NarrativeMissing)
}

func TestEstimate_QuotationModeRollsUpMinorItems(t *testing.T) {
	refs, records := mapTaPhutFixtures()
	for _, rec := range records {
		rec.Breakdown["agency_fee"] = 5000
		rec.Breakdown["garbage"] = 800
		rec.Breakdown["clearance"] = 1200
		rec.Breakdown["formalities"] = 900
		rec.Breakdown["launch_hire"] = 2500
		rec.Total = 0
		for _, v := range rec.Breakdown {
			rec.Total += v
		}
	}
	embedder, _, _ := workingCollaborators()
	index := &fakeIndex{queryFunc: func(context.Context, []float32, int, estimate.QueryFilter) ([]estimate.NeighborRef, error) {
		return refs, nil
	}}
	store := &fakeStore{resolveFunc: func(context.Context, []string) (map[string]*estimate.HistoricalRecord, error) {
		return records, nil
	}}
	engine := newTestEngine(t, fastConfig(), embedder, index, store)

	est, err := engine.Estimate(context.Background(), validSpec(), estimate.ModeQuotation)
	require.NoError(t, err)
	assert.Contains(t, est.Breakdown, estimate.OtherChargesItem)
	assert.True(t, est.CheckTotal())
}
