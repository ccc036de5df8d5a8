package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harborintel/portcost/internal/domain/estimate"
	"github.com/harborintel/portcost/pkg/errors"
)

type fakeEstimator struct {
	estimateFunc func(ctx context.Context, spec estimate.VesselSpec, mode estimate.EstimateMode) (*estimate.SynthesizedEstimate, error)
}

func (f *fakeEstimator) Estimate(ctx context.Context, spec estimate.VesselSpec, mode estimate.EstimateMode) (*estimate.SynthesizedEstimate, error) {
	return f.estimateFunc(ctx, spec, mode)
}

func performEstimate(t *testing.T, engine Estimator, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/v1/estimates", NewEstimateHandler(engine, nil).Create)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/estimates", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreate_Success(t *testing.T) {
	var gotSpec estimate.VesselSpec
	var gotMode estimate.EstimateMode
	engine := &fakeEstimator{estimateFunc: func(_ context.Context, spec estimate.VesselSpec, mode estimate.EstimateMode) (*estimate.SynthesizedEstimate, error) {
		gotSpec, gotMode = spec, mode
		return &estimate.SynthesizedEstimate{
			Port:       "map ta phut",
			Mode:       mode,
			Currency:   "THB",
			Breakdown:  map[string]float64{"tug_hire": 95000},
			Total:      95000,
			Confidence: 0.72,
		}, nil
	}}

	rec := performEstimate(t, engine, `{
		"port": "Map Ta Phut",
		"grt": 4626,
		"loa": 112,
		"draft": 6.5,
		"is_shifting": true,
		"mode": "quotation"
	}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Map Ta Phut", gotSpec.Port)
	assert.Equal(t, 4626.0, gotSpec.GRT)
	require.NotNil(t, gotSpec.Draft)
	assert.Equal(t, 6.5, *gotSpec.Draft)
	assert.True(t, gotSpec.IsShifting)
	assert.Equal(t, estimate.ModeQuotation, gotMode)

	var resp estimate.SynthesizedEstimate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 95000.0, resp.Total)
	assert.Equal(t, 0.72, resp.Confidence)
}

func TestCreate_DefaultsToFDAMode(t *testing.T) {
	var gotMode estimate.EstimateMode
	engine := &fakeEstimator{estimateFunc: func(_ context.Context, _ estimate.VesselSpec, mode estimate.EstimateMode) (*estimate.SynthesizedEstimate, error) {
		gotMode = mode
		return &estimate.SynthesizedEstimate{}, nil
	}}

	rec := performEstimate(t, engine, `{"port": "Map Ta Phut", "grt": 4626, "loa": 112}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, estimate.ModeFDA, gotMode)
}

func TestCreate_MalformedBody(t *testing.T) {
	engine := &fakeEstimator{estimateFunc: func(context.Context, estimate.VesselSpec, estimate.EstimateMode) (*estimate.SynthesizedEstimate, error) {
		t.Fatal("engine must not be called")
		return nil, nil
	}}

	rec := performEstimate(t, engine, `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreate_UnknownMode(t *testing.T) {
	engine := &fakeEstimator{estimateFunc: func(context.Context, estimate.VesselSpec, estimate.EstimateMode) (*estimate.SynthesizedEstimate, error) {
		t.Fatal("engine must not be called")
		return nil, nil
	}}

	rec := performEstimate(t, engine, `{"port": "x", "grt": 1, "loa": 1, "mode": "detailed"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreate_ErrorTaxonomyMapsToStatus(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid spec",
			err:        errors.InvalidSpec("grt must be positive"),
			wantStatus: http.StatusBadRequest,
			wantCode:   string(errors.ErrCodeInvalidSpec),
		},
		{
			name:       "insufficient data",
			err:        errors.InsufficientData("no usable historical matches"),
			wantStatus: http.StatusNotFound,
			wantCode:   string(errors.ErrCodeInsufficientData),
		},
		{
			name:       "upstream unavailable",
			err:        errors.New(errors.ErrCodeUpstreamUnavailable, "similarity retrieval failed after retries"),
			wantStatus: http.StatusBadGateway,
			wantCode:   string(errors.ErrCodeUpstreamUnavailable),
		},
		{
			name:       "no similarity available",
			err:        errors.New(errors.ErrCodeNoSimilarityAvailable, "fallback exhausted"),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   string(errors.ErrCodeNoSimilarityAvailable),
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := &fakeEstimator{estimateFunc: func(context.Context, estimate.VesselSpec, estimate.EstimateMode) (*estimate.SynthesizedEstimate, error) {
				return nil, tc.err
			}}

			rec := performEstimate(t, engine, `{"port": "Map Ta Phut", "grt": 4626, "loa": 112}`)
			assert.Equal(t, tc.wantStatus, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tc.wantCode, resp.Code)
		})
	}
}

func TestCreate_InternalErrorIsMasked(t *testing.T) {
	engine := &fakeEstimator{estimateFunc: func(context.Context, estimate.VesselSpec, estimate.EstimateMode) (*estimate.SynthesizedEstimate, error) {
		return nil, errors.New(errors.ErrCodeInternal, "pgx: connection pool exhausted at 10.0.3.7")
	}}

	rec := performEstimate(t, engine, `{"port": "Map Ta Phut", "grt": 4626, "loa": 112}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "internal server error", resp.Message)
	assert.NotContains(t, rec.Body.String(), "10.0.3.7")
}
