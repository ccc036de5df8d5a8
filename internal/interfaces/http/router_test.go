package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/harborintel/portcost/internal/domain/estimate"
	"github.com/harborintel/portcost/internal/infrastructure/monitoring/logging"
	"github.com/harborintel/portcost/internal/interfaces/http/handlers"
	"github.com/harborintel/portcost/internal/interfaces/http/middleware"
)

type staticEstimator struct{}

func (staticEstimator) Estimate(context.Context, estimate.VesselSpec, estimate.EstimateMode) (*estimate.SynthesizedEstimate, error) {
	return &estimate.SynthesizedEstimate{Port: "map ta phut", Total: 95000}, nil
}

func testRouter() http.Handler {
	return NewRouter(RouterConfig{
		EstimateHandler: handlers.NewEstimateHandler(staticEstimator{}, nil),
		HealthHandler: handlers.NewHealthHandler(map[string]handlers.Pinger{
			"postgres": func(context.Context) error { return nil },
		}, nil),
		Logger: logging.NewNopLogger(),
	})
}

func TestRouter_Routes(t *testing.T) {
	r := testRouter()

	cases := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/readyz", "", http.StatusOK},
		{http.MethodPost, "/api/v1/estimates", `{"port":"Map Ta Phut","grt":4626,"loa":112}`, http.StatusOK},
		{http.MethodGet, "/api/v1/estimates", "", http.StatusNotFound},
		{http.MethodGet, "/nope", "", http.StatusNotFound},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		if tc.body != "" {
			req = httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		assert.Equal(t, tc.want, rec.Code, "%s %s", tc.method, tc.path)
	}
}

func TestRouter_RequestIDPropagation(t *testing.T) {
	r := testRouter()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-abc-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "req-abc-123", rec.Header().Get(middleware.RequestIDHeader))
}

func TestRouter_GeneratesRequestID(t *testing.T) {
	r := testRouter()

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}
