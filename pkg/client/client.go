// Package client is a small Go client for the portcost estimation API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// EstimateRequest is the body of POST /api/v1/estimates.
type EstimateRequest struct {
	Port       string   `json:"port"`
	VesselName string   `json:"vessel_name,omitempty"`
	Voyage     string   `json:"voyage,omitempty"`
	GRT        float64  `json:"grt"`
	LOA        float64  `json:"loa"`
	Draft      *float64 `json:"draft,omitempty"`
	IsShifting bool     `json:"is_shifting"`
	VesselType string   `json:"vessel_type,omitempty"`
	// Mode is "fda" or "quotation".  Empty defaults to "fda" server-side.
	Mode string `json:"mode,omitempty"`
}

// VesselSummary echoes the queried vessel back in the response.
type VesselSummary struct {
	Name       string   `json:"name,omitempty"`
	Voyage     string   `json:"voyage,omitempty"`
	Type       string   `json:"type,omitempty"`
	GRT        float64  `json:"grt"`
	LOA        float64  `json:"loa"`
	Draft      *float64 `json:"draft,omitempty"`
	IsShifting bool     `json:"is_shifting"`
}

// Estimate is the synthesized cost estimate returned by the API.
type Estimate struct {
	Port                  string             `json:"port"`
	Vessel                VesselSummary      `json:"vessel"`
	Mode                  string             `json:"mode"`
	Currency              string             `json:"currency"`
	Breakdown             map[string]float64 `json:"breakdown"`
	Total                 float64            `json:"total"`
	Confidence            float64            `json:"confidence"`
	ContributingRecordIDs []string           `json:"contributing_record_ids"`
	LowCoverageItems      []string           `json:"low_coverage_items,omitempty"`
	PortFallback          bool               `json:"port_fallback,omitempty"`
	FeatureModel          string             `json:"feature_model"`
	Narrative             string             `json:"narrative,omitempty"`
	NarrativeMissing      bool               `json:"narrative_missing,omitempty"`
	GeneratedAt           time.Time          `json:"generated_at"`
}

// APIError is a typed error returned by the API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Client talks to one portcost API server.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(httpc *http.Client) Option {
	return func(c *Client) { c.httpc = httpc }
}

// WithTimeout sets the per-request timeout on the underlying HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.httpc.Timeout = timeout }
}

// New builds a Client for the given base URL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Estimate submits a vessel specification and returns the synthesized
// estimate.  Non-200 responses come back as *APIError when the server sent
// a structured error body.
func (c *Client) Estimate(ctx context.Context, req EstimateRequest) (*Estimate, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/estimates", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("estimate request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if json.Unmarshal(body, apiErr) == nil && apiErr.Code != "" {
			return nil, apiErr
		}
		return nil, fmt.Errorf("server returned %s", resp.Status)
	}

	var est Estimate
	if err := json.Unmarshal(body, &est); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &est, nil
}
