// Package genai wraps the external embedding / text-generation provider
// behind the domain's Embedder and NarrativeGenerator contracts.  The
// provider speaks the OpenAI-compatible HTTP API, which most self-hosted
// inference gateways also expose.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/harborintel/portcost/internal/infrastructure/monitoring/logging"
	"github.com/harborintel/portcost/pkg/errors"
)

// Config holds provider connection and model parameters.
type Config struct {
	BaseURL string
	APIKey  string

	EmbedModel   string
	EmbedDim     int
	EmbedTimeout time.Duration

	GenerateModel   string
	GenerateTimeout time.Duration
	MaxOutputTokens int
	Temperature     float64
}

// Validate checks the minimal set of fields the client cannot run without.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return errors.New(errors.ErrCodeValidation, "genai: base URL is required")
	}
	if c.EmbedModel == "" {
		return errors.New(errors.ErrCodeValidation, "genai: embed model is required")
	}
	if c.EmbedDim < 1 {
		return errors.New(errors.ErrCodeValidation, "genai: embed dimension must be positive")
	}
	return nil
}

// Client is a thin HTTP client for the provider.  It is safe for concurrent
// use; per-call timeouts come from the Config, not from a shared
// http.Client deadline.
type Client struct {
	cfg    Config
	httpc  *http.Client
	logger logging.Logger
}

// NewClient builds a Client.  The http.Client carries no global timeout;
// every call derives a context deadline from the relevant Config field.
func NewClient(cfg Config, logger logging.Logger) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Client{
		cfg:    cfg,
		httpc:  &http.Client{},
		logger: logger.Named("genai"),
	}, nil
}

// postJSON issues one POST to path with the given payload and decodes the
// response into out.  Non-2xx responses and transport failures are returned
// as plain errors; callers map them to the taxonomy code appropriate to the
// operation.
func (c *Client) postJSON(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("call %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("call %s: status %d: %s", path, resp.StatusCode, string(snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
