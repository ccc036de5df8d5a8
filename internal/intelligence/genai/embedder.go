package genai

import (
	"context"
	"fmt"

	"github.com/harborintel/portcost/internal/infrastructure/monitoring/logging"
	"github.com/harborintel/portcost/pkg/errors"
)

type embeddingRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed requests one embedding for the given text.  Any provider failure,
// timeout, or degenerate response carries ErrCodeEmbeddingUnavailable so the
// quotation engine can decide between retry and feature-vector fallback.
// A zero vector is treated as a failure: substituting it would corrupt
// neighbor ranking without any signal.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.EmbedTimeout)
	defer cancel()

	var resp embeddingResponse
	req := embeddingRequest{Model: c.cfg.EmbedModel, Input: text}
	if err := c.postJSON(ctx, "/embeddings", req, &resp); err != nil {
		c.logger.Warn("embedding call failed", logging.Err(err))
		return nil, errors.Wrap(err, errors.ErrCodeEmbeddingUnavailable, "embedding provider call failed")
	}

	if len(resp.Data) == 0 {
		return nil, errors.New(errors.ErrCodeEmbeddingUnavailable, "embedding provider returned no data")
	}
	vec := resp.Data[0].Embedding
	if len(vec) != c.cfg.EmbedDim {
		return nil, errors.New(errors.ErrCodeEmbeddingUnavailable, "embedding has unexpected dimension").
			WithDetail(fmt.Sprintf("got=%d want=%d", len(vec), c.cfg.EmbedDim))
	}
	if isZeroVector(vec) {
		return nil, errors.New(errors.ErrCodeEmbeddingUnavailable, "embedding provider returned a zero vector")
	}
	return vec, nil
}

func isZeroVector(vec []float32) bool {
	for _, x := range vec {
		if x != 0 {
			return false
		}
	}
	return true
}
