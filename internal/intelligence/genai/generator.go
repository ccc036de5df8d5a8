package genai

import (
	"context"
	"strings"

	"github.com/harborintel/portcost/internal/domain/estimate"
	"github.com/harborintel/portcost/internal/infrastructure/monitoring/logging"
	"github.com/harborintel/portcost/pkg/errors"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate renders the estimate as natural-language narrative.  Failures
// carry ErrCodeNarrativeFailed; the quotation engine swallows them and
// returns the numeric result with a missing-narrative flag, so nothing here
// may block the numeric path.
func (c *Client) Generate(ctx context.Context, est *estimate.SynthesizedEstimate, supportingText string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.GenerateTimeout)
	defer cancel()

	req := chatCompletionRequest{
		Model: c.cfg.GenerateModel,
		Messages: []chatMessage{
			{Role: "system", Content: narrativeSystemPrompt},
			{Role: "user", Content: BuildNarrativePrompt(est, supportingText)},
		},
		MaxTokens:   c.cfg.MaxOutputTokens,
		Temperature: c.cfg.Temperature,
	}

	var resp chatCompletionResponse
	if err := c.postJSON(ctx, "/chat/completions", req, &resp); err != nil {
		c.logger.Warn("narrative generation failed", logging.Err(err))
		return "", errors.Wrap(err, errors.ErrCodeNarrativeFailed, "narrative provider call failed")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New(errors.ErrCodeNarrativeFailed, "narrative provider returned no choices")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New(errors.ErrCodeNarrativeFailed, "narrative provider returned empty text")
	}
	return text, nil
}
