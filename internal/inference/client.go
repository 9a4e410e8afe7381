// Package inference wraps the optional language-model collaborator used by
// the ML prediction agent. Responses are validated at this boundary; nothing
// untyped crosses into the pipeline.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/quantara-ai/quantara-go/internal/models"
)

// ErrUnparseable marks an inference response that did not validate. Callers
// must degrade to a zero-confidence hold rather than propagate it.
var ErrUnparseable = errors.New("inference response failed validation")

// Prediction is the tagged, validated shape of an inference result.
type Prediction struct {
	Action     models.Action `json:"action"`
	Confidence float64       `json:"confidence"`
	Rationale  string        `json:"rationale"`
}

// Options tune one completion call.
type Options struct {
	MaxTokens   int     `json:"max_tokens,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// Client calls a completion endpoint over HTTP with a bounded timeout. A nil
// Client is valid and reports itself unavailable.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient builds an inference client. An empty baseURL returns nil, which
// the ML agent treats as "collaborator absent".
func NewClient(baseURL string, timeout time.Duration, logger *logrus.Logger) *Client {
	if baseURL == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type completeRequest struct {
	Prompt  string  `json:"prompt"`
	Options Options `json:"options"`
}

// Complete sends a prompt and validates the structured result. Transport
// failures return the underlying error; malformed payloads return
// ErrUnparseable.
func (c *Client) Complete(ctx context.Context, prompt string, opts Options) (*Prediction, error) {
	if c == nil {
		return nil, errors.New("inference client not configured")
	}

	body, err := json.Marshal(completeRequest{Prompt: prompt, Options: opts})
	if err != nil {
		return nil, fmt.Errorf("failed to encode inference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/complete", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build inference request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference returned status %d", resp.StatusCode)
	}

	var pred Prediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		c.logger.WithError(err).Warn("Inference response did not decode")
		return nil, ErrUnparseable
	}
	if err := validate(&pred); err != nil {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"action":     pred.Action,
			"confidence": pred.Confidence,
		}).Warn("Inference response failed validation")
		return nil, ErrUnparseable
	}
	return &pred, nil
}

func validate(p *Prediction) error {
	switch p.Action {
	case models.ActionBuy, models.ActionSell, models.ActionHold:
	default:
		return fmt.Errorf("unknown action %q", p.Action)
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return fmt.Errorf("confidence %.3f outside [0,1]", p.Confidence)
	}
	if p.Rationale == "" {
		return errors.New("empty rationale")
	}
	return nil
}
