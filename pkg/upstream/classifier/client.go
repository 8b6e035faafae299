// Package classifier implements the client for the prompt categorization
// service. Classification calls may take minutes; the client inherits
// timeout, retry, and concurrency-cap behavior from the shared upstream
// client.
package classifier

import (
	"context"
	"fmt"
	"log/slog"

	"sentrix-hq/charon/pkg/upstream"
)

// classifyPath is the categorization endpoint on the collaborator.
const classifyPath = "/v1/classify"

// Client sends prompts to the classification service and returns structured
// category results.
type Client struct {
	base   *upstream.Client
	logger *slog.Logger
}

// NewClient creates a classification client. The config's Service field is
// forced to "classifier".
func NewClient(config upstream.ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	config.Service = "classifier"

	return &Client{
		base:   upstream.NewClient(config, logger),
		logger: logger.With("component", "classifier"),
	}
}

// Classify sends the prompt for categorization and returns the structured
// result. Failures are typed upstream errors so the orchestrator can apply
// its fallback policy.
func (c *Client) Classify(ctx context.Context, requestID, prompt string) (*Result, error) {
	req := request{
		Prompt:    prompt,
		RequestID: requestID,
	}

	var res Result
	if err := c.base.PostJSON(ctx, classifyPath, &req, &res); err != nil {
		return nil, err
	}

	if err := validateResult(&res); err != nil {
		return nil, &upstream.DecodeError{Service: "classifier", Cause: err}
	}

	c.logger.Debug("prompt classified",
		"request_id", requestID,
		"categories", len(res.Categories),
		"primary", res.PrimaryCategory,
		"overall_confidence", res.OverallConfidence,
	)

	return &res, nil
}

// IsHealthy reports the collaborator's availability as observed by this
// client.
func (c *Client) IsHealthy() bool {
	return c.base.IsHealthy()
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.base.Close()
}

// validateResult rejects classifier responses that violate the wire
// contract.
func validateResult(res *Result) error {
	if res.OverallConfidence < 0 || res.OverallConfidence > 1 {
		return fmt.Errorf("overall_confidence %v outside [0,1]", res.OverallConfidence)
	}
	for _, cat := range res.Categories {
		if cat.Name == "" {
			return fmt.Errorf("category with empty name")
		}
		if cat.Confidence < 0 || cat.Confidence > 1 {
			return fmt.Errorf("category %q confidence %v outside [0,1]", cat.Name, cat.Confidence)
		}
	}
	return nil
}
