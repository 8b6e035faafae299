// Package generator implements the client for the completion backend.
// Generation calls may take minutes, so the client makes exactly one
// attempt per request: retrying would risk doubling an already multi-minute
// latency, and the orchestrator reports the failure distinctly instead.
package generator

import (
	"context"
	"log/slog"

	"sentrix-hq/charon/pkg/upstream"
)

// generatePath is the completion endpoint on the collaborator.
const generatePath = "/v1/generate"

// Client sends approved prompts to the completion backend.
type Client struct {
	base   *upstream.Client
	logger *slog.Logger
}

// NewClient creates a generation client. The config's Service field is
// forced to "generator" and retries are disabled regardless of config.
func NewClient(config upstream.ClientConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	config.Service = "generator"
	config.MaxRetries = 0 // single attempt only

	return &Client{
		base:   upstream.NewClient(config, logger),
		logger: logger.With("component", "generator"),
	}
}

// Generate sends the prompt to the completion backend and returns the
// generated message. A failure is a typed upstream error; it is never
// retried here.
func (c *Client) Generate(ctx context.Context, requestID, prompt string) (*Completion, error) {
	req := request{
		Prompt:    prompt,
		RequestID: requestID,
	}

	var completion Completion
	if err := c.base.PostJSON(ctx, generatePath, &req, &completion); err != nil {
		return nil, err
	}

	c.logger.Debug("completion generated",
		"request_id", requestID,
		"prompt_tokens", completion.Usage.PromptTokens,
		"completion_tokens", completion.Usage.CompletionTokens,
	)

	return &completion, nil
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
