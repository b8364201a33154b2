// Package generation provides LLM adapters for answer generation.
// It includes OpenAI and Claude (Anthropic) implementations of the
// router's Generator interface plus a no-op for tests and development.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"lexgate/internal/resilience/errdefs"
	"lexgate/internal/usecase/query"
)

// ClaudeConfig holds configuration for the Claude generation adapter.
type ClaudeConfig struct {
	// APIKey authenticates against the Anthropic API.
	APIKey string

	// Model is the default model when the request does not name one.
	Model string
}

// Claude implements query.Generator using Anthropic's Messages API.
// Resilience is applied by the router's composer, not here.
type Claude struct {
	client anthropic.Client
	cfg    ClaudeConfig
}

// NewClaude creates a Claude generation adapter.
func NewClaude(cfg ClaudeConfig) *Claude {
	if cfg.Model == "" {
		cfg.Model = string(anthropic.ModelClaudeSonnet4_5_20250929)
	}

	slog.Info("initialized claude generator",
		slog.String("model", cfg.Model))

	return &Claude{
		client: anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		cfg:    cfg,
	}
}

// Name identifies the provider.
func (c *Claude) Name() string {
	return "claude"
}

// Generate produces a complete answer.
func (c *Claude) Generate(ctx context.Context, req query.GenRequest) (*query.GenResponse, error) {
	start := time.Now()

	message, err := c.client.Messages.New(ctx, c.buildParams(req))
	if err != nil {
		return nil, classifyClaudeError(err)
	}

	if len(message.Content) == 0 {
		return nil, fmt.Errorf("%w: claude returned empty response", errdefs.ErrTransient)
	}

	textBlock, ok := message.Content[0].AsAny().(anthropic.TextBlock)
	if !ok {
		return nil, fmt.Errorf("%w: claude returned unexpected response type", errdefs.ErrTransient)
	}

	slog.InfoContext(ctx, "generation completed",
		slog.String("provider", "claude"),
		slog.String("model", string(message.Model)),
		slog.Int64("completion_tokens", message.Usage.OutputTokens),
		slog.Duration("duration", time.Since(start)))

	return &query.GenResponse{
		Content:          textBlock.Text,
		Model:            string(message.Model),
		PromptTokens:     int(message.Usage.InputTokens),
		CompletionTokens: int(message.Usage.OutputTokens),
	}, nil
}

// GenerateStream produces the answer incrementally. The returned
// channel closes when the stream ends or ctx expires; consumers that
// stop reading must cancel ctx to release the upstream stream.
func (c *Claude) GenerateStream(ctx context.Context, req query.GenRequest) (<-chan query.StreamChunk, error) {
	stream := c.client.Messages.NewStreaming(ctx, c.buildParams(req))

	out := make(chan query.StreamChunk)
	go func() {
		defer close(out)
		defer func() {
			if closeErr := stream.Close(); closeErr != nil {
				slog.Warn("failed to close claude stream", slog.Any("error", closeErr))
			}
		}()

		for stream.Next() {
			event := stream.Current()
			deltaEvent, ok := event.AsAny().(anthropic.ContentBlockDeltaEvent)
			if !ok {
				continue
			}
			textDelta, ok := deltaEvent.Delta.AsAny().(anthropic.TextDelta)
			if !ok || textDelta.Text == "" {
				continue
			}

			select {
			case out <- query.StreamChunk{Text: textDelta.Text}:
			case <-ctx.Done():
				return
			}
		}

		if err := stream.Err(); err != nil && ctx.Err() == nil {
			select {
			case out <- query.StreamChunk{Err: classifyClaudeError(err)}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}

func (c *Claude) buildParams(req query.GenRequest) anthropic.MessageNewParams {
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}

	return anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(req.MaxTokens),
		System: []anthropic.TextBlockParam{
			{Text: req.System},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewTextBlock(req.Prompt),
			),
		},
		Temperature: anthropic.Float(float64(req.Temperature)),
	}
}

// classifyClaudeError maps SDK errors onto the resilience taxonomy so
// retry and breaker decisions match the upstream failure mode.
func classifyClaudeError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode > 0 {
		return fmt.Errorf("claude api error: %w", &errdefs.HTTPError{
			StatusCode: apiErr.StatusCode,
			Message:    apiErr.Error(),
		})
	}
	return fmt.Errorf("claude api error: %w", err)
}
