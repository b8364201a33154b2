package generation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"lexgate/internal/resilience/errdefs"
	"lexgate/internal/usecase/query"
)

// OpenAIConfig holds configuration for the OpenAI generation adapter.
type OpenAIConfig struct {
	// APIKey authenticates against the OpenAI API.
	APIKey string

	// BaseURL overrides the API endpoint, e.g. for a local
	// OpenAI-compatible server. Empty uses the public API.
	BaseURL string

	// Model is the default model when the request does not name one.
	Model string
}

// OpenAI implements query.Generator using the OpenAI chat completion
// API. Resilience is applied by the router's composer, not here.
type OpenAI struct {
	client *openai.Client
	cfg    OpenAIConfig
}

// NewOpenAI creates an OpenAI generation adapter.
func NewOpenAI(cfg OpenAIConfig) *OpenAI {
	if cfg.Model == "" {
		cfg.Model = openai.GPT4oMini
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	slog.Info("initialized openai generator",
		slog.String("model", cfg.Model))

	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		cfg:    cfg,
	}
}

// Name identifies the provider.
func (o *OpenAI) Name() string {
	return "openai"
}

// Generate produces a complete answer.
func (o *OpenAI) Generate(ctx context.Context, req query.GenRequest) (*query.GenResponse, error) {
	start := time.Now()

	resp, err := o.client.CreateChatCompletion(ctx, o.buildRequest(req, false))
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: openai returned no choices", errdefs.ErrTransient)
	}

	slog.InfoContext(ctx, "generation completed",
		slog.String("provider", "openai"),
		slog.String("model", resp.Model),
		slog.Int("completion_tokens", resp.Usage.CompletionTokens),
		slog.Duration("duration", time.Since(start)))

	return &query.GenResponse{
		Content:          resp.Choices[0].Message.Content,
		Model:            resp.Model,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

// GenerateStream produces the answer incrementally. The returned
// channel closes when the stream ends or ctx expires; consumers that
// stop reading must cancel ctx to release the upstream stream.
func (o *OpenAI) GenerateStream(ctx context.Context, req query.GenRequest) (<-chan query.StreamChunk, error) {
	stream, err := o.client.CreateChatCompletionStream(ctx, o.buildRequest(req, true))
	if err != nil {
		return nil, classifyOpenAIError(err)
	}

	out := make(chan query.StreamChunk)
	go func() {
		defer close(out)
		defer func() {
			if closeErr := stream.Close(); closeErr != nil {
				slog.Warn("failed to close openai stream", slog.Any("error", closeErr))
			}
		}()

		for {
			resp, recvErr := stream.Recv()
			if errors.Is(recvErr, io.EOF) {
				return
			}
			if recvErr != nil {
				if ctx.Err() != nil {
					// Deadline or consumer cancellation: partial output
					// already delivered is the final output.
					return
				}
				select {
				case out <- query.StreamChunk{Err: classifyOpenAIError(recvErr)}:
				case <-ctx.Done():
				}
				return
			}

			if len(resp.Choices) == 0 {
				continue
			}
			text := resp.Choices[0].Delta.Content
			if text == "" {
				continue
			}

			select {
			case out <- query.StreamChunk{Text: text}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (o *OpenAI) buildRequest(req query.GenRequest, stream bool) openai.ChatCompletionRequest {
	model := req.Model
	if model == "" {
		model = o.cfg.Model
	}

	return openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      stream,
	}
}

// classifyOpenAIError maps SDK errors onto the resilience taxonomy so
// retry and breaker decisions match the upstream failure mode.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return fmt.Errorf("openai api error: %w", &errdefs.HTTPError{
			StatusCode: apiErr.HTTPStatusCode,
			Message:    apiErr.Message,
		})
	}
	return fmt.Errorf("openai api error: %w", err)
}
