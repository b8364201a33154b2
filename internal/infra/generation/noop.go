package generation

import (
	"context"

	"lexgate/internal/usecase/query"
)

// NoOp is a generator that echoes a canned answer without calling any
// backend. Useful for development and tests when no API key is set.
type NoOp struct{}

// NewNoOp creates a new NoOp generator.
func NewNoOp() *NoOp {
	return &NoOp{}
}

// Name identifies the provider.
func (n *NoOp) Name() string {
	return "noop"
}

// Generate returns a canned answer built from the prompt.
func (n *NoOp) Generate(_ context.Context, req query.GenRequest) (*query.GenResponse, error) {
	return &query.GenResponse{
		Content: "generation is disabled; prompt was: " + truncate(req.Prompt, 200),
		Model:   "noop",
	}, nil
}

// GenerateStream returns the canned answer as a single chunk.
func (n *NoOp) GenerateStream(ctx context.Context, req query.GenRequest) (<-chan query.StreamChunk, error) {
	resp, err := n.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make(chan query.StreamChunk, 1)
	out <- query.StreamChunk{Text: resp.Content}
	close(out)
	return out, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
