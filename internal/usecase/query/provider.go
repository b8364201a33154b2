package query

import (
	"context"
)

// DocumentSearcher is the capability interface for the document
// retrieval collaborator. The router depends only on this interface,
// never on a concrete client, so tests can substitute fakes.
type DocumentSearcher interface {
	// Search returns passages relevant to the query, ordered by score.
	Search(ctx context.Context, query string, topK int) ([]Passage, error)
}

// CaseFilters narrows an external case-law search.
type CaseFilters struct {
	// Instance is the court instance to search ("1" through "4").
	Instance string
	// Limit caps the number of returned cases.
	Limit int
	// Year filters by decision year when non-zero.
	Year int
}

// CaseRecord is one case returned by the external search service.
type CaseRecord struct {
	CaseNumber  string  `json:"case_number"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	URL         string  `json:"url"`
	Score       float32 `json:"score"`
}

// CaseSearcher is the capability interface for the external case-law
// search collaborator.
type CaseSearcher interface {
	// SearchCases returns cases relevant to the query, ordered by score.
	SearchCases(ctx context.Context, query string, filters CaseFilters) ([]CaseRecord, error)
}

// GenRequest is the input to a generation call.
type GenRequest struct {
	// System is the assistant persona and grounding instructions.
	System string
	// Prompt is the user query plus the composed context.
	Prompt string
	// Model overrides the provider's default model when non-empty.
	Model string
	// MaxTokens caps the response length.
	MaxTokens int
	// Temperature controls sampling randomness.
	Temperature float32
}

// GenResponse is the buffered result of a generation call.
type GenResponse struct {
	Content          string `json:"content"`
	Model            string `json:"model"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
}

// StreamChunk is one increment of a streamed generation. A closed
// channel marks the end of the stream; a chunk with Err set reports a
// mid-stream failure and is the last chunk delivered.
type StreamChunk struct {
	Text string
	Err  error
}

// Generator is the capability interface for the generation backend.
type Generator interface {
	// Generate produces a complete answer.
	Generate(ctx context.Context, req GenRequest) (*GenResponse, error)

	// GenerateStream produces the answer incrementally. The returned
	// channel is closed when generation completes, the context expires,
	// or the consumer cancels the context.
	GenerateStream(ctx context.Context, req GenRequest) (<-chan StreamChunk, error)

	// Name identifies the provider ("openai", "claude", "noop").
	Name() string
}
