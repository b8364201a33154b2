package query

import (
	"time"
)

// Source identifies a knowledge source dispatched by the router.
type Source string

// Knowledge sources, in merge-priority order.
const (
	// SourceRetrieval is the document retrieval index.
	SourceRetrieval Source = "retrieval"
	// SourceCaseLaw is the external case-law search service.
	SourceCaseLaw Source = "caselaw"
)

// sourcePriority is the fixed merge order: document retrieval before
// external case search. Merge order never depends on completion order.
var sourcePriority = []Source{SourceRetrieval, SourceCaseLaw}

// Passage is one scored piece of evidence from a source.
type Passage struct {
	Content string  `json:"content"`
	Score   float32 `json:"score"`
	Title   string  `json:"title,omitempty"`
	URL     string  `json:"url,omitempty"`
}

// Request is an immutable query accepted by the router. It lives for
// the duration of one request.
type Request struct {
	// Text is the user's natural-language query.
	Text string

	// UseRetrieval and UseCaseLaw select sources explicitly. When nil,
	// the router classifies the query to decide.
	UseRetrieval *bool
	UseCaseLaw   *bool

	// Model overrides the provider's default generation model.
	Model string

	// TopK caps document retrieval results (service default when zero).
	TopK int

	// CaseLimit caps case-search results (service default when zero).
	CaseLimit int
}

// SourceResult is the outcome of one successful source dispatch. It is
// owned by the router during merge and cached as a complete value.
type SourceResult struct {
	Source   Source        `json:"source"`
	Passages []Passage     `json:"passages"`
	Elapsed  time.Duration `json:"elapsed"`
}

// Omission records a source that was selected but contributed nothing,
// and why. Omissions are reported in response metadata, never raised.
type Omission struct {
	Source Source `json:"source"`
	Reason string `json:"reason"`
}

// Response is the buffered answer for one request.
type Response struct {
	Answer       string        `json:"answer"`
	Model        string        `json:"model"`
	Provider     string        `json:"provider"`
	Sources      []Source      `json:"sources"`
	Omitted      []Omission    `json:"omitted,omitempty"`
	ContextChars int           `json:"context_chars"`
	FromCache    bool          `json:"from_cache"`
	Elapsed      time.Duration `json:"elapsed"`
}

// StreamResult is the streaming answer for one request. Chunks is a
// forward-only sequence; the consumer stops it early by calling Cancel
// (or cancelling the request context), which promptly stops upstream
// consumption. When the generation deadline expires mid-stream, the
// channel closes and whatever was produced is the final partial output.
type StreamResult struct {
	Chunks   <-chan StreamChunk
	Sources  []Source
	Omitted  []Omission
	Provider string
	Cancel   func()
}

// Section is the contribution of one source to the composed context.
type Section struct {
	Source   Source
	Header   string
	Passages []Passage
}

// ComposedContext is the merged, deduplicated evidence passed to
// generation. Built once per request and consumed immediately.
type ComposedContext struct {
	Sections []Section
	Chars    int
}

// Empty reports whether no source contributed any passage.
func (c ComposedContext) Empty() bool {
	return len(c.Sections) == 0
}

// Sources lists the sources that contributed, in priority order.
func (c ComposedContext) Sources() []Source {
	out := make([]Source, 0, len(c.Sections))
	for _, sec := range c.Sections {
		out = append(out, sec.Source)
	}
	return out
}
