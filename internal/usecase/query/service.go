// Package query implements the resilient query router. It classifies a
// query, dispatches the selected knowledge sources concurrently through
// the cache and resilience layers, merges the evidence deterministically
// and invokes generation, buffered or streamed.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"lexgate/internal/infra/cache"
	"lexgate/internal/resilience"
	"lexgate/internal/resilience/circuitbreaker"
	"lexgate/internal/resilience/errdefs"
)

// Sentinel errors for router operations.
var (
	// ErrInvalidQuery is returned when the query text is empty.
	ErrInvalidQuery = errors.New("query text cannot be empty")
)

// Named operations wrapped by the resilience composer. Each gets its
// own circuit breaker.
const (
	opRetrievalSearch = "retrieval.search"
	opCaseSearch      = "caselaw.search_cases"
	opGeneration      = "generation.generate"
)

// systemPrompt is the assistant persona for answer generation.
const systemPrompt = `You are a legal research assistant. Use the provided context to give an accurate, useful answer. If the context does not contain the needed information, say so honestly instead of guessing.`

// Config holds router configuration.
type Config struct {
	// SourceTTL is the cache lifetime for per-source dispatch results.
	SourceTTL time.Duration

	// AnswerTTL is the cache lifetime for buffered generation answers.
	AnswerTTL time.Duration

	// MaxContextChars is the composed-context size budget.
	MaxContextChars int

	// DefaultTopK is the document retrieval result cap when the request
	// does not set one.
	DefaultTopK int

	// DefaultCaseLimit is the case-search result cap when the request
	// does not set one.
	DefaultCaseLimit int

	// CaseInstance is the court instance passed to case search.
	CaseInstance string

	// MaxTokens caps generation response length.
	MaxTokens int

	// Temperature is the generation sampling temperature.
	Temperature float32
}

// DefaultConfig returns the default router configuration.
func DefaultConfig() Config {
	return Config{
		SourceTTL:        1 * time.Hour,
		AnswerTTL:        30 * time.Minute,
		MaxContextChars:  8000,
		DefaultTopK:      5,
		DefaultCaseLimit: 5,
		CaseInstance:     "3",
		MaxTokens:        1024,
		Temperature:      0.7,
	}
}

// Service is the stateless query router. The cache service and breaker
// registry it holds are shared across concurrent requests.
type Service struct {
	docs     DocumentSearcher
	cases    CaseSearcher
	gen      Generator
	cache    *cache.Service
	composer *resilience.Composer
	policies resilience.Policies
	cfg      Config
}

// NewService creates a query router over the given collaborators.
func NewService(
	docs DocumentSearcher,
	cases CaseSearcher,
	gen Generator,
	cacheSvc *cache.Service,
	composer *resilience.Composer,
	policies resilience.Policies,
	cfg Config,
) *Service {
	return &Service{
		docs:     docs,
		cases:    cases,
		gen:      gen,
		cache:    cacheSvc,
		composer: composer,
		policies: policies,
		cfg:      cfg,
	}
}

// Route processes a query end to end: classify, dispatch, merge,
// generate. Per-source failures are recorded in the response metadata,
// never raised; a request with zero successful sources still completes,
// answering from the model alone. Generation failures are fatal and
// propagate.
func (s *Service) Route(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrInvalidQuery
	}
	req = s.applyDefaults(req)

	selected := selectSources(req)
	slog.InfoContext(ctx, "query classified",
		slog.String("query", truncateForLog(req.Text)),
		slog.Any("sources", selected))

	results, omitted := s.dispatch(ctx, req, selected)
	composed := merge(results, s.cfg.MaxContextChars)
	contextChars.Observe(float64(composed.Chars))

	answerKey := s.answerKey(req, selected, composed)
	var cached Response
	if s.cache.Get(ctx, answerKey, &cached) {
		cached.FromCache = true
		cached.Elapsed = time.Since(start)
		routerRequests.WithLabelValues("cache_hit").Inc()
		return &cached, nil
	}

	genReq := s.buildGenRequest(req, composed)
	var genResp *GenResponse
	err := s.composer.Execute(ctx, opGeneration, s.policies.Generation, func(ctx context.Context) error {
		resp, genErr := s.gen.Generate(ctx, genReq)
		if genErr != nil {
			return genErr
		}
		genResp = resp
		return nil
	})
	if err != nil {
		routerRequests.WithLabelValues("error").Inc()
		slog.ErrorContext(ctx, "generation failed",
			slog.String("provider", s.gen.Name()),
			slog.Any("error", err))
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	resp := &Response{
		Answer:       genResp.Content,
		Model:        genResp.Model,
		Provider:     s.gen.Name(),
		Sources:      composed.Sources(),
		Omitted:      omitted,
		ContextChars: composed.Chars,
		Elapsed:      time.Since(start),
	}

	s.cache.Set(ctx, answerKey, resp, s.cfg.AnswerTTL)
	routerRequests.WithLabelValues("success").Inc()

	slog.InfoContext(ctx, "query completed",
		slog.Any("sources", resp.Sources),
		slog.Int("omitted", len(resp.Omitted)),
		slog.Int("context_chars", resp.ContextChars),
		slog.Duration("elapsed", resp.Elapsed))

	return resp, nil
}

// dispatch runs all selected source calls concurrently and waits for
// every one to settle; it is not fail-fast. Each dispatch is
// independently time-bounded by its resilience policy, so one slow
// source cannot block another. Results come back in selection order.
func (s *Service) dispatch(ctx context.Context, req Request, selected []Source) ([]SourceResult, []Omission) {
	type outcome struct {
		result SourceResult
		hit    bool
		err    error
	}

	outcomes := make([]outcome, len(selected))
	var wg sync.WaitGroup
	for i, src := range selected {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			result, hit, err := s.dispatchSource(ctx, req, src)
			outcomes[i] = outcome{result: result, hit: hit, err: err}
		}(i, src)
	}
	wg.Wait()

	var results []SourceResult
	var omitted []Omission
	for i, src := range selected {
		out := outcomes[i]
		if out.err != nil {
			sourceDispatches.WithLabelValues(string(src), "error").Inc()
			slog.WarnContext(ctx, "source dispatch failed, omitting from context",
				slog.String("source", string(src)),
				slog.Any("error", out.err))
			omitted = append(omitted, Omission{Source: src, Reason: omissionReason(out.err)})
			continue
		}

		if out.hit {
			sourceDispatches.WithLabelValues(string(src), "cache_hit").Inc()
		} else {
			sourceDispatches.WithLabelValues(string(src), "success").Inc()
		}
		dispatchDuration.WithLabelValues(string(src)).Observe(out.result.Elapsed.Seconds())

		if len(out.result.Passages) == 0 {
			omitted = append(omitted, Omission{Source: src, Reason: "no results"})
			continue
		}
		results = append(results, out.result)
	}

	return results, omitted
}

// dispatchSource resolves one source through the cache; on a miss the
// resilient source call computes the entry, at most once per key across
// concurrent requests.
func (s *Service) dispatchSource(ctx context.Context, req Request, src Source) (SourceResult, bool, error) {
	switch src {
	case SourceRetrieval:
		key := cache.Key(cache.PrefixSource, string(src), req.Text, strconv.Itoa(req.TopK))
		return cache.GetOrCompute(ctx, s.cache, key, s.cfg.SourceTTL, func(ctx context.Context) (SourceResult, error) {
			start := time.Now()
			var passages []Passage
			err := s.composer.Execute(ctx, opRetrievalSearch, s.policies.Retrieval, func(ctx context.Context) error {
				found, searchErr := s.docs.Search(ctx, req.Text, req.TopK)
				if searchErr != nil {
					return searchErr
				}
				passages = found
				return nil
			})
			if err != nil {
				return SourceResult{}, err
			}
			return SourceResult{Source: src, Passages: passages, Elapsed: time.Since(start)}, nil
		})

	case SourceCaseLaw:
		key := cache.Key(cache.PrefixSource, string(src), req.Text, s.cfg.CaseInstance, strconv.Itoa(req.CaseLimit))
		return cache.GetOrCompute(ctx, s.cache, key, s.cfg.SourceTTL, func(ctx context.Context) (SourceResult, error) {
			start := time.Now()
			var records []CaseRecord
			err := s.composer.Execute(ctx, opCaseSearch, s.policies.CaseSearch, func(ctx context.Context) error {
				filters := CaseFilters{Instance: s.cfg.CaseInstance, Limit: req.CaseLimit}
				found, searchErr := s.cases.SearchCases(ctx, req.Text, filters)
				if searchErr != nil {
					return searchErr
				}
				records = found
				return nil
			})
			if err != nil {
				return SourceResult{}, err
			}
			return SourceResult{Source: src, Passages: casePassages(records), Elapsed: time.Since(start)}, nil
		})

	default:
		return SourceResult{}, false, fmt.Errorf("unknown source: %s", src)
	}
}

// casePassages converts case records to passages for merging.
func casePassages(records []CaseRecord) []Passage {
	passages := make([]Passage, 0, len(records))
	for _, rec := range records {
		content := rec.Description
		if content == "" {
			content = rec.Title
		}
		passages = append(passages, Passage{
			Content: content,
			Score:   rec.Score,
			Title:   caseTitle(rec),
			URL:     rec.URL,
		})
	}
	return passages
}

func caseTitle(rec CaseRecord) string {
	if rec.CaseNumber != "" && rec.Title != "" {
		return rec.CaseNumber + " " + rec.Title
	}
	if rec.Title != "" {
		return rec.Title
	}
	return rec.CaseNumber
}

// buildGenRequest assembles the generation request from the query and
// the composed context.
func (s *Service) buildGenRequest(req Request, composed ComposedContext) GenRequest {
	prompt := req.Text
	if rendered := composed.Render(); rendered != "" {
		prompt += "\n\n" + rendered
	}
	return GenRequest{
		System:      systemPrompt,
		Prompt:      prompt,
		Model:       req.Model,
		MaxTokens:   s.cfg.MaxTokens,
		Temperature: s.cfg.Temperature,
	}
}

// answerKey derives the cache key for a buffered answer from everything
// that influences it: query text, provider, model, selected sources and
// the composed context itself.
func (s *Service) answerKey(req Request, selected []Source, composed ComposedContext) string {
	parts := []string{req.Text, s.gen.Name(), req.Model}
	for _, src := range selected {
		parts = append(parts, string(src))
	}
	parts = append(parts, strconv.FormatUint(contentHash(composed.Render()), 16))
	return cache.Key(cache.PrefixAnswer, parts...)
}

func (s *Service) applyDefaults(req Request) Request {
	if req.TopK <= 0 {
		req.TopK = s.cfg.DefaultTopK
	}
	if req.CaseLimit <= 0 {
		req.CaseLimit = s.cfg.DefaultCaseLimit
	}
	return req
}

// omissionReason maps a dispatch error to a stable metadata label so
// callers can tell a rejected call from a failed one.
func omissionReason(err error) string {
	switch {
	case errors.Is(err, errdefs.ErrCircuitOpen):
		return "circuit open"
	case errors.Is(err, errdefs.ErrTimeoutExceeded):
		return "timed out"
	default:
		return err.Error()
	}
}

func truncateForLog(text string) string {
	const max = 80
	if len(text) <= max {
		return text
	}
	return text[:max] + "..."
}

// HealthStatus reports the state of the router's shared dependencies.
type HealthStatus struct {
	Cache    cache.HealthStatus      `json:"cache"`
	Breakers []circuitbreaker.Status `json:"breakers"`
	Provider string                  `json:"provider"`
}

// Health probes cache reachability and reports current circuit-breaker
// states.
func (s *Service) Health(ctx context.Context) HealthStatus {
	return HealthStatus{
		Cache:    s.cache.HealthCheck(ctx),
		Breakers: s.composer.Registry().Snapshot(),
		Provider: s.gen.Name(),
	}
}

// Invalidate removes cached entries whose keys start with prefix. An
// empty prefix clears every entry written by the gateway.
func (s *Service) Invalidate(ctx context.Context, prefix string) (int64, error) {
	return s.cache.InvalidatePattern(ctx, prefix)
}
