package query

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// RouteStream processes a query like Route but returns the answer as a
// lazy, forward-only chunk sequence. Source dispatch, merge and
// metadata behave exactly as in Route; streamed answers are not cached.
//
// The whole stream is bounded by the generation timeout. Consumers stop
// early by calling the result's Cancel (or cancelling ctx), which stops
// upstream token consumption promptly. Callers must call Cancel once
// consumption ends, even after draining the channel.
func (s *Service) RouteStream(ctx context.Context, req Request) (*StreamResult, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, ErrInvalidQuery
	}
	req = s.applyDefaults(req)

	selected := selectSources(req)
	results, omitted := s.dispatch(ctx, req, selected)
	composed := merge(results, s.cfg.MaxContextChars)
	contextChars.Observe(float64(composed.Chars))

	genReq := s.buildGenRequest(req, composed)

	// The stream outlives the setup call, so the deadline lives on the
	// context rather than inside the composer's timeout guard.
	streamCtx, cancel := context.WithTimeout(ctx, s.policies.Generation.Timeout)

	var chunks <-chan StreamChunk
	err := s.composer.ExecuteStreaming(streamCtx, opGeneration, s.policies.Generation, func(ctx context.Context) error {
		ch, setupErr := s.gen.GenerateStream(ctx, genReq)
		if setupErr != nil {
			return setupErr
		}
		chunks = ch
		return nil
	})
	if err != nil {
		cancel()
		routerRequests.WithLabelValues("error").Inc()
		slog.ErrorContext(ctx, "stream generation failed",
			slog.String("provider", s.gen.Name()),
			slog.Any("error", err))
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	routerRequests.WithLabelValues("stream").Inc()
	slog.InfoContext(ctx, "query stream started",
		slog.Any("sources", composed.Sources()),
		slog.Int("omitted", len(omitted)),
		slog.Int("context_chars", composed.Chars))

	return &StreamResult{
		Chunks:   chunks,
		Sources:  composed.Sources(),
		Omitted:  omitted,
		Provider: s.gen.Name(),
		Cancel:   cancel,
	}, nil
}
