package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"lexgate/internal/handler/http/respond"
	"lexgate/internal/observability/logging"
	"lexgate/internal/usecase/query"
)

// StreamHandler serves incremental answers over POST /query/stream as
// server-sent events. Event types:
//
//	meta  - sources, omissions and provider, sent once before chunks
//	chunk - one answer fragment
//	error - generation failed mid-stream; terminates the stream
//	done  - the answer is complete
//
// A client that disconnects cancels the request context, which stops
// upstream generation.
type StreamHandler struct {
	Service *query.Service
	Logger  *slog.Logger
}

type streamMeta struct {
	Sources  []query.Source   `json:"sources"`
	Omitted  []query.Omission `json:"omitted,omitempty"`
	Provider string           `json:"provider"`
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respond.Error(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respond.Error(w, http.StatusInternalServerError, fmt.Errorf("streaming not supported"))
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	logger := logging.WithRequestID(r.Context(), h.Logger)

	result, err := h.Service.RouteStream(r.Context(), req.toServiceRequest())
	if err != nil {
		logger.Error("stream routing failed", slog.String("error", respond.SanitizeError(err)))
		respond.SafeError(w, statusForRoutingError(err), err)
		return
	}
	defer result.Cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	writeEvent(w, "meta", streamMeta{
		Sources:  result.Sources,
		Omitted:  result.Omitted,
		Provider: result.Provider,
	})
	flusher.Flush()

	for chunk := range result.Chunks {
		if chunk.Err != nil {
			logger.Error("stream generation failed",
				slog.String("error", respond.SanitizeError(chunk.Err)))
			writeEvent(w, "error", map[string]string{"error": "generation failed"})
			flusher.Flush()
			return
		}

		writeEvent(w, "chunk", map[string]string{"text": chunk.Text})
		flusher.Flush()
	}

	writeEvent(w, "done", map[string]bool{"complete": true})
	flusher.Flush()
}

func writeEvent(w http.ResponseWriter, event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
}
