package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"lexgate/internal/handler/http/respond"
	"lexgate/internal/observability/logging"
	"lexgate/internal/resilience/errdefs"
	"lexgate/internal/usecase/query"
)

// queryRequest is the JSON body accepted by POST /query and
// POST /query/stream.
type queryRequest struct {
	Query        string `json:"query"`
	UseRetrieval *bool  `json:"use_retrieval"`
	UseCaseLaw   *bool  `json:"use_caselaw"`
	Model        string `json:"model"`
	TopK         int    `json:"top_k"`
	CaseLimit    int    `json:"case_limit"`
}

func (q queryRequest) toServiceRequest() query.Request {
	return query.Request{
		Text:         q.Query,
		UseRetrieval: q.UseRetrieval,
		UseCaseLaw:   q.UseCaseLaw,
		Model:        q.Model,
		TopK:         q.TopK,
		CaseLimit:    q.CaseLimit,
	}
}

// QueryHandler serves buffered answers over POST /query.
type QueryHandler struct {
	Service *query.Service
	Logger  *slog.Logger
}

func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respond.Error(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	resp, err := h.Service.Route(r.Context(), req.toServiceRequest())
	if err != nil {
		logger := logging.WithRequestID(r.Context(), h.Logger)
		logger.Error("query routing failed", slog.String("error", respond.SanitizeError(err)))
		respond.SafeError(w, statusForRoutingError(err), err)
		return
	}

	respond.JSON(w, http.StatusOK, resp)
}

// statusForRoutingError maps routing failures onto HTTP status codes.
// Circuit rejections and deadline overruns are upstream conditions, not
// gateway faults.
func statusForRoutingError(err error) int {
	switch {
	case errors.Is(err, query.ErrInvalidQuery):
		return http.StatusBadRequest
	case errors.Is(err, errdefs.ErrCircuitOpen):
		return http.StatusServiceUnavailable
	case errors.Is(err, errdefs.ErrTimeoutExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
