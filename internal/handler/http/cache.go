package http

import (
	"fmt"
	"log/slog"
	"net/http"

	"lexgate/internal/handler/http/respond"
	"lexgate/internal/observability/logging"
	"lexgate/internal/usecase/query"
)

// CacheHandler serves DELETE /cache?prefix= for operational cache
// invalidation. The prefix selects a key family ("source", "answer");
// an empty prefix is rejected to prevent accidental full flushes.
type CacheHandler struct {
	Service *query.Service
	Logger  *slog.Logger
}

func (h *CacheHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		respond.Error(w, http.StatusMethodNotAllowed, fmt.Errorf("method %s not allowed", r.Method))
		return
	}

	prefix := r.URL.Query().Get("prefix")
	if prefix == "" {
		respond.Error(w, http.StatusBadRequest, fmt.Errorf("prefix query parameter is required"))
		return
	}

	deleted, err := h.Service.Invalidate(r.Context(), prefix)
	if err != nil {
		logger := logging.WithRequestID(r.Context(), h.Logger)
		logger.Error("cache invalidation failed",
			slog.String("prefix", prefix),
			slog.String("error", respond.SanitizeError(err)))
		respond.SafeError(w, http.StatusInternalServerError, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]any{
		"prefix":  prefix,
		"deleted": deleted,
	})
}
