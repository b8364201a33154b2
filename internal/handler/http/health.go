package http

import (
	"context"
	"net/http"
	"time"

	"lexgate/internal/handler/http/respond"
	"lexgate/internal/usecase/query"
)

// healthResponse is the JSON body of GET /healthz.
type healthResponse struct {
	Status    string             `json:"status"`
	Timestamp string             `json:"timestamp"`
	Details   query.HealthStatus `json:"details"`
}

// HealthHandler reports gateway health: cache reachability, breaker
// states and the active generation provider. Open breakers do not make
// the gateway unhealthy; they are upstream conditions the gateway is
// handling.
type HealthHandler struct {
	Service *query.Service
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	details := h.Service.Health(ctx)

	status := "healthy"
	code := http.StatusOK
	if !details.Cache.Healthy {
		status = "degraded"
		// Cache loss degrades latency, not correctness: stay 200 so
		// orchestrators do not restart a working gateway.
	}

	respond.JSON(w, code, healthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Details:   details,
	})
}
