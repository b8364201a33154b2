package http

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lexgate/internal/handler/http/requestid"
	"lexgate/internal/observability/tracing"
	"lexgate/internal/usecase/query"
)

// maxRequestBodyBytes caps incoming JSON bodies. Queries are short;
// anything near this size is abuse.
const maxRequestBodyBytes = 64 * 1024

// NewRouter wires the gateway's routes and middleware chain. The chain
// runs outside-in: request ID, tracing, logging, metrics, recovery,
// body limit, handler.
func NewRouter(svc *query.Service, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/query", &QueryHandler{Service: svc, Logger: logger})
	mux.Handle("/query/stream", &StreamHandler{Service: svc, Logger: logger})
	mux.Handle("/healthz", &HealthHandler{Service: svc})
	mux.Handle("/cache", &CacheHandler{Service: svc, Logger: logger})
	mux.Handle("/metrics", promhttp.Handler())

	var handler http.Handler = mux
	handler = LimitRequestBody(maxRequestBodyBytes)(handler)
	handler = Recover(logger)(handler)
	handler = Metrics(handler)
	handler = Logging(logger)(handler)
	handler = tracing.Middleware(handler)
	handler = requestid.Middleware(handler)

	return handler
}
