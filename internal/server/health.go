package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

type DBPinger interface {
	Ping(ctx context.Context) error
}

type HealthChecker struct {
	db         DBPinger
	feedHost   string
	httpClient *http.Client
	log        *slog.Logger
}

func NewHealthChecker(db DBPinger, feedHost string, log *slog.Logger) *HealthChecker {
	clientTO := 5
	return &HealthChecker{
		db:         db,
		feedHost:   feedHost,
		httpClient: &http.Client{Timeout: time.Duration(clientTO) * time.Second},
		log:        log,
	}
}

func (h *HealthChecker) ServeHTTP(writer http.ResponseWriter, req *http.Request) {
	h.log.DebugContext(req.Context(), "Performing health checks...")

	var err error
	status := make(map[string]string)
	overallStatus := http.StatusOK

	if err = h.db.Ping(req.Context()); err != nil {
		status["database"] = "unavailable"
		overallStatus = http.StatusServiceUnavailable
		h.log.WarnContext(req.Context(), "Health check failed: DB ping", "error", err)
	} else {
		status["database"] = "ok"
	}

	resp, err := h.httpClient.Head(h.feedHost) //nolint:noctx // ctx is overhead for this healthcheck
	switch {
	case err != nil:
		status["feed_host"] = "unreachable"
		overallStatus = http.StatusServiceUnavailable
		h.log.WarnContext(
			req.Context(),
			"Health check failed: feed host unreachable",
			"host",
			h.feedHost,
			"error",
			err,
		)
	case resp.StatusCode >= http.StatusBadRequest:
		status["feed_host"] = "degraded"
		overallStatus = http.StatusServiceUnavailable
		h.log.WarnContext(
			req.Context(),
			"Health check failed: feed host returned error status",
			"host",
			h.feedHost,
			"status_code",
			resp.StatusCode,
		)
	default:
		status["feed_host"] = "ok"
	}
	if resp != nil {
		if err = resp.Body.Close(); err != nil {
			h.log.WarnContext(req.Context(), "Failed to close response body", "error", err)
		}
	}

	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(overallStatus)
	if err = json.NewEncoder(writer).Encode(status); err != nil {
		h.log.ErrorContext(req.Context(), "Failed to write health check response", "error", err)
	}

	h.log.DebugContext(req.Context(), "Health checks completed", "status", overallStatus)
}
