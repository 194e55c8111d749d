package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// Pinger is anything whose liveness the health check should confirm: the
// SQL pool, and the Redis session store when one is configured.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	pingers map[string]Pinger
	logger  *slog.Logger
}

func NewHealthHandler(pingers map[string]Pinger, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{pingers: pingers, logger: logger}
}

type healthResponse struct {
	Status string `json:"status"`
	Failed string `json:"failed,omitempty"`
}

// HandleHealth: GET /healthz
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	for name, p := range h.pingers {
		if err := p.Ping(ctx); err != nil {
			h.logger.Error("health check failed",
				slog.String("dependency", name),
				slog.String("error", err.Error()),
			)
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Failed: name})
			return
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
