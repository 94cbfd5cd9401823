package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/heptiolabs/healthcheck"
)

const maxGoroutines = 10000

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes. Readiness requires the
// database to answer a ping.
type HealthHandler struct {
	health healthcheck.Handler
}

func NewHealthHandler(db Pinger) *HealthHandler {
	h := healthcheck.NewHandler()
	h.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutines))
	h.AddReadinessCheck("database", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			slog.Warn("health check failed", "check", "database", "error", err)
			return err
		}
		return nil
	})
	return &HealthHandler{health: h}
}

// HandleReady answers 200 when every check passes and 503 otherwise. Add
// ?full=1 for per-check detail.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	h.health.ReadyEndpoint(w, r)
}

func (h *HealthHandler) HandleLive(w http.ResponseWriter, r *http.Request) {
	h.health.LiveEndpoint(w, r)
}
