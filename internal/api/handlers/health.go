package handlers

import (
	"context"
	"net/http"
	"time"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type StorageProbe interface {
	Available() bool
}

type HealthHandler struct {
	db      Pinger
	redis   Pinger
	storage StorageProbe
}

// NewHealthHandler builds the probes. Nil dependencies are reported as
// "not configured" and do not fail readiness.
func NewHealthHandler(db, rdb Pinger, storage StorageProbe) *HealthHandler {
	return &HealthHandler{db: db, redis: rdb, storage: storage}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := map[string]string{
		"database": ping(ctx, h.db),
		"redis":    ping(ctx, h.redis),
		"storage":  "not configured",
	}
	if h.storage != nil {
		checks["storage"] = "ok"
		if !h.storage.Available() {
			checks["storage"] = "unavailable"
		}
	}

	status := http.StatusOK
	for _, v := range checks {
		if v != "ok" && v != "not configured" {
			status = http.StatusServiceUnavailable
			break
		}
	}

	writeJSON(w, status, map[string]interface{}{"status": statusStr(status), "checks": checks})
}

func ping(ctx context.Context, p Pinger) string {
	if p == nil {
		return "not configured"
	}
	if err := p.Ping(ctx); err != nil {
		return "unhealthy: " + err.Error()
	}
	return "ok"
}

func statusStr(code int) string {
	if code == http.StatusOK {
		return "ok"
	}
	return "unhealthy"
}
