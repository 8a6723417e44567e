package handlers

import (
	"context"
	"net/http"
	"time"
)

const healthProbeTimeout = 2 * time.Second

// Health handles GET /v1/healthz with a per-dependency breakdown. The overall
// status degrades only when the primary store is down; the secondary mirror
// and the upstream key are reported but advisory.
func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthProbeTimeout)
	defer cancel()

	checks := map[string]string{
		"database":  probe(ctx, a.DB),
		"secondary": probe(ctx, a.Secondary),
	}
	if a.HasUpstreamKey {
		checks["generation_api"] = "configured"
	} else {
		checks["generation_api"] = "missing_credentials"
	}

	status := http.StatusOK
	overall := "ok"
	if checks["database"] == "down" {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	a.json(w, status, map[string]any{
		"status": overall,
		"checks": checks,
	})
}

func probe(ctx context.Context, p Pinger) string {
	if p == nil {
		return "disabled"
	}
	if err := p.Ping(ctx); err != nil {
		return "down"
	}
	return "ok"
}
