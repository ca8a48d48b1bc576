package handler

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// readinessTimeout bounds all dependency pings of one readiness probe.
const readinessTimeout = 5 * time.Second

// Dependency states reported by /readyz.
const (
	stateOK            = "ok"
	stateUnavailable   = "unavailable"
	stateNotConfigured = "not configured"
)

// HealthChecker is anything /readyz can ping.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type dependency struct {
	name    string
	checker HealthChecker
}

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	deps   []dependency
	logger *slog.Logger
}

// NewHealthHandler wires the store and the optional cache. A nil cache is
// reported as not configured and does not fail readiness.
func NewHealthHandler(db, cache HealthChecker, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{
		deps: []dependency{
			{name: "postgres", checker: db},
			{name: "redis", checker: cache},
		},
		logger: logger,
	}
}

// HealthResponse is the body of both probes.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// Healthz reports that the process is serving.
//
// GET /health, GET /healthz
func (h *HealthHandler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: stateOK})
}

// Readyz pings every configured dependency in parallel and answers 503 if
// any of them fails.
//
// GET /readyz
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
	defer cancel()

	states := make([]string, len(h.deps))
	var wg sync.WaitGroup
	for i, dep := range h.deps {
		if dep.checker == nil {
			states[i] = stateNotConfigured
			continue
		}
		wg.Add(1)
		go func(i int, dep dependency) {
			defer wg.Done()
			states[i] = h.ping(ctx, dep)
		}(i, dep)
	}
	wg.Wait()

	resp := HealthResponse{Status: stateOK, Checks: make(map[string]string, len(h.deps))}
	code := http.StatusOK
	for i, dep := range h.deps {
		resp.Checks[dep.name] = states[i]
		if states[i] == stateUnavailable {
			resp.Status = "unhealthy"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, resp)
}

// ping keeps error details in the log and out of the response.
func (h *HealthHandler) ping(ctx context.Context, dep dependency) string {
	start := time.Now()
	if err := dep.checker.Ping(ctx); err != nil {
		h.logger.Warn("readiness check failed",
			slog.String("dependency", dep.name),
			slog.Duration("elapsed", time.Since(start)),
			slog.String("error", err.Error()),
		)
		return stateUnavailable
	}
	return stateOK
}
