package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// HealthStatus represents the overall health status
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheckResponse represents a health check response
type HealthCheckResponse struct {
	Status    HealthStatus           `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Version   string                 `json:"version"`
	GitCommit string                 `json:"git_commit,omitempty"`
	Uptime    string                 `json:"uptime"`
	Checks    map[string]HealthCheck `json:"checks"`
	System    SystemInfo             `json:"system"`
	RequestID string                 `json:"request_id,omitempty"`
}

// HealthCheck represents an individual health check
type HealthCheck struct {
	Status   HealthStatus `json:"status"`
	Message  string       `json:"message,omitempty"`
	Duration string       `json:"duration,omitempty"`
}

// SystemInfo contains runtime information
type SystemInfo struct {
	GoVersion     string `json:"go_version"`
	NumGoroutines int    `json:"num_goroutines"`
	MemoryAlloc   uint64 `json:"memory_alloc_bytes"`
	WSClients     int    `json:"ws_clients"`
}

// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := map[string]HealthCheck{
		"database": s.checkDatabase(r.Context()),
		"contract": s.checkContract(),
	}

	overall := HealthStatusHealthy
	for _, c := range checks {
		switch {
		case c.Status == HealthStatusUnhealthy:
			overall = HealthStatusUnhealthy
		case c.Status == HealthStatusDegraded && overall == HealthStatusHealthy:
			overall = HealthStatusDegraded
		}
	}

	status := http.StatusOK
	if overall == HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	s.writeJSON(w, status, HealthCheckResponse{
		Status:    overall,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Version:   Version,
		GitCommit: GitCommit,
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Checks:    checks,
		System: SystemInfo{
			GoVersion:     runtime.Version(),
			NumGoroutines: runtime.NumGoroutine(),
			MemoryAlloc:   m.Alloc,
			WSClients:     s.hub.ClientCount(),
		},
		RequestID: middleware.GetReqID(r.Context()),
	})
}

// GET /version
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, GetVersionInfo())
}

func (s *Server) checkDatabase(ctx context.Context) HealthCheck {
	if s.db == nil {
		return HealthCheck{Status: HealthStatusDegraded, Message: "no local store"}
	}
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := s.db.Ping(ctx); err != nil {
		return HealthCheck{Status: HealthStatusUnhealthy, Message: err.Error()}
	}
	return HealthCheck{Status: HealthStatusHealthy, Duration: time.Since(start).String()}
}

// A missing contract is degraded: local data still works.
func (s *Server) checkContract() HealthCheck {
	if s.svc == nil || !s.svc.Configured() {
		return HealthCheck{Status: HealthStatusDegraded, Message: "contract address not configured"}
	}
	return HealthCheck{Status: HealthStatusHealthy}
}
