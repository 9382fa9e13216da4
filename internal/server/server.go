// file: internal/server/server.go
// version: 2.0.0
// guid: 4c5d6e7f-8a9b-0c1d-2e3f-4a5b6c7d8e9f

// Package server exposes a local-loopback HTTP status/progress API over
// the sync executor: current stage, device free space, recent run
// history, and a /progress SSE stream fed by the executor's progress
// callback. It is not the excluded GUI (spec §1, non-goal) — just the
// same kind of ambient operational surface the teacher's own
// internal/server package provided.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jdfalk/ipodsync/internal/executor"
	"github.com/jdfalk/ipodsync/internal/server/middleware"
	"github.com/jdfalk/ipodsync/internal/synclog"
)

// Status is a snapshot of the currently running sync (if any).
type Status struct {
	RunID     string    `json:"run_id,omitempty"`
	Running   bool      `json:"running"`
	Stage     string    `json:"stage,omitempty"`
	Current   int       `json:"current,omitempty"`
	Total     int       `json:"total,omitempty"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// ServerConfig holds the HTTP listener's configuration.
type ServerConfig struct {
	Host              string
	Port              string
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	BasicAuthUsername string
	BasicAuthPassHash string // bcrypt hash; empty disables auth
	RateLimitPerMin   int
	MountPoint        string
}

// GetDefaultServerConfig returns sane defaults for local use.
func GetDefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "127.0.0.1",
		Port:            "8787",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		IdleTimeout:     60 * time.Second,
		RateLimitPerMin: 120,
	}
}

// Server is the status/progress HTTP API.
type Server struct {
	cfg        ServerConfig
	router     *gin.Engine
	httpServer *http.Server
	hub        *EventHub
	history    *synclog.Store

	mu     sync.RWMutex
	status Status
}

// NewServer builds the router and wires middleware, grounded in the
// teacher's internal/server/server.go setup.
func NewServer(cfg ServerConfig, history *synclog.Store) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.MaxRequestBodySize(1 << 20))
	router.Use(middleware.NewIPRateLimiter(cfg.RateLimitPerMin, cfg.RateLimitPerMin).Middleware())
	router.Use(middleware.BasicAuth(cfg.BasicAuthUsername, cfg.BasicAuthPassHash))

	s := &Server{
		cfg:     cfg,
		router:  router,
		hub:     NewEventHub(),
		history: history,
	}
	s.setupRoutes()
	return s
}

// Progress returns the callback to hand to executor.Options.Progress for
// the given run ID: it updates the in-memory status snapshot and
// broadcasts to any connected SSE clients.
func (s *Server) Progress(runID string) func(stage string, current, total int, message string) {
	return func(stage string, current, total int, message string) {
		s.mu.Lock()
		s.status = Status{
			RunID: runID, Running: true, Stage: stage,
			Current: current, Total: total, Message: message,
			UpdatedAt: time.Now(),
		}
		s.mu.Unlock()
		s.hub.SendProgress(runID, stage, current, total, message)
	}
}

// RunFinished marks the in-memory status idle and broadcasts a terminal event.
func (s *Server) RunFinished(runID, outcome string, details map[string]any) {
	s.mu.Lock()
	s.status.Running = false
	s.status.UpdatedAt = time.Now()
	s.mu.Unlock()
	s.hub.SendStatus(runID, outcome, details)
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.healthCheck)
	s.router.GET("/status", s.getStatus)
	s.router.GET("/progress", s.hub.HandleSSE)
	s.router.GET("/history", s.getHistory)
	s.router.GET("/checkpoints", s.getCheckpoints)
}

func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Timestamp: time.Now().Unix()})
}

func (s *Server) getStatus(c *gin.Context) {
	s.mu.RLock()
	status := s.status
	s.mu.RUnlock()

	resp := gin.H{"status": status}
	if s.cfg.MountPoint != "" {
		if free, err := executor.DiskFreeBytes(s.cfg.MountPoint); err == nil {
			resp["device_free_bytes"] = free
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) getHistory(c *gin.Context) {
	if s.history == nil {
		RespondWithOK(c, []SyncRunResponse{})
		return
	}
	limit := ParseQueryInt(c, "limit", 20)
	runs, err := s.history.RecentRuns(limit)
	if err != nil {
		RespondWithInternalError(c, err.Error())
		return
	}

	out := make([]SyncRunResponse, 0, len(runs))
	for _, r := range runs {
		item := SyncRunResponse{
			StartedAt: r.StartedAt.Format(time.RFC3339),
			Status:    r.Status,
			Added:     r.Added,
			Removed:   r.Removed,
			Updated:   r.Updated,
			Error:     r.Error,
		}
		if r.FinishedAt != nil {
			item.FinishedAt = r.FinishedAt.Format(time.RFC3339)
		}
		out = append(out, item)
	}
	RespondWithOK(c, out)
}

func (s *Server) getCheckpoints(c *gin.Context) {
	if s.cfg.MountPoint == "" {
		RespondWithOK(c, []executor.Checkpoint{})
		return
	}
	checkpoints, err := executor.ListCheckpoints(s.cfg.MountPoint)
	if err != nil {
		RespondWithInternalError(c, err.Error())
		return
	}
	RespondWithOK(c, checkpoints)
}

// Start runs the HTTP server until ctx is canceled, then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:           fmt.Sprintf("%s:%s", s.cfg.Host, s.cfg.Port),
		Handler:        s.router,
		ReadTimeout:    s.cfg.ReadTimeout,
		WriteTimeout:   s.cfg.WriteTimeout,
		IdleTimeout:    s.cfg.IdleTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(shutdownCtx)
}
