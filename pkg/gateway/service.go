// Package gateway hosts the connector over HTTP: one pipe endpoint plus
// health and readiness probes.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"n8npipe/pkg/config"
	"n8npipe/pkg/jsonmap"
	"n8npipe/pkg/pipe"
)

const (
	defaultHost = "0.0.0.0"
	defaultPort = 18790
)

// Service serves the pipe over HTTP. The active pipe is swapped
// atomically when configuration reloads; in-flight requests keep the
// snapshot they started with.
type Service struct {
	cfg  *config.Config
	log  *slog.Logger
	pipe atomic.Pointer[pipe.Pipe]

	mu            sync.RWMutex
	startedAt     time.Time
	lastForwardAt time.Time
	forwarded     uint64
}

// pipeRequest is the inbound envelope: the raw front-end body plus the
// optional side-channel metadata and user mappings.
type pipeRequest struct {
	Body     jsonmap.Map `json:"body"`
	Metadata jsonmap.Map `json:"metadata,omitempty"`
	User     jsonmap.Map `json:"user,omitempty"`
}

type pipeResponse struct {
	Reply string `json:"reply"`
}

type statusResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Configured    bool   `json:"configured"`
	Forwarded     uint64 `json:"forwarded"`
	LastForwardAt string `json:"last_forward_at,omitempty"`
}

// NewService builds the service around an initial configuration.
func NewService(cfg *config.Config, log *slog.Logger) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		log = slog.Default()
	}

	s := &Service{
		cfg: cfg,
		log: log.With("component", "gateway.service"),
	}
	s.pipe.Store(pipe.New(cfg.Valves, log))

	return s, nil
}

// Reload swaps in a pipe built from freshly loaded configuration.
// Called by the config watcher.
func (s *Service) Reload(cfg *config.Config) {
	if cfg == nil {
		return
	}

	s.pipe.Store(pipe.New(cfg.Valves, s.log))
	s.log.Info("Pipe reloaded",
		"webhook_env", cfg.Valves.WebhookEnv,
		"configured", s.pipe.Load().Configured(),
	)
}

// Run serves until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.mu.Lock()
	s.startedAt = time.Now().UTC()
	s.mu.Unlock()

	host := strings.TrimSpace(s.cfg.Gateway.Host)
	if host == "" {
		host = defaultHost
	}
	port := s.cfg.Gateway.Port
	if port <= 0 {
		port = defaultPort
	}

	addr := host + ":" + strconv.Itoa(port)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.log.Info("Gateway started", "address", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start gateway server: %w", err)
	}

	return nil
}

// Handler exposes the route set, also used directly by tests.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/pipe", s.handlePipe)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	return mux
}

func (s *Service) handlePipe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var request pipeRequest
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	requestID := uuid.NewString()
	log := s.log.With("request_id", requestID)
	startedAt := time.Now()

	reply := s.pipe.Load().Run(r.Context(), request.Body, request.Metadata, request.User)

	s.mu.Lock()
	s.lastForwardAt = time.Now().UTC()
	s.forwarded++
	s.mu.Unlock()

	log.Debug("Pipe request handled",
		"duration_ms", time.Since(startedAt).Milliseconds(),
		"reply_length", len(reply),
	)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-Id", requestID)
	if err := json.NewEncoder(w).Encode(pipeResponse{Reply: reply}); err != nil {
		log.Error("Failed to write pipe response", "error", err)
	}
}

func (s *Service) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.respondStatus(w, http.StatusOK, "ok")
}

func (s *Service) handleReady(w http.ResponseWriter, _ *http.Request) {
	statusCode := http.StatusOK
	status := "ready"
	if !s.pipe.Load().Configured() {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	s.respondStatus(w, statusCode, status)
}

func (s *Service) respondStatus(w http.ResponseWriter, statusCode int, status string) {
	payload := s.currentStatus(status)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("Failed to write status response", "error", err)
	}
}

func (s *Service) currentStatus(status string) statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()

	uptime := int64(0)
	if !s.startedAt.IsZero() {
		uptime = int64(time.Since(s.startedAt).Seconds())
	}

	lastForward := ""
	if !s.lastForwardAt.IsZero() {
		lastForward = s.lastForwardAt.Format(time.RFC3339)
	}

	return statusResponse{
		Status:        status,
		UptimeSeconds: uptime,
		Configured:    s.pipe.Load().Configured(),
		Forwarded:     s.forwarded,
		LastForwardAt: lastForward,
	}
}
