// Package api is the local HTTP interface: scenario control, catalog
// queries and learning progress, plus the live frame endpoints mounted by
// the serve command.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/fahrprobe/fahrprobe-cli/internal/catalog"
	"github.com/fahrprobe/fahrprobe-cli/internal/models"
	"github.com/fahrprobe/fahrprobe-cli/internal/progress"
	"github.com/fahrprobe/fahrprobe-cli/internal/scenario"
)

// ErrNoActive is returned by controls that need a selected scenario.
var ErrNoActive = errors.New("no scenario selected")

// Config holds the API server configuration
type Config struct {
	Host string
	Port int
	// Token, when set, is required as a bearer token on every request
	// that changes state.
	Token      string
	AcceptGzip bool
	Version    string
}

// Server is the HTTP API server
type Server struct {
	config     Config
	selector   *scenario.Selector
	catalog    *catalog.Catalog
	learned    *progress.LearnedSet
	idempotent *IdempotencyStore
	mounts     map[string]http.Handler
	server     *http.Server
	mu         sync.RWMutex
	stats      Stats
}

// Stats holds server statistics
type Stats struct {
	TotalRequests   int `json:"total_requests"`
	TotalControls   int `json:"total_controls"`
	TotalImports    int `json:"total_imports"`
	TotalDuplicates int `json:"total_duplicates"`
	TotalErrors     int `json:"total_errors"`
}

// NewServer creates a new API server
func NewServer(config Config, selector *scenario.Selector, cat *catalog.Catalog, learned *progress.LearnedSet) *Server {
	if config.Version == "" {
		config.Version = "dev"
	}
	return &Server{
		config:     config,
		selector:   selector,
		catalog:    cat,
		learned:    learned,
		idempotent: NewIdempotencyStore(),
		mounts:     make(map[string]http.Handler),
	}
}

// Mount serves h at path next to the API routes. Call before Handler or
// Start.
func (s *Server) Mount(path string, h http.Handler) {
	s.mounts[path] = h
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /v1/stats", s.handleStats)

	mux.HandleFunc("GET /v1/scenarios", s.handleListScenarios)
	mux.HandleFunc("GET /v1/scenarios/{id}", s.handleDescribeScenario)
	mux.HandleFunc("POST /v1/scenarios/{id}/select", s.requireAuth(s.handleSelect))
	mux.HandleFunc("GET /v1/active", s.handleActive)
	mux.HandleFunc("POST /v1/active/{action}", s.requireAuth(s.handleControl))

	mux.HandleFunc("GET /v1/commands", s.handleCommands)
	mux.HandleFunc("GET /v1/commands/{id}", s.handleCommand)
	mux.HandleFunc("GET /v1/questions", s.handleQuestions)
	mux.HandleFunc("GET /v1/categories", s.handleCategories)
	mux.HandleFunc("GET /v1/tips", s.handleTips)

	mux.HandleFunc("GET /v1/learned", s.handleLearned)
	mux.HandleFunc("PUT /v1/learned/{id}", s.requireAuth(s.handleLearn))
	mux.HandleFunc("DELETE /v1/learned/{id}", s.requireAuth(s.handleUnlearn))
	mux.HandleFunc("POST /v1/learned/{id}/toggle", s.requireAuth(s.handleToggleLearned))
	mux.HandleFunc("GET /v1/progress/export", s.handleExport)
	mux.HandleFunc("POST /v1/progress/import", s.requireAuth(s.handleImport))

	for path, h := range s.mounts {
		mux.Handle(path, h)
	}
	return s.count(mux)
}

// Start starts the API server
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:     s.Handler(),
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server listening", "address", s.GetAddress())
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown()
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown() error {
	if s.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(ctx)
	}
	return nil
}

// GetAddress returns the server address
func (s *Server) GetAddress() string {
	return fmt.Sprintf("http://%s:%d", s.config.Host, s.config.Port)
}

// GetStats returns current server statistics
func (s *Server) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stats
}

// ApplyControl runs a control message against the selector. It is shared
// by the HTTP routes and the WebSocket endpoint.
func (s *Server) ApplyControl(c models.Control) error {
	if err := c.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.stats.TotalControls++
	s.mu.Unlock()

	if c.Action == models.ActionSelect {
		_, err := s.selector.Select(c.Scenario)
		return err
	}

	in := s.selector.Active()
	if in == nil {
		return ErrNoActive
	}
	switch c.Action {
	case models.ActionPlay:
		in.Play()
	case models.ActionPause:
		in.Pause()
	case models.ActionToggle:
		in.Toggle()
	case models.ActionReset:
		in.Reset()
	}
	return nil
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.stats.TotalRequests++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.validateAuth(r) {
			s.writeError(w, http.StatusUnauthorized, "invalid or missing authorization token")
			return
		}
		next(w, r)
	}
}

func (s *Server) validateAuth(r *http.Request) bool {
	if s.config.Token == "" {
		return true
	}
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return false
	}

	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return false
	}

	return parts[1] == s.config.Token
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to write response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.mu.Lock()
	s.stats.TotalErrors++
	s.mu.Unlock()
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// IdempotencyStore tracks processed export IDs
type IdempotencyStore struct {
	seen map[string]time.Time
	mu   sync.RWMutex
}

// NewIdempotencyStore creates a new idempotency store
func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{
		seen: make(map[string]time.Time),
	}
}

// Exists checks if an ID has been processed
func (s *IdempotencyStore) Exists(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[id]
	return exists
}

// Mark records an ID as processed
func (s *IdempotencyStore) Mark(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen[id] = time.Now()
}
