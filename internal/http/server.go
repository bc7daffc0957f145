package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"tempo/internal/core"
	"tempo/internal/track"
)

// Catalog is the category/project store surface the API consumes.
type Catalog interface {
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	FindCategory(ctx context.Context, name string) (core.Category, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	UpdateCategory(ctx context.Context, name string, c core.Category) (core.Category, error)
	DeleteCategory(ctx context.Context, name string) error

	CreateProject(ctx context.Context, p core.Project, categories []string) (core.Project, error)
	FindProject(ctx context.Context, name string) (core.Project, error)
	ListProjects(ctx context.Context) ([]core.Project, error)
	UpdateProject(ctx context.Context, name string, p core.Project, categories []string) (core.Project, error)
	DeleteProject(ctx context.Context, name string) error

	ListCategoryProjects(ctx context.Context, category string) ([]core.Project, error)
	ListProjectCategories(ctx context.Context, project string) ([]core.Category, error)
}

type Server struct {
	http.Server
	catalog Catalog
	records *track.RecordService
	reports *track.Service
	clock   core.Clock

	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// http.Server.
func NewServer(addr string, catalog Catalog, records *track.RecordService, reports *track.Service, clock core.Clock) *Server {
	if clock == nil {
		clock = core.SystemClock()
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		catalog:     catalog,
		records:     records,
		reports:     reports,
		clock:       clock,
		rateLimiter: newRateLimiter(),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /categories", s.with(s.handleListCategories))
	mux.HandleFunc("POST /categories", s.with(s.handleCreateCategory))
	mux.HandleFunc("GET /categories/{name}", s.with(s.handleGetCategory))
	mux.HandleFunc("PUT /categories/{name}", s.with(s.handleUpdateCategory))
	mux.HandleFunc("DELETE /categories/{name}", s.with(s.handleDeleteCategory))

	mux.HandleFunc("GET /projects", s.with(s.handleListProjects))
	mux.HandleFunc("POST /projects", s.with(s.handleCreateProject))
	mux.HandleFunc("GET /projects/{name}", s.with(s.handleGetProject))
	mux.HandleFunc("PUT /projects/{name}", s.with(s.handleUpdateProject))
	mux.HandleFunc("DELETE /projects/{name}", s.with(s.handleDeleteProject))

	mux.HandleFunc("GET /records", s.with(s.handleListRecords))
	mux.HandleFunc("POST /records", s.with(s.handleCreateRecord))
	mux.HandleFunc("GET /records/active", s.with(s.handleGetActiveRecord))
	mux.HandleFunc("POST /records/active", s.with(s.handleStopActiveRecord))
	mux.HandleFunc("GET /records/{id}", s.with(s.handleGetRecord))
	mux.HandleFunc("PUT /records/{id}", s.with(s.handleUpdateRecord))
	mux.HandleFunc("DELETE /records/{id}", s.with(s.handleDeleteRecord))

	mux.HandleFunc("GET /reports/week/{year}/{week}", s.with(s.handleWeekReport))
	mux.HandleFunc("GET /reports/week/{year}/{week}/{category}", s.with(s.handleWeekReport))

	return s
}

// with adds security headers, rate limiting on writes, request IDs, and
// request logging.
func (s *Server) with(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if r.Method != http.MethodGet && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

type requestIDKey struct{}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

// Shutdown stops the rate limiter's janitor before the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// Simple in-memory rate limiter, 60 mutating requests per client minute.
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]
	if !exists {
		rl.clients[clientIP] = &clientInfo{lastRequest: now, requests: 1}
		return true
	}

	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	client.requests++
	client.lastRequest = now
	return client.requests <= 60
}
