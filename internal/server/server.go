// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/echoflow/internal/backend"
	"github.com/jeranaias/echoflow/internal/errs"
	"github.com/jeranaias/echoflow/internal/provider"
)

// =============================================================================
// CONSTANTS
// =============================================================================

const (
	// DefaultAddr is the listen address when none is configured.
	DefaultAddr = "127.0.0.1:9002"

	// DefaultBodyLimit caps a request body. Data URIs for images and voice
	// notes are inlined, so this is larger than a typical JSON API.
	DefaultBodyLimit int64 = 20 * 1024 * 1024

	// DefaultRequestTimeout bounds one provider call.
	DefaultRequestTimeout = 120 * time.Second

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 30 * time.Second

	methodNotAllowed = "Method not allowed"
	internalError    = "Internal Server Error"
)

// =============================================================================
// SERVER
// =============================================================================

// Server exposes a Provider over the chat and transcription endpoints.
type Server struct {
	provider provider.Provider
	log      *zap.Logger

	addr           string
	cors           *CORSConfig
	limiter        *RateLimiter
	bodyLimit      int64
	requestTimeout time.Duration

	mu         sync.Mutex
	httpServer *http.Server
	handler    http.Handler
	stats      Stats
	startedAt  time.Time
}

// Stats counts requests served since start.
type Stats struct {
	ChatRequests       atomic.Int64
	TranscribeRequests atomic.Int64
	Failures           atomic.Int64
}

// Option configures a Server.
type Option func(*Server)

// WithAddr sets the listen address.
func WithAddr(addr string) Option {
	return func(s *Server) {
		if addr != "" {
			s.addr = addr
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithCORS replaces the CORS configuration. Nil disables CORS headers.
func WithCORS(cfg *CORSConfig) Option {
	return func(s *Server) { s.cors = cfg }
}

// WithRateLimit allows rps requests per second per client IP. A
// non-positive rps disables limiting.
func WithRateLimit(rps float64, burst int) Option {
	return func(s *Server) {
		if rps <= 0 {
			s.limiter = nil
			return
		}
		s.limiter = NewRateLimiter(rps, burst)
	}
}

// WithBodyLimit caps request bodies at n bytes.
func WithBodyLimit(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.bodyLimit = n
		}
	}
}

// WithRequestTimeout bounds each provider call.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// New creates a server backed by p.
func New(p provider.Provider, opts ...Option) *Server {
	s := &Server{
		provider:       p,
		log:            zap.NewNop(),
		addr:           DefaultAddr,
		cors:           DefaultCORSConfig(),
		limiter:        DefaultRateLimiter(),
		bodyLimit:      DefaultBodyLimit,
		requestTimeout: DefaultRequestTimeout,
		startedAt:      time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.handler = s.buildHandler()
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Stats returns the live request counters.
func (s *Server) Stats() *Stats {
	return &s.stats
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.addr
}

func (s *Server) buildHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat", s.handleChat)
	mux.HandleFunc("/api/transcribe", s.handleTranscribe)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})

	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(s.log),
		LoggingMiddleware(s.log),
		SecurityHeadersMiddleware(),
	}
	if s.cors != nil {
		middlewares = append(middlewares, CORSMiddleware(s.cors))
	}
	if s.limiter != nil {
		middlewares = append(middlewares, RateLimitMiddleware(s.limiter, s.log))
	}
	middlewares = append(middlewares, BodyLimitMiddleware(s.bodyLimit))

	return Chain(middlewares...)(mux)
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown. It returns nil after a
// graceful shutdown.
func (s *Server) Serve(ln net.Listener) error {
	hs := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      s.requestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = hs
	s.mu.Unlock()

	s.log.Info("server listening",
		zap.String("addr", ln.Addr().String()),
		zap.String("provider", s.provider.Name()),
	)
	if err := hs.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	hs := s.httpServer
	s.mu.Unlock()
	if hs == nil {
		return nil
	}
	s.log.Info("server shutting down")
	return hs.Shutdown(ctx)
}

// =============================================================================
// HANDLERS
// =============================================================================

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	s.stats.ChatRequests.Add(1)

	var req backend.ChatRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Message) == "" && req.ImageDataURI == "" {
		writeError(w, http.StatusBadRequest, "Message is required")
		return
	}

	var image *provider.Media
	if req.ImageDataURI != "" {
		mime, data, err := backend.DecodeDataURI(req.ImageDataURI)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid image data URI")
			return
		}
		image = &provider.Media{MIMEType: mime, Data: data}
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	reply, err := s.provider.Chat(ctx, req.Message, image)
	if err != nil {
		s.fail(w, "chat", err)
		return
	}
	writeJSON(w, http.StatusOK, backend.ChatResponse{Response: reply})
}

func (s *Server) handleTranscribe(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	s.stats.TranscribeRequests.Add(1)

	var req backend.TranscribeRequest
	if !s.decode(w, r, &req) {
		return
	}
	mime, data, err := backend.DecodeDataURI(req.AudioDataURI)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid audio data URI")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	text, err := s.provider.Transcribe(ctx, provider.Media{MIMEType: mime, Data: data})
	if err != nil {
		s.fail(w, "transcribe", err)
		return
	}
	writeJSON(w, http.StatusOK, backend.TranscribeResponse{TranscribedText: text})
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status             string `json:"status"`
	Provider           string `json:"provider"`
	Uptime             string `json:"uptime"`
	ChatRequests       int64  `json:"chatRequests"`
	TranscribeRequests int64  `json:"transcribeRequests"`
	Failures           int64  `json:"failures"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		writeError(w, http.StatusMethodNotAllowed, methodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:             "ok",
		Provider:           s.provider.Name(),
		Uptime:             time.Since(s.startedAt).Truncate(time.Second).String(),
		ChatRequests:       s.stats.ChatRequests.Load(),
		TranscribeRequests: s.stats.TranscribeRequests.Load(),
		Failures:           s.stats.Failures.Load(),
	})
}

// requirePost answers 405 for anything but POST.
func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodPost {
		return true
	}
	w.Header().Set("Allow", http.MethodPost)
	writeError(w, http.StatusMethodNotAllowed, methodNotAllowed)
	return false
}

// decode reads a JSON body into v, answering 413 or 400 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "Request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return false
	}
	return true
}

// fail maps a provider error to a status code and logs it.
func (s *Server) fail(w http.ResponseWriter, op string, err error) {
	s.stats.Failures.Add(1)

	status := http.StatusInternalServerError
	switch {
	case errs.IsKind(err, errs.KindCapabilityUnavailable):
		status = http.StatusNotImplemented
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}

	s.log.Error("provider request failed",
		zap.String("op", op),
		zap.String("provider", s.provider.Name()),
		zap.Int("status", status),
		zap.Error(err),
	)

	msg := errs.Reason(err)
	if msg == "" {
		msg = internalError
	}
	writeError(w, status, msg)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

// writeJSON writes v as a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the wire format clients expect.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, backend.ErrorResponse{Error: message})
}
