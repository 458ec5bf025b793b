package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/nqzz6767/Blockchain-Price-Tracker/internal/storage"
)

// Options tune the HTTP server.
type Options struct {
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Now overrides the wall clock; nil means time.Now.
	Now func() time.Time
}

// Server exposes the thin HTTP surface over the price store and alert registry.
type Server struct {
	prices     storage.PriceStore
	alerts     storage.AlertStore
	httpServer *http.Server
	logger     zerolog.Logger
	now        func() time.Time
}

// NewServer wires the stores into an HTTP server.
func NewServer(opts Options, prices storage.PriceStore, alerts storage.AlertStore, logger zerolog.Logger) *Server {
	if opts.ListenAddr == "" {
		opts.ListenAddr = ":8080"
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		prices: prices,
		alerts: alerts,
		logger: logger.With().Str("component", "api").Logger(),
		now:    now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /prices", s.handleListPrices)
	mux.HandleFunc("POST /prices/alert", s.handleCreateAlert)
	mux.HandleFunc("GET /health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         opts.ListenAddr,
		Handler:      mux,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}

	return s
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("http api listening")
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler returns the underlying handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
