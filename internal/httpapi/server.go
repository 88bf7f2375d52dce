// Package httpapi exposes the tracker's JSON API.
//
// It is a thin shell over the monitor service and the store: subscription
// management, the dashboard listing and price-history reads. No HTML, no
// sessions; callers identify themselves by email.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/vishn-ui/tracker/internal/monitor"
	"github.com/vishn-ui/tracker/internal/store"
	"github.com/vishn-ui/tracker/pkg/logx"
)

type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type Server struct {
	log     logx.Logger
	store   store.Store
	monitor *monitor.Service

	srv *http.Server
}

func New(cfg Config, st store.Store, mon *monitor.Service, log logx.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8080"
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 15 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		// The track endpoint performs a live fetch, which can take a while.
		cfg.WriteTimeout = 3 * time.Minute
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 2 * time.Minute
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	s := &Server{log: log, store: st, monitor: mon}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/track", s.handleTrack)
	mux.HandleFunc("POST /api/untrack", s.handleUntrack)
	mux.HandleFunc("GET /api/products", s.handleProducts)
	mux.HandleFunc("GET /api/price-history", s.handlePriceHistory)

	s.srv = &http.Server{
		Addr:         cfg.Addr,
		Handler:      mux,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
	return s
}

// Handler exposes the route table, mainly for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// ListenAndServe blocks until the server stops. A server closed via
// Shutdown reports nil.
func (s *Server) ListenAndServe() error {
	s.log.Info("http api listening", logx.String("addr", s.srv.Addr))
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg})
}
