// Package http implements the relay's request/response API: status and
// command exchange with long-polling, car and device discovery, health
// probes and metrics.
package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fleethub-io/fleethub/internal/relay/core/model"
	"github.com/fleethub-io/fleethub/pkg/log"
	"github.com/fleethub-io/fleethub/pkg/options"
)

// Exchange is the slice of the orchestrator the API needs.
type Exchange interface {
	SendStatuses(ctx context.Context, company, car string, messages []model.Message) (string, error)
	SendCommands(ctx context.Context, company, car string, messages []model.Message) error
	ListStatuses(ctx context.Context, company, car string, since int64, wait bool) ([]model.Message, error)
	ListCommands(ctx context.Context, company, car string, since int64, wait bool) ([]model.Message, error)
	AvailableCars(ctx context.Context, since int64, wait bool) ([]model.AvailableCar, error)
	AvailableDevices(ctx context.Context, company, car string, moduleID *uint32) ([]model.ModuleDevices, error)
}

// Pinger reports whether the persistence layer is reachable; backs /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP ingress.
type Server struct {
	server  *http.Server
	options *options.HttpOptions
	svc     Exchange
	store   Pinger
	logger  log.Logger
}

// NewServer builds the router and the server around it.
func NewServer(opts *options.HttpOptions, svc Exchange, store Pinger, logger log.Logger) *Server {
	s := &Server{
		options: opts,
		svc:     svc,
		store:   store,
		logger:  logger,
	}

	router := mux.NewRouter()

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	router.HandleFunc("/readyz", s.handleReady)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.authMiddleware)
	api.HandleFunc("/status/{company}/{car}", s.handleSendStatuses).Methods(http.MethodPost)
	api.HandleFunc("/status/{company}/{car}", s.handleListStatuses).Methods(http.MethodGet)
	api.HandleFunc("/command/{company}/{car}", s.handleSendCommands).Methods(http.MethodPost)
	api.HandleFunc("/command/{company}/{car}", s.handleListCommands).Methods(http.MethodGet)
	api.HandleFunc("/cars", s.handleAvailableCars).Methods(http.MethodGet)
	api.HandleFunc("/available-devices/{company}/{car}", s.handleAvailableDevices).Methods(http.MethodGet)

	s.server = &http.Server{
		Addr:    opts.Addr,
		Handler: router,
	}
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until the context is cancelled, then drains within the
// configured shutdown timeout. Long-poll handlers must already have been
// released by the orchestrator shutdown for the drain to finish in time.
func (s *Server) Start(ctx context.Context) error {
	s.logger.Info("starting HTTP server", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.options.ShutdownTimeout)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

// authMiddleware is the boolean permission gate. With no key configured
// every call is permitted.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.options.APIKey != "" && r.Header.Get("X-API-Key") != s.options.APIKey {
			http.Error(w, "invalid or missing api key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Error(err, "readiness probe failed")
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error(err, "failed to encode response")
	}
}
