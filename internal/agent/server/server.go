// Package server exposes health, metrics and the session view over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autopeer-io/cartrack/internal/api"
	"github.com/autopeer-io/cartrack/internal/pkg/metrics"
	"github.com/autopeer-io/cartrack/internal/pkg/outcome"
	"github.com/autopeer-io/cartrack/internal/session"
	"github.com/autopeer-io/cartrack/pkg/log"
	"github.com/autopeer-io/cartrack/pkg/options"
)

type SessionView interface {
	Current() session.State
}

type UploadView interface {
	Current() outcome.Outcome[api.Ack]
}

type Server struct {
	server *http.Server

	sessions SessionView
	uploads  UploadView
}

func NewServer(opts *options.HttpOptions, sessions SessionView, uploads UploadView) *Server {
	s := &Server{sessions: sessions, uploads: uploads}
	s.server = &http.Server{
		Addr:         opts.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  opts.Timeout,
		WriteTimeout: opts.Timeout,
	}
	return s
}

// Handler returns the router serving every endpoint.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	// Liveness
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	// Ready once the remote configuration is in and the session left Loading.
	r.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if s.sessions.Current().Kind == session.KindLoading {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("loading"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/session", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, s.sessions.Current().Redacted())
	}).Methods(http.MethodGet)
	v1.HandleFunc("/upload", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, s.uploads.Current())
	}).Methods(http.MethodGet)

	return r
}

func (s *Server) Start(ctx context.Context) error {
	log.Info("Starting HTTP Server", "addr", s.server.Addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.server.Shutdown(shutdownCtx)
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error(err, "Failed to encode response")
	}
}
