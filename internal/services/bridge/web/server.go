// Package web hosts the browser-facing surface of the bridge: the viewer
// page, the socket that relays frame messages, and health checks.
package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/voluntarios/learnbridge/internal/platform/timeouts"
	"github.com/voluntarios/learnbridge/internal/services/bridge/activity"
	"github.com/voluntarios/learnbridge/internal/services/bridge/commit"
	"github.com/voluntarios/learnbridge/internal/services/bridge/gateway"
	"github.com/voluntarios/learnbridge/internal/services/bridge/mount"
	"github.com/voluntarios/learnbridge/internal/services/bridge/storage"
	"github.com/voluntarios/learnbridge/internal/services/bridge/urlresolve"
	"github.com/voluntarios/learnbridge/internal/services/bridge/web/platform/httpx"
	"github.com/voluntarios/learnbridge/internal/services/bridge/web/platform/observability"
	"github.com/voluntarios/learnbridge/internal/services/bridge/web/static"
)

// Config defines startup inputs for the bridge web service.
type Config struct {
	HTTPAddr    string
	Catalog     *activity.Catalog
	Mounter     mount.Mounter
	BackendBase string
	Gateway     *gateway.Gateway
	Relay       *commit.Relay
	// Attempts exposes the commit audit log. Optional.
	Attempts            storage.CommitAttemptStore
	BlockedAfter        time.Duration
	TrustForwardedProto bool
	Logger              *log.Logger
}

// Server hosts the bridge HTTP surface and lifecycle.
type Server struct {
	httpAddr   string
	httpServer *http.Server
}

type handler struct {
	catalog             *activity.Catalog
	mounter             mount.Mounter
	backendBase         string
	expectedOrigin      string
	gateway             *gateway.Gateway
	relay               *commit.Relay
	attempts            storage.CommitAttemptStore
	blockedAfter        time.Duration
	trustForwardedProto bool
	logger              *log.Logger
}

// NewHandler builds the root handler.
func NewHandler(cfg Config) (http.Handler, error) {
	switch {
	case cfg.Catalog == nil:
		return nil, errors.New("activity catalog is required")
	case cfg.Gateway == nil:
		return nil, errors.New("gateway is required")
	case cfg.Relay == nil:
		return nil, errors.New("commit relay is required")
	}
	expectedOrigin := urlresolve.Origin(cfg.BackendBase)
	if expectedOrigin == "" {
		return nil, fmt.Errorf("backend base url must be an absolute http(s) url, got %q", cfg.BackendBase)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	h := &handler{
		catalog:             cfg.Catalog,
		mounter:             cfg.Mounter,
		backendBase:         cfg.BackendBase,
		expectedOrigin:      expectedOrigin,
		gateway:             cfg.Gateway,
		relay:               cfg.Relay,
		attempts:            cfg.Attempts,
		blockedAfter:        cfg.BlockedAfter,
		trustForwardedProto: cfg.TrustForwardedProto,
		logger:              logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /up", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "OK")
	})
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(static.FS))))
	mux.HandleFunc("GET /learn/{activityID}", h.handlePage)
	mux.HandleFunc("GET /learn/{activityID}/ws", h.handleSocket)
	if h.attempts != nil {
		mux.HandleFunc("GET /learn/{activityID}/attempts", h.handleAttempts)
	}

	return httpx.Chain(mux,
		httpx.RecoverPanic(),
		httpx.RequestID(),
		httpx.UserID(),
		observability.RequestLogger(logger),
	), nil
}

// NewServer validates config and constructs a bridge server.
func NewServer(_ context.Context, cfg Config) (*Server, error) {
	httpAddr := strings.TrimSpace(cfg.HTTPAddr)
	if httpAddr == "" {
		return nil, errors.New("http address is required")
	}
	handler, err := NewHandler(cfg)
	if err != nil {
		return nil, fmt.Errorf("compose bridge handler: %w", err)
	}
	return &Server{
		httpAddr: httpAddr,
		httpServer: &http.Server{
			Addr:              httpAddr,
			Handler:           handler,
			ReadHeaderTimeout: timeouts.ReadHeader,
		},
	}, nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.httpAddr
}

// ListenAndServe serves HTTP traffic until context cancellation or server stop.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("bridge server is nil")
	}
	if ctx == nil {
		return errors.New("context is required")
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeouts.Shutdown)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown bridge http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve bridge http: %w", err)
	}
}

// Close closes open server resources.
func (s *Server) Close() {
	if s == nil || s.httpServer == nil {
		return
	}
	_ = s.httpServer.Close()
}
