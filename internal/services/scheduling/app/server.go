// Package app composes the scheduling service and hosts its HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/huddlehq/huddle/internal/platform/httpx"
	schedulinghttp "github.com/huddlehq/huddle/internal/services/scheduling/api/http"
	"github.com/huddlehq/huddle/internal/services/scheduling/domain/overlap"
	"github.com/huddlehq/huddle/internal/services/scheduling/gateway"
	"github.com/huddlehq/huddle/internal/services/scheduling/service"
	"github.com/huddlehq/huddle/internal/services/scheduling/storage/sqlite"
	"github.com/huddlehq/huddle/internal/services/scheduling/token"
)

// Config defines the inputs for the scheduling server.
type Config struct {
	Port      int
	DBPath    string
	Retention time.Duration
	Policy    overlap.Policy
}

const (
	defaultPort   = 8086
	defaultDBPath = "data/scheduling.db"
)

// Server hosts the scheduling HTTP server and owns its store.
type Server struct {
	httpAddr   string
	httpServer *http.Server
	store      *sqlite.Store
}

// NewServer wires storage, grants, the gateway, and the HTTP surface.
func NewServer(config Config) (*Server, error) {
	if config.Port <= 0 {
		config.Port = defaultPort
	}
	if strings.TrimSpace(config.DBPath) == "" {
		config.DBPath = defaultDBPath
	}

	store, err := sqlite.Open(config.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open scheduling store: %w", err)
	}

	grants, err := token.LoadConfigFromEnv(nil)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load grant config: %w", err)
	}
	gw, err := gateway.FromEnv(log.Default())
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("load gateway config: %w", err)
	}

	svc, err := service.New(service.Config{
		Store:     store,
		Gateway:   gw,
		Grants:    grants,
		Policy:    config.Policy,
		Retention: config.Retention,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("build scheduling service: %w", err)
	}

	mux := http.NewServeMux()
	schedulinghttp.NewHandler(svc).Register(mux)
	mux.HandleFunc(http.MethodGet+" /healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := store.DB().PingContext(r.Context()); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	httpAddr := fmt.Sprintf(":%d", config.Port)
	handler := httpx.Chain(mux, httpx.RequestID(), httpx.RecoverPanic())
	return &Server{
		httpAddr: httpAddr,
		httpServer: &http.Server{
			Addr:              httpAddr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		store: store,
	}, nil
}

// ListenAndServe runs the HTTP server until the context ends.
func (s *Server) ListenAndServe(ctx context.Context) error {
	if s == nil {
		return errors.New("scheduling server is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	serveErr := make(chan error, 1)
	log.Printf("scheduling listening on %s", s.httpAddr)
	go func() {
		serveErr <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := s.httpServer.Shutdown(shutdownCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	}
}

// Close releases the underlying store.
func (s *Server) Close() {
	if s == nil || s.store == nil {
		return
	}
	_ = s.store.Close()
}
