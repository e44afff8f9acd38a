// Package admin serves the relay's operational HTTP endpoints: health,
// Prometheus metrics and the connected-clients snapshot.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cyberinferno/chatrelay/logger"
	"github.com/cyberinferno/chatrelay/status"
)

const shutdownTimeout = 5 * time.Second

// SnapshotSource returns the current relay status.
type SnapshotSource interface {
	Current(ctx context.Context) (status.Snapshot, error)
}

// NewHandler builds the admin mux.
func NewHandler(src SnapshotSource, log logger.Logger) http.Handler {
	log = logger.OrNop(log)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = fmt.Fprintln(w, "ok")
	})
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /clients", func(w http.ResponseWriter, r *http.Request) {
		snap, err := src.Current(r.Context())
		if err != nil {
			log.Warn("status snapshot failed", logger.Field{Key: "error", Value: err.Error()})
			http.Error(w, "status unavailable", http.StatusServiceUnavailable)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(snap)
	})

	return mux
}

// Server runs the admin handler on its own listener.
type Server struct {
	http   *http.Server
	logger logger.Logger
}

// NewServer creates an admin server bound to addr once Run is called.
func NewServer(addr string, src SnapshotSource, log logger.Logger) *Server {
	log = logger.OrNop(log)

	return &Server{
		http: &http.Server{
			Addr:              addr,
			Handler:           NewHandler(src, log),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: log,
	}
}

// Run serves until ctx is done, then shuts down gracefully.
//
// Returns:
//   - nil after a clean shutdown, or the listen/serve error
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("admin listen on %s: %w", s.http.Addr, err)
	}

	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() { errCh <- s.http.Serve(ln) }()

	s.logger.Info("admin listening", logger.Field{Key: "addr", Value: ln.Addr().String()})

	select {
	case err := <-errCh:
		return fmt.Errorf("admin serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("admin shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin serve: %w", err)
	}

	return nil
}
