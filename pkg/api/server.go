// Package api provides the optional HTTP status surface of the FTP server:
// liveness, the supervisor status with its stats snapshot, and the Prometheus
// metrics endpoint. It never participates in the FTP protocol itself.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/kuba23c/ftp-server/internal/logger"
	ftpadapter "github.com/kuba23c/ftp-server/pkg/adapter/ftp"
)

// Server is the status/health HTTP server.
//
// Endpoints:
//   - GET /healthz: liveness probe
//   - GET /api/v1/status: lifecycle status, error bitmap, stats snapshot
//   - GET /metrics: Prometheus metrics (when metrics are enabled)
//
// The server supports graceful shutdown with a bounded timeout.
type Server struct {
	server       *http.Server
	shutdownOnce sync.Once
}

// NewServer creates a stopped API server reporting on ftpSrv.
func NewServer(port int, ftpSrv *ftpadapter.Server) *Server {
	router := NewRouter(ftpSrv)

	return &Server{
		server: &http.Server{
			Addr:         fmt.Sprintf(":%d", port),
			Handler:      router,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		logger.Info("API server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("api server: %w", err)
	case <-ctx.Done():
		return s.Shutdown()
	}
}

// Shutdown stops the server, waiting up to five seconds for in-flight
// requests. Safe to call multiple times.
func (s *Server) Shutdown() error {
	var err error
	s.shutdownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err = s.server.Shutdown(ctx)
		logger.Info("API server stopped")
	})
	return err
}
