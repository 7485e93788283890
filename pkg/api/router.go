package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kuba23c/ftp-server/internal/logger"
	ftpadapter "github.com/kuba23c/ftp-server/pkg/adapter/ftp"
	"github.com/kuba23c/ftp-server/pkg/metrics"
)

// statusResponse is the JSON body of GET /api/v1/status.
type statusResponse struct {
	Status     string                   `json:"status"`
	ErrorFlags uint32                   `json:"error_flags"`
	Stats      ftpadapter.StatsSnapshot `json:"stats"`
}

// NewRouter creates the chi router with middleware and routes.
func NewRouter(ftpSrv *ftpadapter.Server) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	r.Get("/api/v1/status", func(w http.ResponseWriter, _ *http.Request) {
		resp := statusResponse{
			Status:     ftpSrv.Status().String(),
			ErrorFlags: ftpSrv.ErrorFlags(),
			Stats:      ftpSrv.Stats(),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	})

	if metrics.IsEnabled() {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(
			metrics.GetRegistry(), promhttp.HandlerOpts{}))
	}

	return r
}

// requestLogger logs one line per completed request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			logger.KeyDurationMs, logger.Duration(start))
	})
}
