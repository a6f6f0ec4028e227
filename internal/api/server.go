package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/star/tletracker/internal/auth"
	"github.com/star/tletracker/internal/health"
	"github.com/star/tletracker/internal/httputil"
	"github.com/star/tletracker/internal/metrics"
	"github.com/star/tletracker/internal/tracker"
)

// Config holds ops server settings loaded from environment variables.
type Config struct {
	Addr       string
	Auth       auth.Config
	TrustProxy bool // honour X-Forwarded-For / X-Real-IP in access logs
}

// Server is the operations HTTP server: probes, metrics and a status view
// of the tracked satellite.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, logger *slog.Logger, state *tracker.State, coord *tracker.Coordinator) *Server {
	logger = logger.With("component", "api")
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	mux.HandleFunc("GET /readyz", health.Readyz(func() bool {
		return coord.ConnState() == tracker.Subscribed
	}))
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/v1/status", statusHandler(state, coord, time.Now, logger))

	// metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(cfg.Auth)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// statusResponse is the body of GET /api/v1/status. TLE fields are omitted
// until the first ingest.
type statusResponse struct {
	Connection    string   `json:"connection"`
	HasTLE        bool     `json:"has_tle"`
	Name          string   `json:"name,omitempty"`
	NORADID       int      `json:"norad_id,omitempty"`
	Epoch         string   `json:"epoch,omitempty"`
	LastUpdate    string   `json:"last_update,omitempty"`
	TLEAgeSeconds *float64 `json:"tle_age_seconds,omitempty"`
	Line1         string   `json:"line1,omitempty"`
	Line2         string   `json:"line2,omitempty"`
}

func statusHandler(state *tracker.State, coord *tracker.Coordinator, now func() time.Time, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := statusResponse{Connection: coord.ConnState().String()}

		if snap, ok := state.Snapshot(); ok {
			age := now().Sub(snap.LastUpdate).Seconds()
			resp.HasTLE = true
			resp.Name = snap.Entry.Name
			resp.NORADID = snap.Entry.NORADID
			resp.Epoch = snap.Entry.Epoch.UTC().Format(time.RFC3339)
			resp.LastUpdate = snap.LastUpdate.Format(time.RFC3339Nano)
			resp.TLEAgeSeconds = &age
			resp.Line1 = snap.Entry.Line1
			resp.Line2 = snap.Entry.Line2
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			logger.Debug("writing status response", "error", err)
		}
	}
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz"
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
