package api

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/terra-clan/evalboard/internal/config"
	"github.com/terra-clan/evalboard/internal/evaluations"
	"github.com/terra-clan/evalboard/internal/metrics"
	"github.com/terra-clan/evalboard/internal/services"
)

// CodeFetcher retrieves a source file from a code host link
type CodeFetcher interface {
	Fetch(ctx context.Context, link string) (string, error)
}

// Server represents the HTTP API server
type Server struct {
	warehouse config.WarehouseConfig
	router    *chi.Mux
	service   *evaluations.Service
	fetcher   CodeFetcher
	registry  *services.Registry
	assets    fs.FS
}

// NewServer creates a new API server. assets may be nil to disable the
// dashboard, registry may be nil when nothing beyond liveness is checked.
func NewServer(
	warehouse config.WarehouseConfig,
	service *evaluations.Service,
	fetcher CodeFetcher,
	registry *services.Registry,
	assets fs.FS,
) *Server {
	if registry == nil {
		registry = services.NewRegistry()
	}

	s := &Server{
		warehouse: warehouse,
		service:   service,
		fetcher:   fetcher,
		registry:  registry,
		assets:    assets,
	}
	s.setupRouter()
	return s
}

// Router returns the configured router
func (s *Server) Router() http.Handler {
	return s.router
}

// setupRouter configures all routes and middleware
func (s *Server) setupRouter() {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Read-only API
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/config", s.handleConfig)
		r.Get("/languages", s.handleLanguages)
		r.Get("/product-areas", s.handleProductAreas)
		r.Get("/region-tags", s.handleRegionTags)
		r.Get("/details", s.handleDetails)
		r.Get("/fetch-code", s.handleFetchCode)
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			respondError(w, http.StatusNotFound, "unknown API route")
		})
	})

	if s.assets != nil {
		r.Handle("/*", http.FileServer(http.FS(s.assets)))
	}

	s.router = r
}

// loggingMiddleware logs HTTP requests using slog
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		}()

		next.ServeHTTP(ww, r)
	})
}
