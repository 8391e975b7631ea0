package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"

	"github.com/quillback/quill/pkg/answer"
	"github.com/quillback/quill/pkg/config"
	"github.com/quillback/quill/pkg/document"
	"github.com/quillback/quill/pkg/log"
	"github.com/quillback/quill/pkg/metrics"
	"github.com/quillback/quill/pkg/store"
	"github.com/quillback/quill/pkg/workspace"
)

// Server is the HTTP front of the service
type Server struct {
	registry  *workspace.Registry
	documents *document.Lifecycle
	generator *answer.Generator
	store     store.Store
	cfg       *config.Config
	validate  *validator.Validate

	http *http.Server
}

func NewServer(registry *workspace.Registry, documents *document.Lifecycle, generator *answer.Generator, st store.Store, cfg *config.Config) *Server {
	s := &Server{
		registry:  registry,
		documents: documents,
		generator: generator,
		store:     st,
		cfg:       cfg,
		validate:  validator.New(),
	}
	s.http = &http.Server{
		Addr:              cfg.APIAddr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", userHeader},
		MaxAge:         300,
	}))

	r.Get("/healthz", metrics.HealthHandler())
	r.Get("/readyz", s.ready)
	r.Method(http.MethodGet, "/metrics", s.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		r.Use(withPrincipal(s.store))

		r.Route("/workspaces", func(r chi.Router) {
			r.Post("/", s.createWorkspace)
			r.Get("/", s.listWorkspaces)

			r.Route("/{workspaceID}", func(r chi.Router) {
				r.Get("/", s.getWorkspace)
				r.Patch("/", s.updateWorkspace)
				// DELETE archives; workspaces are never hard-deleted
				r.Delete("/", s.archiveWorkspace)
				r.Post("/unarchive", s.unarchiveWorkspace)
				r.Post("/publish", s.publishWorkspace)
				r.Post("/share", s.shareWorkspace)
				r.Get("/acl", s.getACL)

				r.Route("/documents", func(r chi.Router) {
					r.Post("/upload", s.uploadDocument)
					r.Get("/", s.listDocuments)
					r.Route("/{documentID}", func(r chi.Router) {
						r.Get("/", s.getDocument)
						r.Delete("/", s.deleteDocument)
						r.Post("/reprocess", s.reprocessDocument)
					})
				})
				r.Post("/ingest/text", s.ingestText)

				r.Post("/query", s.queryWorkspace)
				r.Post("/ask", s.askBuffered)
				r.Post("/ask/stream", s.askStream)
			})
		})
	})

	return r
}

// ready re-probes the database live, then reports overall readiness
func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		metrics.UpdateComponent("postgres", false, err.Error())
	} else {
		metrics.UpdateComponent("postgres", true, "")
	}
	metrics.ReadyHandler()(w, r)
}

// metricsHandler gates the scrape endpoint in production
func (s *Server) metricsHandler() http.Handler {
	inner := metrics.Handler()
	if !s.cfg.MetricsRequireAuth {
		return inner
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(userHeader) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		inner.ServeHTTP(w, r)
	})
}

// requestLogger emits one structured line per request and feeds the
// request metrics.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		metrics.APIRequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
		metrics.APIRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())

		log.WithRequestID(middleware.GetReqID(r.Context())).Info().
			Str("component", "api").
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("request")
	})
}

// Start begins serving and blocks until the listener fails or Shutdown is
// called
func (s *Server) Start() error {
	log.WithComponent("api").Info().Str("addr", s.http.Addr).Msg("http server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the router, used by tests
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}
