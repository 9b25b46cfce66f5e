package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/opencne/listreview/pkg/export"
	"github.com/opencne/listreview/pkg/review"
)

// RouterConfig carries the collaborators of the HTTP surface.
type RouterConfig struct {
	Service  *review.Service
	Exporter *export.Exporter

	// Reviewer resolves the acting reviewer of a request. Defaults to the
	// X-Reviewer header extractor.
	Reviewer review.ReviewerExtractor

	// AllowedOrigins configures CORS. Empty disables cross-origin access.
	AllowedOrigins []string
}

// NewRouter creates a chi router with the review API routes mounted at the
// root. Callers mount it under their own prefix.
func NewRouter(cfg RouterConfig) chi.Router {
	if cfg.Reviewer == nil {
		cfg.Reviewer = review.HeaderReviewerExtractor
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	if len(cfg.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.AllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", review.ReviewerHeader},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/documents", func(r chi.Router) {
		r.Get("/", listDocumentsHandler(cfg.Service))
		r.Post("/", createDocumentHandler(cfg.Service))
		r.Get("/disputed", disputedHandler(cfg.Service))

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", getDocumentHandler(cfg.Service))
			r.Post("/match", matchHandler(cfg.Service))
			r.Get("/comparisons", listComparisonsHandler(cfg.Service))
			r.Post("/bulk-accept", bulkAcceptHandler(cfg.Service))
			r.Post("/approve", approveHandler(cfg.Service, cfg.Reviewer))
			r.Post("/fail", failHandler(cfg.Service, cfg.Reviewer))
			r.Get("/audit", auditHandler(cfg.Service))
			r.Get("/export", exportHandler(cfg.Service, cfg.Exporter))
		})
	})

	r.Post("/comparisons/{id}/decision", decisionHandler(cfg.Service, cfg.Reviewer))

	return r
}
