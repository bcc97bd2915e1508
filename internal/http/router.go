package http

import (
	"net/http"

	"github.com/blakestevenson/nimbus-acquire/internal/downloader"
	"github.com/blakestevenson/nimbus-acquire/internal/http/handlers"
	"github.com/blakestevenson/nimbus-acquire/internal/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterDeps are the handlers the router mounts
type RouterDeps struct {
	Downloads  *downloader.Handler
	Clients    *handlers.ClientHandler
	Blacklist  *handlers.BlacklistHandler
	Config     *handlers.ConfigHandler
	Indexers   *handlers.IndexerHandler
	Gatherer   prometheus.Gatherer
	CORSOrigin string // empty echoes the caller's origin
}

// NewRouter creates and configures the HTTP router
func NewRouter(deps RouterDeps, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(RecoverMiddleware(logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(LoggingMiddleware(logger))
	r.Use(CORSMiddleware(deps.CORSOrigin))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.RespondJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
		})
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Compress(5))

		r.Post("/search", deps.Downloads.Search)
		r.Route("/downloads", deps.Downloads.Routes)

		r.Route("/download-clients", func(r chi.Router) {
			r.Get("/", deps.Clients.ListClients)
			r.Post("/", deps.Clients.CreateClient)
			r.Post("/test", deps.Clients.TestClient)
		})

		r.Route("/blacklist", func(r chi.Router) {
			r.Get("/", deps.Blacklist.ListEntries)
			r.Post("/", deps.Blacklist.AddEntry)
		})

		if deps.Indexers != nil {
			r.Route("/indexers", func(r chi.Router) {
				r.Get("/", deps.Indexers.ListIndexers)
				r.Post("/{id}/test", deps.Indexers.TestIndexer)
			})
		}

		if deps.Config != nil {
			r.Route("/config", func(r chi.Router) {
				r.Get("/", deps.Config.ListConfig)
				r.Get("/{key}", deps.Config.GetConfig)
				r.Put("/{key}", deps.Config.SetConfig)
				r.Delete("/{key}", deps.Config.DeleteConfig)
			})
		}
	})

	return r
}
