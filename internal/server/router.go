package server

import (
	"net/http"

	"github.com/cloo-solutions/learnings/internal/api"
	"github.com/cloo-solutions/learnings/internal/api/handlers"
	"github.com/cloo-solutions/learnings/internal/api/middleware"
	"github.com/cloo-solutions/learnings/internal/logger"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	Logger        *logger.Logger
	Spaces        middleware.SpaceResolver
	TopicHandler  *handlers.TopicHandler
	PatchHandler  *handlers.PatchHandler
	JobHandler    *handlers.JobHandler
	SearchHandler *handlers.SearchHandler
	RagLabHandler *handlers.RagLabHandler
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	const maxBodyBytes int64 = 5 * 1024 * 1024

	log := cfg.Logger
	if log == nil {
		log = logger.NewNop()
	}

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(log))
	r.Use(middleware.MaxBodyBytes(maxBodyBytes))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/organizations/{orgID}", func(r chi.Router) {
		r.Use(middleware.Identity)

		r.Get("/rag-lab", cfg.RagLabHandler.Get)
		r.Put("/rag-lab", cfg.RagLabHandler.Update)
		r.Post("/embeddings/reembed", cfg.RagLabHandler.Reembed)

		r.Route("/spaces/{spaceID}/learnings", func(r chi.Router) {
			r.Use(middleware.SpaceScope(cfg.Spaces))

			r.Route("/topics", func(r chi.Router) {
				r.Post("/", cfg.TopicHandler.Capture)
				r.Get("/", cfg.TopicHandler.List)
				r.Get("/stats", cfg.TopicHandler.Stats)
				r.Get("/{topicID}", cfg.TopicHandler.Get)
				r.Delete("/{topicID}", cfg.TopicHandler.Delete)
				r.Post("/{topicID}/distill", cfg.TopicHandler.Distill)
			})
			r.Post("/distill-all", cfg.TopicHandler.DistillAll)

			r.Route("/patches", func(r chi.Router) {
				r.Get("/", cfg.PatchHandler.List)
				r.Post("/accept", cfg.PatchHandler.AcceptBatch)
				r.Post("/reject", cfg.PatchHandler.RejectBatch)
				r.Get("/{patchID}", cfg.PatchHandler.Get)
				r.Post("/{patchID}/accept", cfg.PatchHandler.Accept)
				r.Post("/{patchID}/reject", cfg.PatchHandler.Reject)
				r.Get("/{patchID}/archive", cfg.PatchHandler.ArchiveURL)
			})

			r.Post("/search", cfg.SearchHandler.Search)
			r.Post("/embeddings/backfill", cfg.JobHandler.EnqueueBackfill)

			r.Route("/jobs", func(r chi.Router) {
				r.Get("/", cfg.JobHandler.List)
				r.Get("/{jobID}", cfg.JobHandler.Get)
				r.Post("/{jobID}/cancel", cfg.JobHandler.Cancel)
			})
		})
	})

	return r
}
