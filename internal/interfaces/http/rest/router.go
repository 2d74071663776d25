// Package rest is the thin HTTP tool-surface transport over
// MemoryService: out of core scope per spec §1's Non-goals, kept only
// as the boundary adapter exposing the eight tool operations, grounded
// on the teacher's interfaces/http/rest router/middleware structure.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"memory-engine/internal/infrastructure/observability"
	"memory-engine/internal/service"
)

// Router builds the HTTP handler tree for the memory engine's tool surface.
type Router struct {
	tools     *ToolHandler
	logger    *zap.Logger
	collector *observability.Collector
}

func NewRouter(svc *service.MemoryService, logger *zap.Logger, collector *observability.Collector) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{tools: NewToolHandler(svc, collector), logger: logger, collector: collector}
}

// Setup configures all routes and middleware.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(rt.logger))
	r.Use(observability.TracingMiddleware("memory-engine"))
	if rt.collector != nil {
		r.Use(observability.MetricsMiddleware(rt.collector))
	}
	r.Use(cors)
	r.Use(userContext)

	r.Get("/health", healthCheck)
	r.Get("/ready", healthCheck)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/memories", func(r chi.Router) {
			r.Post("/", rt.tools.Remember)
			r.Get("/search", rt.tools.Recall)
			r.Get("/export", rt.tools.ExportMemories)
			r.Patch("/{memoryID}", rt.tools.UpdateMemory)
			r.Delete("/{memoryID}", rt.tools.DeleteMemory)
			r.Post("/{memoryID}/refine", rt.tools.RefineKnowledge)
		})

		r.Route("/consolidations", func(r chi.Router) {
			r.Post("/", rt.tools.ConsolidateSession)
		})

		r.Route("/entities", func(r chi.Router) {
			r.Get("/{entity}/evolution", rt.tools.AnalyzeEvolution)
		})
	})

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
