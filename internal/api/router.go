package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/Harshitk-cp/cogsync/internal/api/handlers"
	mw "github.com/Harshitk-cp/cogsync/internal/api/middleware"
	"github.com/Harshitk-cp/cogsync/internal/buildconfig"
	"github.com/Harshitk-cp/cogsync/internal/config"
	"github.com/Harshitk-cp/cogsync/internal/domain"
	"github.com/Harshitk-cp/cogsync/internal/peer"
	"github.com/Harshitk-cp/cogsync/internal/service"
	"github.com/Harshitk-cp/cogsync/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// App holds the router and background services for lifecycle management.
type App struct {
	Router    *chi.Mux
	Graph     *store.Hypergraph
	Overlay   *peer.Overlay
	Inference *service.InferenceService
	Scheduler *service.SchedulerService

	startTime    time.Time
	requestCount atomic.Int64
	errorCount   atomic.Int64
}

func NewApp(graph *store.Hypergraph, overlay *peer.Overlay, logger *zap.Logger) *App {
	graph.BuildTopologyRoot()

	if policy, ok := domain.ParseConflictPolicy(config.ConflictPolicy()); ok {
		overlay.SetConflictPolicy(policy)
	} else {
		logger.Warn("unknown conflict policy, keeping default",
			zap.String("policy", config.ConflictPolicy()))
	}

	// Services
	inferenceSvc := service.NewInferenceService(graph, logger)
	schedulerSvc := service.NewSchedulerService(overlay, logger)
	schedulerSvc.SetInterval(config.SyncInterval())

	// Handlers
	atomHandler := handlers.NewAtomHandler(graph)
	linkHandler := handlers.NewLinkHandler(graph)
	inferenceHandler := handlers.NewInferenceHandler(graph, inferenceSvc)
	syncHandler := handlers.NewSyncHandler(overlay)
	topologyHandler := handlers.NewTopologyHandler(graph)

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Graph:     graph,
		Overlay:   overlay,
		Inference: inferenceSvc,
		Scheduler: schedulerSvc,
		startTime: time.Now(),
	}

	// Metrics collector for middleware
	metricsCollector := mw.NewMetricsCollector(&app.requestCount, &app.errorCount)

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metricsCollector.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	r.Get("/health", app.healthHandler())
	r.Get("/metrics", app.metricsHandler())

	r.Route("/v1", func(r chi.Router) {
		// Atoms
		r.Route("/atoms", func(r chi.Router) {
			r.Post("/", atomHandler.Create)
			r.Get("/", atomHandler.ListByKind)
			r.Get("/find", atomHandler.Find)
			r.Get("/attention", atomHandler.Attention)
			r.Route("/{handle}", func(r chi.Router) {
				r.Get("/", atomHandler.GetByHandle)
				r.Delete("/", atomHandler.Delete)
				r.Put("/truth", atomHandler.SetTruth)
				r.Put("/attention", atomHandler.SetAttention)
				r.Post("/observe", inferenceHandler.Observe)
				r.Get("/predict", inferenceHandler.Predict)
				r.Get("/interval", inferenceHandler.Interval)
			})
		})

		// Links
		r.Route("/links", func(r chi.Router) {
			r.Post("/", linkHandler.Create)
			r.Get("/", linkHandler.ListByKind)
			r.Route("/{handle}", func(r chi.Router) {
				r.Get("/", linkHandler.GetByHandle)
				r.Delete("/", linkHandler.Delete)
				r.Put("/truth", linkHandler.SetTruth)
				r.Get("/outgoing", linkHandler.Outgoing)
			})
		})

		// Inference
		r.Route("/inference", func(r chi.Router) {
			r.Post("/deduce", inferenceHandler.Deduce)
			r.Post("/revise", inferenceHandler.Revise)
			r.Post("/similarity", inferenceHandler.Similarity)
			r.Get("/patterns", inferenceHandler.Patterns)
			r.Get("/counters", inferenceHandler.Counters)
		})

		// Sync overlay
		r.Route("/sync", func(r chi.Router) {
			r.Route("/peers", func(r chi.Router) {
				r.Post("/", syncHandler.AddPeer)
				r.Get("/", syncHandler.ListPeers)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", syncHandler.GetPeer)
					r.Delete("/", syncHandler.RemovePeer)
					r.Post("/connect", syncHandler.Connect)
					r.Post("/disconnect", syncHandler.Disconnect)
				})
			})
			r.Post("/full", syncHandler.SyncFull)
			r.Post("/incremental", syncHandler.SyncIncremental)
			r.Get("/policy", syncHandler.GetPolicy)
			r.Put("/policy", syncHandler.SetPolicy)
			r.Get("/stats", syncHandler.Stats)
			r.Get("/conflicts", syncHandler.Conflicts)
		})

		// Topology
		r.Route("/topology", func(r chi.Router) {
			r.Route("/daemons", func(r chi.Router) {
				r.Post("/", topologyHandler.AddDaemon)
				r.Get("/", topologyHandler.ListDaemons)
				r.Route("/{daemon}", func(r chi.Router) {
					r.Post("/paths", topologyHandler.AddSyncPath)
					r.Get("/paths", topologyHandler.SyncPaths)
				})
			})
			r.Route("/swarms", func(r chi.Router) {
				r.Post("/", topologyHandler.CreateSwarm)
				r.Get("/{name}/members", topologyHandler.SwarmMembers)
			})
		})
	})

	return app
}

func (app *App) healthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "ok",
			"atoms":  app.Graph.AtomCount(),
			"links":  app.Graph.LinkCount(),
			"peers":  len(app.Overlay.Peers()),
		})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  app.requestCount.Load(),
			"error_count":    app.errorCount.Load(),
			"goroutines":     runtime.NumGoroutine(),
			"atoms":          app.Graph.AtomCount(),
			"links":          app.Graph.LinkCount(),
			"inference":      app.Inference.Counters(),
			"sync":           app.Overlay.Stats(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
			"build":      buildconfig.VersionInfo(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Overlay satisfies the scheduler's sync contract.
var _ service.Syncer = (*peer.Overlay)(nil)
