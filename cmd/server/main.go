package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Harshitk-cp/cogsync/internal/api"
	"github.com/Harshitk-cp/cogsync/internal/config"
	"github.com/Harshitk-cp/cogsync/internal/peer"
	"github.com/Harshitk-cp/cogsync/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

func main() {
	logger, _ := zap.NewProduction()
	defer func() { _ = logger.Sync() }()

	if err := config.Load(); err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx := context.Background()

	graph := store.NewHypergraph()
	overlay := peer.NewOverlay(graph, logger)

	// Snapshot persistence is optional; without a database the graph is
	// memory-only and rebuilt from peers on restart.
	var snapshots *store.SnapshotStore
	if dbURL := config.DatabaseURL(); dbURL != "" {
		pool, err := pgxpool.New(ctx, dbURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			logger.Fatal("failed to ping database", zap.Error(err))
		}

		snapshots = store.NewSnapshotStore(pool)
		if err := snapshots.EnsureSchema(ctx); err != nil {
			logger.Fatal("failed to prepare snapshot schema", zap.Error(err))
		}

		atoms, links, err := snapshots.Load(ctx, graph)
		if err != nil {
			logger.Fatal("failed to load snapshot", zap.Error(err))
		}
		logger.Info("snapshot restored", zap.Int("atoms", atoms), zap.Int("links", links))
	}

	app := api.NewApp(graph, overlay, logger)

	listener := peer.NewListener(overlay, logger)
	if err := listener.Start(config.SyncAddr()); err != nil {
		logger.Fatal("failed to start sync listener", zap.Error(err))
	}
	logger.Info("sync listener started", zap.String("addr", listener.Addr()))

	if config.SyncSchedulerEnabled() {
		app.Scheduler.Start()
	}

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:    addr,
		Handler: app.Router,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	if config.SyncSchedulerEnabled() {
		app.Scheduler.Stop()
	}
	listener.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	if snapshots != nil {
		saveCtx, cancelSave := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelSave()
		if err := snapshots.Save(saveCtx, graph); err != nil {
			logger.Error("failed to save snapshot", zap.Error(err))
		} else {
			logger.Info("snapshot saved")
		}
	}

	logger.Info("server stopped")
}
