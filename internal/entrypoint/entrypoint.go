// Package entrypoint wires the sync engine, task queue, scheduler and
// HTTP server together and runs the process lifecycle.
package entrypoint

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dineops/customer-sync/internal/config"
	"github.com/dineops/customer-sync/internal/database"
	http_controllers "github.com/dineops/customer-sync/internal/http"
	"github.com/dineops/customer-sync/internal/registry"
	"github.com/dineops/customer-sync/internal/scheduler"
	"github.com/dineops/customer-sync/internal/syncer"
	"github.com/dineops/customer-sync/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// Serve runs the HTTP server until SIGINT/SIGTERM, then shuts down
// gracefully within the configured timeout.
func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting server at %s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Call shutdown callback first (e.g., to stop the task queue)
	if onShutdown != nil {
		onShutdown(ctx)
	}

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}

	log.Println("Server exiting")
}

// Run assembles the application from config and serves it.
func Run(cfg *config.Config, version string) {
	log.Printf("Starting customer-sync v%s", version)
	log.Printf("Source database: %s", cfg.SourceDB.DSN)
	log.Printf("Analytics database: %s", cfg.AnalyticsDB.DSN)

	// Open the analytics store up front so schema migrations run at boot
	// and the health endpoint has a connection to ping. Sync runs open
	// their own connections.
	analytics, err := database.OpenAnalytics(context.Background(), cfg.AnalyticsDB.DSN)
	if err != nil {
		log.Fatalf("Failed to initialize analytics database: %v", err)
	}
	defer func() {
		if err := analytics.Close(); err != nil {
			log.Printf("Error closing analytics database: %v", err)
		}
	}()

	store := registry.NewInMemory()
	engine := syncer.NewEngine(syncer.Options{
		SourceDSN:    cfg.SourceDB.DSN,
		AnalyticsDSN: cfg.AnalyticsDB.DSN,
		PageSize:     cfg.Sync.PageSize,
		PagePause:    cfg.Sync.PagePause,
	}, store)

	// Initialize the task queue if enabled
	var taskClient *tasks.Client
	var taskCtxCancel context.CancelFunc
	if cfg.Tasks.Enabled {
		taskCfg := tasks.Config{
			Workers:           cfg.Tasks.Workers,
			MaxAttempts:       cfg.Tasks.MaxAttempts,
			TaskTimeout:       cfg.Tasks.TaskTimeout,
			ReleaseAfter:      cfg.Tasks.ReleaseAfter,
			CleanupInterval:   cfg.Tasks.CleanupInterval,
			RetentionDuration: cfg.Tasks.RetentionDuration,
		}

		taskClient, err = tasks.NewClient(cfg.AnalyticsDB.DSN, taskCfg)
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(tasks.NewSyncRunQueue(engine))
		engine.SetDispatcher(tasks.NewDispatcher(taskClient))

		// Start task workers in background
		var taskCtx context.Context
		taskCtx, taskCtxCancel = context.WithCancel(context.Background())
		go taskClient.Start(taskCtx)
	}

	// Start the cron scheduler if enabled
	var syncScheduler *scheduler.SyncScheduler
	if cfg.Scheduler.Enabled {
		syncScheduler = scheduler.NewSyncScheduler(engine, cfg.Scheduler.Schedule)
		if err := syncScheduler.Start(context.Background()); err != nil {
			log.Fatalf("Failed to start sync scheduler: %v", err)
		}
	}

	router := http_controllers.NewRouter(http_controllers.RouterConfig{
		SyncService: engine,
		Analytics:   analytics,
		Version:     version,
	})

	// Shutdown callback for graceful cleanup
	onShutdown := func(ctx context.Context) {
		if syncScheduler != nil {
			syncScheduler.Stop()
		}
		if taskClient != nil && taskCtxCancel != nil {
			taskClient.Stop(ctx)
			taskCtxCancel()
		}
	}

	Serve(router, cfg, onShutdown)
}
