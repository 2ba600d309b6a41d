package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"dataset-manager/internal/database"
	"dataset-manager/internal/handlers"
	"dataset-manager/internal/logging"
	"dataset-manager/internal/metrics"
	"dataset-manager/internal/middleware"
	"dataset-manager/internal/startup"
	"dataset-manager/internal/task"
	"dataset-manager/internal/trash"
)

func main() {
	startTime := time.Now()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Initialize database
	dbStart := time.Now()
	db, err := database.New(context.Background(), config.DatabasePath)
	if err != nil {
		startup.LogFatal("Failed to initialize database: %v", err)
	}
	defer db.Close()
	startup.LogDatabaseInit(time.Since(dbStart))

	// Initialize trash and repair any drift left by a crash
	tm, err := trash.NewManager(db, config.TrashDir)
	if err != nil {
		startup.LogFatal("Failed to initialize trash: %v", err)
	}
	if adopted, dropped, err := tm.Reconcile(); err != nil {
		startup.LogFatal("Trash reconcile failed: %v", err)
	} else if adopted > 0 || dropped > 0 {
		logging.Info("Trash reconcile repaired drift: %d orphans adopted, %d records dropped", adopted, dropped)
	}

	records, _, err := db.ListTrashRecords()
	if err != nil {
		startup.LogFatal("Failed to read trash manifest: %v", err)
	}
	startup.LogTrashInit(tm.Root(), len(records), config.TrashWatch)

	// Watch the trash directory for out-of-band changes
	bgCtx, stopBackground := context.WithCancel(context.Background())
	defer stopBackground()
	if config.TrashWatch {
		go func() {
			if err := tm.Watch(bgCtx); err != nil && bgCtx.Err() == nil {
				logging.Error("Trash watcher stopped: %v", err)
			}
		}()
	}

	// Initialize the task runner with the real inference backends; history
	// rows mirror task progress into the database across restarts
	runner := task.NewRunner(db, nil)
	go runner.RecordHistory(bgCtx, db)

	// Initialize metrics
	metrics.InitializeMetrics()
	collector := metrics.NewCollector(db, 15*time.Second)
	collector.Start()

	// Initialize handlers
	h := handlers.New(db, runner, tm, config)

	// Setup router
	router := setupRouter(h)
	startup.LogHTTPRoutes(router)

	// Apply authentication middleware
	authedRouter := h.RequireToken(router)

	// Apply metrics middleware
	meteredHandler := middleware.Metrics(middleware.DefaultMetricsConfig())(authedRouter)

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(meteredHandler)

	// Create server
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Metrics server on its own port so the scrape endpoint never sits
	// behind API authentication
	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsSrv = startMetricsServer(config.MetricsPort, h)
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, metricsSrv, runner, collector, stopBackground)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes (no auth required)
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Model configs
	api.HandleFunc("/configs", h.ListConfigs).Methods("GET")
	api.HandleFunc("/configs", h.CreateConfig).Methods("POST")
	api.HandleFunc("/configs/{id}", h.GetConfig).Methods("GET")
	api.HandleFunc("/configs/{id}", h.UpdateConfig).Methods("PUT")
	api.HandleFunc("/configs/{id}", h.DeleteConfig).Methods("DELETE")

	// Annotation tasks
	api.HandleFunc("/tasks", h.ListTasks).Methods("GET")
	api.HandleFunc("/tasks", h.StartTask).Methods("POST")
	api.HandleFunc("/tasks/history", h.ListTaskHistory).Methods("GET")
	api.HandleFunc("/tasks/events", h.TaskEvents).Methods("GET")
	api.HandleFunc("/tasks/{id}", h.GetTask).Methods("GET")
	api.HandleFunc("/tasks/{id}/events", h.TaskEvents).Methods("GET")
	api.HandleFunc("/tasks/{id}/cancel", h.CancelTask).Methods("POST")

	// Trash
	api.HandleFunc("/trash", h.ListTrash).Methods("GET")
	api.HandleFunc("/trash/delete", h.DeleteFiles).Methods("POST")
	api.HandleFunc("/trash/reconcile", h.ReconcileTrash).Methods("POST")
	api.HandleFunc("/trash/{id}/restore", h.RestoreTrash).Methods("POST")
	api.HandleFunc("/trash/{id}", h.PurgeTrash).Methods("DELETE")

	// Dataset browsing
	api.HandleFunc("/dataset", h.ListDataset).Methods("GET")

	// Labels
	api.HandleFunc("/labels", h.GetLabels).Methods("GET")

	return r
}

func startMetricsServer(port string, h *handlers.Handlers) *http.Server {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logging.Error("Metrics server error: %v", err)
		}
	}()

	return srv
}

func handleShutdown(srv, metricsSrv *http.Server, runner *task.Runner, collector *metrics.Collector, stopBackground context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Stopping annotation tasks")
	if err := runner.Shutdown(ctx); err != nil {
		logging.Warn("Task runner shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Annotation tasks stopped")
	}

	startup.LogShutdownStep("Stopping background workers")
	stopBackground()
	startup.LogShutdownStepComplete("Background workers stopped")

	startup.LogShutdownStep("Stopping metrics collector")
	collector.Stop()
	startup.LogShutdownStepComplete("Metrics collector stopped")

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
