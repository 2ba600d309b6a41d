package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_manager_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dataset_manager_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataset_manager_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)

	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_manager_auth_attempts_total",
			Help: "Total API token authentication attempts by result",
		},
		[]string{"result"},
	)
)

// Database metrics
var (
	DBQueryTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_manager_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation", "status"},
	)
)

// Inference metrics
var (
	InferenceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_manager_inference_requests_total",
			Help: "Total number of backend inference calls",
		},
		[]string{"backend", "status"},
	)

	InferenceDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dataset_manager_inference_duration_seconds",
			Help:    "Backend inference call duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"backend"},
	)

	InferenceRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_manager_inference_retries_total",
			Help: "Total number of retried remote inference attempts",
		},
		[]string{"backend"},
	)

	InferenceInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dataset_manager_inference_in_flight",
			Help: "Number of inference calls currently in flight",
		},
		[]string{"backend"},
	)
)

// Annotation task metrics
var (
	TasksStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dataset_manager_tasks_started_total",
			Help: "Total number of annotation tasks started",
		},
	)

	TasksCompletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_manager_tasks_completed_total",
			Help: "Total number of annotation tasks reaching a terminal state",
		},
		[]string{"status"},
	)

	TaskFilesProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_manager_task_files_processed_total",
			Help: "Total number of files processed by annotation tasks",
		},
		[]string{"status"}, // "labeled" or "failed"
	)

	TasksRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataset_manager_tasks_running",
			Help: "Number of annotation tasks currently running",
		},
	)
)

// Trash metrics
var (
	TrashOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_manager_trash_operations_total",
			Help: "Total number of trash operations",
		},
		[]string{"operation", "status"},
	)

	TrashActiveRecords = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataset_manager_trash_active_records",
			Help: "Number of active records in the trash manifest",
		},
	)

	TrashReconcileRepairsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_manager_trash_reconcile_repairs_total",
			Help: "Total number of manifest repairs performed by reconcile",
		},
		[]string{"repair"}, // "orphan_adopted" or "record_dropped"
	)
)

// Filesystem metrics
var (
	FilesystemMovesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_manager_filesystem_moves_total",
			Help: "Total number of filesystem moves",
		},
		[]string{"strategy", "status"}, // strategy: "rename" or "copy"
	)

	FilesystemRetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataset_manager_filesystem_retry_attempts_total",
			Help: "Total number of retried filesystem operations",
		},
		[]string{"operation"},
	)
)

// Library metrics (updated by the Collector)
var (
	ModelConfigsTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataset_manager_model_configs_total",
			Help: "Number of stored model configurations",
		},
	)

	TaskHistoryTotal = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dataset_manager_task_history_total",
			Help: "Number of annotation tasks in history",
		},
	)
)

// Application info
var (
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dataset_manager_app_info",
			Help: "Application build information",
		},
		[]string{"version", "commit", "go_version"},
	)
)
