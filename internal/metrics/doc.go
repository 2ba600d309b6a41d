// Package metrics provides Prometheus instrumentation for the dataset
// manager. All metrics are prefixed with "dataset_manager_".
//
// Metric categories:
//
//   - HTTP: request counts and latency, recorded by the middleware package
//   - Database: query counts by operation and status
//   - Inference: backend call counts, latency, retries, in-flight gauge
//   - Tasks: started/terminal counters, per-file outcomes, running gauge
//   - Trash: operation counters, active manifest records, reconcile repairs
//   - Filesystem: move strategy counters and retry attempts
//
// Metrics register with the default Prometheus registry via promauto. Mount
// promhttp.Handler() to expose them:
//
//	mux.Handle("/metrics", promhttp.Handler())
//
// The [Collector] periodically refreshes gauges that are derived from
// database state (config count, active trash records, task history size).
package metrics
