package metrics

// InitializeMetrics pre-populates expected label combinations so that every
// metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	for _, backend := range []string{"local", "remote"} {
		for _, status := range []string{"success", "error", "timeout"} {
			InferenceRequestsTotal.WithLabelValues(backend, status)
		}
		InferenceDuration.WithLabelValues(backend)
		InferenceRetriesTotal.WithLabelValues(backend)
		InferenceInFlight.WithLabelValues(backend)
	}

	for _, status := range []string{"completed", "completed_with_errors", "cancelled", "failed"} {
		TasksCompletedTotal.WithLabelValues(status)
	}
	for _, status := range []string{"labeled", "failed"} {
		TaskFilesProcessedTotal.WithLabelValues(status)
	}

	for _, op := range []string{"delete", "restore", "purge", "reconcile"} {
		TrashOperationsTotal.WithLabelValues(op, "success")
		TrashOperationsTotal.WithLabelValues(op, "error")
	}
	for _, repair := range []string{"orphan_adopted", "record_dropped"} {
		TrashReconcileRepairsTotal.WithLabelValues(repair)
	}

	for _, strategy := range []string{"rename", "copy"} {
		FilesystemMovesTotal.WithLabelValues(strategy, "success")
		FilesystemMovesTotal.WithLabelValues(strategy, "error")
	}

	for _, op := range []string{"insert_trash_record", "restore_trash_record", "delete_trash_record",
		"add_model_config", "update_model_config", "remove_model_config",
		"insert_task_record", "update_task_record", "set_token_hash", "clear_token"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
	}
}
