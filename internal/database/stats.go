package database

import "dataset-manager/internal/metrics"

// GetStats collects the counters exported by the metrics collector.
func (d *Database) GetStats() metrics.Stats {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var stats metrics.Stats
	d.db.QueryRow(`SELECT COUNT(*) FROM model_configs`).Scan(&stats.ModelConfigs)
	d.db.QueryRow(`SELECT COUNT(*) FROM trash_records WHERE status = ?`, TrashStatusTrashed).Scan(&stats.ActiveTrashRecords)
	d.db.QueryRow(`SELECT COUNT(*) FROM tasks`).Scan(&stats.TasksTotal)
	d.db.QueryRow(`SELECT COUNT(*) FROM tasks WHERE status = 'running'`).Scan(&stats.TasksRunning)
	return stats
}
