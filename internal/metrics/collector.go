package metrics

import (
	"time"

	"dataset-manager/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the counters gathered from the database on each collection.
type Stats struct {
	ModelConfigs       int
	ActiveTrashRecords int
	TasksTotal         int
	TasksRunning       int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	// Collect immediately on start
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()

	ModelConfigsTotal.Set(float64(stats.ModelConfigs))
	TrashActiveRecords.Set(float64(stats.ActiveTrashRecords))
	TaskHistoryTotal.Set(float64(stats.TasksTotal))

	logging.Debug("Metrics collected: configs=%d, trash=%d, tasks=%d (%d running)",
		stats.ModelConfigs, stats.ActiveTrashRecords, stats.TasksTotal, stats.TasksRunning)
}
