package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeProvider struct {
	stats Stats
}

func (f *fakeProvider) GetStats() Stats {
	return f.stats
}

func TestCollectorUpdatesGauges(t *testing.T) {
	provider := &fakeProvider{stats: Stats{
		ModelConfigs:       3,
		ActiveTrashRecords: 7,
		TasksTotal:         11,
	}}

	c := NewCollector(provider, time.Hour)
	c.collect()

	if got := testutil.ToFloat64(ModelConfigsTotal); got != 3 {
		t.Errorf("ModelConfigsTotal = %v, want 3", got)
	}
	if got := testutil.ToFloat64(TrashActiveRecords); got != 7 {
		t.Errorf("TrashActiveRecords = %v, want 7", got)
	}
	if got := testutil.ToFloat64(TaskHistoryTotal); got != 11 {
		t.Errorf("TaskHistoryTotal = %v, want 11", got)
	}
}

func TestCollectorNilProvider(t *testing.T) {
	c := NewCollector(nil, time.Hour)
	// Must not panic.
	c.collect()
}

func TestCollectorStartStop(t *testing.T) {
	c := NewCollector(&fakeProvider{}, 10*time.Millisecond)
	c.Start()
	time.Sleep(25 * time.Millisecond)
	c.Stop()
}

func TestInitializeMetrics(t *testing.T) {
	// Must not panic on repeated invocation.
	InitializeMetrics()
	InitializeMetrics()
}
