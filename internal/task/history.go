package task

import (
	"context"
	"time"

	"dataset-manager/internal/database"
	"dataset-manager/internal/logging"
)

// HistoryStore persists task snapshots across restarts.
type HistoryStore interface {
	InsertTaskRecord(rec *database.TaskRecord) error
	UpdateTaskRecord(rec *database.TaskRecord) error
}

// Overridable in tests.
var historyResyncInterval = 2 * time.Second

// RecordHistory mirrors task progress into the store until ctx is done.
// Progress events may be dropped when a subscriber falls behind, so a
// periodic sweep re-reads every live task from the runner; the terminal
// state always lands in the store even if its event was lost.
func (r *Runner) RecordHistory(ctx context.Context, store HistoryStore) {
	events, cancel := r.Subscribe()
	defer cancel()

	ticker := time.NewTicker(historyResyncInterval)
	defer ticker.Stop()

	h := &historyWriter{store: store, inserted: make(map[string]bool), done: make(map[string]bool)}
	for {
		select {
		case <-ctx.Done():
			// Last sweep so terminal states reached during shutdown persist.
			h.sweep(r)
			return
		case ev := <-events:
			h.persist(ev.Snapshot)
		case <-ticker.C:
			h.sweep(r)
		}
	}
}

type historyWriter struct {
	store    HistoryStore
	inserted map[string]bool
	done     map[string]bool
}

func (h *historyWriter) persist(snap Snapshot) {
	if h.done[snap.ID] {
		return
	}

	rec := &database.TaskRecord{
		ID:            snap.ID,
		DatasetPath:   snap.DatasetPath,
		ModelConfigID: snap.ModelConfigID,
		Status:        string(snap.Status),
		Processed:     snap.Processed,
		Total:         snap.Total,
		FileErrors:    snap.FileErrors,
	}

	var err error
	if h.inserted[snap.ID] {
		err = h.store.UpdateTaskRecord(rec)
	} else {
		err = h.store.InsertTaskRecord(rec)
		if err == nil {
			h.inserted[snap.ID] = true
		}
	}
	if err != nil {
		logging.Error("Failed to persist task %s: %v", snap.ID, err)
		return
	}

	if snap.Status.Terminal() {
		h.done[snap.ID] = true
		delete(h.inserted, snap.ID)
	}
}

// sweep persists the current state of every task not yet recorded as
// terminal, catching tasks whose events never reached the subscriber.
func (h *historyWriter) sweep(r *Runner) {
	for _, snap := range r.List() {
		h.persist(snap)
	}
}
