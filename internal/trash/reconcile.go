package trash

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"dataset-manager/internal/database"
	"dataset-manager/internal/logging"
	"dataset-manager/internal/metrics"
)

// Reconcile cross-references the physical trash directory against the
// manifest. Trash-side entries with no record are adopted as recovered
// orphans (their original path is unknown, so they are preserved rather
// than deleted); records whose trash-side entry is missing are dropped.
// Safe to run repeatedly: a run over a consistent state changes nothing.
func (m *Manager) Reconcile() (adopted, dropped int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := os.ReadDir(m.root)
	if err != nil {
		return 0, 0, fmt.Errorf("reading trash root %s: %w", m.root, err)
	}

	records, skipped, err := m.db.ListTrashRecords()
	if err != nil {
		return 0, 0, err
	}
	if skipped > 0 {
		logging.Warn("Reconcile: %d unreadable manifest rows ignored", skipped)
	}

	present := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		present[entry.Name()] = true
	}

	for _, rec := range records {
		if !present[rec.TrashPath] {
			logging.Warn("Reconcile: dropping record %s, trash entry %s is gone", rec.ID, rec.TrashPath)
			if err := m.db.DeleteTrashRecord(rec.ID); err != nil {
				return adopted, dropped, err
			}
			metrics.TrashReconcileRepairsTotal.WithLabelValues("record_dropped").Inc()
			dropped++
		}
	}

	for name := range present {
		// Fresh lookup rather than the records slice above: dropped rows
		// have already been deleted by the time we get here.
		if _, err := m.db.FindTrashRecordByTrashPath(name); err == nil {
			continue
		} else if !errors.Is(err, database.ErrRecordNotFound) {
			return adopted, dropped, err
		}

		kind := database.TrashKindFile
		if info, err := os.Lstat(filepath.Join(m.root, name)); err == nil && info.IsDir() {
			kind = database.TrashKindDirectory
		}

		rec := &database.TrashRecord{
			ID:        uuid.NewString(),
			TrashPath: name,
			DeletedAt: time.Now(),
			Kind:      kind,
			Recovered: true,
		}
		logging.Warn("Reconcile: adopting orphaned trash entry %s as record %s", name, rec.ID)
		if err := m.db.InsertTrashRecord(rec); err != nil {
			return adopted, dropped, err
		}
		metrics.TrashReconcileRepairsTotal.WithLabelValues("orphan_adopted").Inc()
		adopted++
	}

	if adopted > 0 || dropped > 0 {
		logging.Info("Reconcile repaired manifest: %d orphans adopted, %d records dropped", adopted, dropped)
	}
	return adopted, dropped, nil
}
