// Package trash implements soft delete with a durable manifest. Deleted
// entities move into a flat trash directory under unique names; the manifest
// row is committed before the move so a crash can orphan an entry but never
// lose data. Reconcile repairs drift between the manifest and the directory.
package trash

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"dataset-manager/internal/database"
	"dataset-manager/internal/filesystem"
	"dataset-manager/internal/logging"
	"dataset-manager/internal/metrics"
)

var (
	// ErrRestoreCollision means the original path is occupied. The caller
	// must move the occupying entity aside and retry; nothing is overwritten.
	ErrRestoreCollision = errors.New("original path is occupied")

	// ErrNoOriginalPath means the record was adopted by reconcile and its
	// original location is unknown.
	ErrNoOriginalPath = errors.New("record has no original path")
)

// Manager performs trash operations against one trash root. All mutations
// are serialized; reads go straight to the manifest.
type Manager struct {
	db    *database.Database
	root  string
	retry filesystem.RetryConfig

	mu sync.Mutex
}

// NewManager creates the trash root if needed.
func NewManager(db *database.Database, trashRoot string) (*Manager, error) {
	if err := os.MkdirAll(trashRoot, 0755); err != nil {
		return nil, fmt.Errorf("creating trash root %s: %w", trashRoot, err)
	}
	return &Manager{
		db:    db,
		root:  trashRoot,
		retry: filesystem.DefaultRetryConfig(),
	}, nil
}

// Root returns the trash directory path.
func (m *Manager) Root() string { return m.root }

// trashName derives a unique trash-side name from the original base name
// and the record id, so repeated deletions of identically named files never
// collide.
func trashName(originalPath, recordID string) string {
	base := filepath.Base(originalPath)
	ext := filepath.Ext(base)
	stem := base[:len(base)-len(ext)]
	return fmt.Sprintf("%s.%s%s", stem, recordID[:8], ext)
}

// Delete moves each path into the trash and returns the records created.
// Paths that fail are skipped and reported in the joined error; the
// successful records are returned either way.
func (m *Manager) Delete(paths []string) ([]*database.TrashRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var records []*database.TrashRecord
	var errs []error

	for _, path := range paths {
		rec, err := m.deleteOne(path)
		if err != nil {
			metrics.TrashOperationsTotal.WithLabelValues("delete", "error").Inc()
			errs = append(errs, fmt.Errorf("%s: %w", path, err))
			continue
		}
		metrics.TrashOperationsTotal.WithLabelValues("delete", "success").Inc()
		records = append(records, rec)
	}

	return records, errors.Join(errs...)
}

func (m *Manager) deleteOne(path string) (*database.TrashRecord, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return nil, err
	}

	kind := database.TrashKindFile
	if info.IsDir() {
		kind = database.TrashKindDirectory
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	rec := &database.TrashRecord{
		ID:           uuid.NewString(),
		OriginalPath: abs,
		DeletedAt:    time.Now(),
		Kind:         kind,
	}
	rec.TrashPath = trashName(abs, rec.ID)

	// The manifest row lands before the move. A crash between the two leaves
	// an orphaned row that reconcile drops; the entity itself stays put.
	if err := m.db.InsertTrashRecord(rec); err != nil {
		return nil, err
	}

	if err := filesystem.Move(path, filepath.Join(m.root, rec.TrashPath), m.retry); err != nil {
		if delErr := m.db.DeleteTrashRecord(rec.ID); delErr != nil {
			logging.Warn("Removing manifest row %s after failed move: %v", rec.ID, delErr)
		}
		return nil, err
	}

	logging.Info("Trashed %s as %s", abs, rec.TrashPath)
	return rec, nil
}

// Restore moves a trashed entity back to its original path and consumes the
// record. An occupied original path fails with ErrRestoreCollision and
// leaves both the record and the occupant untouched.
func (m *Manager) Restore(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.db.GetTrashRecord(id)
	if err != nil {
		metrics.TrashOperationsTotal.WithLabelValues("restore", "error").Inc()
		return err
	}
	if rec.OriginalPath == "" {
		metrics.TrashOperationsTotal.WithLabelValues("restore", "error").Inc()
		return fmt.Errorf("%w: %s", ErrNoOriginalPath, id)
	}

	if _, err := os.Lstat(rec.OriginalPath); err == nil {
		metrics.TrashOperationsTotal.WithLabelValues("restore", "collision").Inc()
		return fmt.Errorf("%w: %s", ErrRestoreCollision, rec.OriginalPath)
	}

	if err := os.MkdirAll(filepath.Dir(rec.OriginalPath), 0755); err != nil {
		metrics.TrashOperationsTotal.WithLabelValues("restore", "error").Inc()
		return fmt.Errorf("recreating parent of %s: %w", rec.OriginalPath, err)
	}

	if err := filesystem.Move(filepath.Join(m.root, rec.TrashPath), rec.OriginalPath, m.retry); err != nil {
		metrics.TrashOperationsTotal.WithLabelValues("restore", "error").Inc()
		return err
	}

	if err := m.db.MarkTrashRecordRestored(id); err != nil {
		return err
	}

	metrics.TrashOperationsTotal.WithLabelValues("restore", "success").Inc()
	logging.Info("Restored %s to %s", rec.TrashPath, rec.OriginalPath)
	return nil
}

// Purge removes the trash-side entity and drops the record. Irreversible.
func (m *Manager) Purge(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, err := m.db.GetTrashRecord(id)
	if err != nil {
		metrics.TrashOperationsTotal.WithLabelValues("purge", "error").Inc()
		return err
	}

	if err := os.RemoveAll(filepath.Join(m.root, rec.TrashPath)); err != nil {
		metrics.TrashOperationsTotal.WithLabelValues("purge", "error").Inc()
		return fmt.Errorf("removing %s: %w", rec.TrashPath, err)
	}

	if err := m.db.DeleteTrashRecord(id); err != nil {
		return err
	}

	metrics.TrashOperationsTotal.WithLabelValues("purge", "success").Inc()
	logging.Info("Purged %s (%s)", rec.TrashPath, rec.OriginalPath)
	return nil
}

// List returns the active records, most recent first. Unreadable manifest
// rows trigger an automatic reconcile before the list is returned.
func (m *Manager) List() ([]*database.TrashRecord, error) {
	records, skipped, err := m.db.ListTrashRecords()
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		logging.Warn("Trash manifest has %d unreadable rows, reconciling", skipped)
		if _, _, err := m.Reconcile(); err != nil {
			return nil, err
		}
		records, _, err = m.db.ListTrashRecords()
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}
