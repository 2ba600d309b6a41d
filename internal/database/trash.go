package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"dataset-manager/internal/logging"
)

// ErrRecordNotFound is returned when a trash record id does not exist or is
// no longer active.
var ErrRecordNotFound = errors.New("trash record not found")

// InsertTrashRecord appends a record to the manifest. The insert is committed
// before the caller performs the physical move, so a crash between the two
// leaves an orphaned manifest entry rather than an untracked file.
func (d *Database) InsertTrashRecord(rec *TrashRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, err := d.db.Exec(
		`INSERT INTO trash_records (id, original_path, trash_path, deleted_at, kind, status, recovered)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.OriginalPath, rec.TrashPath, rec.DeletedAt.Unix(),
		string(rec.Kind), TrashStatusTrashed, boolToInt(rec.Recovered),
	)
	recordQuery("insert_trash_record", err)
	if err != nil {
		return fmt.Errorf("inserting trash record: %w", err)
	}
	return nil
}

// GetTrashRecord returns the active record with the given ID.
func (d *Database) GetTrashRecord(id string) (*TrashRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	row := d.db.QueryRow(
		`SELECT id, original_path, trash_path, deleted_at, kind, recovered
		 FROM trash_records WHERE id = ? AND status = ?`, id, TrashStatusTrashed)

	rec, err := scanTrashRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// FindTrashRecordByTrashPath returns the active record whose trash-side name
// matches, or ErrRecordNotFound.
func (d *Database) FindTrashRecordByTrashPath(trashPath string) (*TrashRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	row := d.db.QueryRow(
		`SELECT id, original_path, trash_path, deleted_at, kind, recovered
		 FROM trash_records WHERE trash_path = ? AND status = ?`, trashPath, TrashStatusTrashed)

	rec, err := scanTrashRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// MarkTrashRecordRestored consumes a record after its entity has been moved
// back to the original path.
func (d *Database) MarkTrashRecordRestored(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.db.Exec(
		`UPDATE trash_records SET status = ? WHERE id = ? AND status = ?`,
		TrashStatusRestored, id, TrashStatusTrashed,
	)
	recordQuery("restore_trash_record", err)
	if err != nil {
		return fmt.Errorf("marking trash record restored: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// DeleteTrashRecord drops a record from the manifest (purge, or reconcile of
// a record whose trash-side entity is gone).
func (d *Database) DeleteTrashRecord(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.db.Exec(`DELETE FROM trash_records WHERE id = ?`, id)
	recordQuery("delete_trash_record", err)
	if err != nil {
		return fmt.Errorf("deleting trash record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// ListTrashRecords returns all active records, most recently deleted first.
// Unreadable rows are skipped with a warning; the caller is expected to run
// reconcile when corruption is reported.
func (d *Database) ListTrashRecords() ([]*TrashRecord, int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(
		`SELECT id, original_path, trash_path, deleted_at, kind, recovered
		 FROM trash_records WHERE status = ? ORDER BY deleted_at DESC, rowid DESC`, TrashStatusTrashed)
	if err != nil {
		return nil, 0, fmt.Errorf("listing trash records: %w", err)
	}
	defer rows.Close()

	var (
		records []*TrashRecord
		skipped int
	)
	for rows.Next() {
		rec, err := scanTrashRecord(rows)
		if err != nil {
			logging.Warn("Skipping unreadable trash record row: %v", err)
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, rows.Err()
}

func scanTrashRecord(s scanner) (*TrashRecord, error) {
	var (
		rec       TrashRecord
		deletedAt int64
		kind      string
		recovered int
	)
	if err := s.Scan(&rec.ID, &rec.OriginalPath, &rec.TrashPath, &deletedAt, &kind, &recovered); err != nil {
		return nil, err
	}

	switch TrashKind(kind) {
	case TrashKindFile, TrashKindDirectory:
		rec.Kind = TrashKind(kind)
	default:
		return nil, fmt.Errorf("trash record %s has unknown kind %q", rec.ID, kind)
	}

	rec.DeletedAt = time.Unix(deletedAt, 0)
	rec.Recovered = recovered != 0
	return &rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
