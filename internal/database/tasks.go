package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dataset-manager/internal/logging"
)

// ErrTaskRecordNotFound is returned when a task id has no history row.
var ErrTaskRecordNotFound = errors.New("task record not found")

// InsertTaskRecord adds a history row for a newly started task.
func (d *Database) InsertTaskRecord(rec *TaskRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	fileErrors, err := encodeFileErrors(rec.FileErrors)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	_, err = d.db.Exec(
		`INSERT INTO tasks (id, dataset_path, model_config_id, status, processed, total, file_errors, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.DatasetPath, rec.ModelConfigID, rec.Status,
		rec.Processed, rec.Total, fileErrors, now, now,
	)
	recordQuery("insert_task_record", err)
	if err != nil {
		return fmt.Errorf("inserting task record: %w", err)
	}
	return nil
}

// UpdateTaskRecord refreshes the mutable fields of a task history row.
func (d *Database) UpdateTaskRecord(rec *TaskRecord) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	fileErrors, err := encodeFileErrors(rec.FileErrors)
	if err != nil {
		return err
	}

	res, err := d.db.Exec(
		`UPDATE tasks SET status = ?, processed = ?, total = ?, file_errors = ?, updated_at = ? WHERE id = ?`,
		rec.Status, rec.Processed, rec.Total, fileErrors, time.Now().Unix(), rec.ID,
	)
	recordQuery("update_task_record", err)
	if err != nil {
		return fmt.Errorf("updating task record: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTaskRecordNotFound
	}
	return nil
}

// GetTaskRecord returns one task history row.
func (d *Database) GetTaskRecord(id string) (*TaskRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	row := d.db.QueryRow(
		`SELECT id, dataset_path, model_config_id, status, processed, total, file_errors, created_at, updated_at
		 FROM tasks WHERE id = ?`, id)

	rec, err := scanTaskRecord(row)
	if err == sql.ErrNoRows {
		return nil, ErrTaskRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListTaskRecords returns task history, most recently created first.
func (d *Database) ListTaskRecords(limit int) ([]*TaskRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	query := `SELECT id, dataset_path, model_config_id, status, processed, total, file_errors, created_at, updated_at
	          FROM tasks ORDER BY created_at DESC, rowid DESC`
	var (
		rows *sql.Rows
		err  error
	)
	if limit > 0 {
		rows, err = d.db.Query(query+" LIMIT ?", limit)
	} else {
		rows, err = d.db.Query(query)
	}
	if err != nil {
		return nil, fmt.Errorf("listing task records: %w", err)
	}
	defer rows.Close()

	var records []*TaskRecord
	for rows.Next() {
		rec, err := scanTaskRecord(rows)
		if err != nil {
			logging.Warn("Skipping unreadable task record row: %v", err)
			continue
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func scanTaskRecord(s scanner) (*TaskRecord, error) {
	var (
		rec        TaskRecord
		fileErrors string
		createdAt  int64
		updatedAt  int64
	)
	if err := s.Scan(&rec.ID, &rec.DatasetPath, &rec.ModelConfigID, &rec.Status,
		&rec.Processed, &rec.Total, &fileErrors, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	if fileErrors != "" && fileErrors != "{}" {
		if err := json.Unmarshal([]byte(fileErrors), &rec.FileErrors); err != nil {
			return nil, fmt.Errorf("decoding file errors for task %s: %w", rec.ID, err)
		}
	}

	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.UpdatedAt = time.Unix(updatedAt, 0)
	return &rec, nil
}

func encodeFileErrors(fileErrors map[string]string) (string, error) {
	if len(fileErrors) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(fileErrors)
	if err != nil {
		return "", fmt.Errorf("encoding file errors: %w", err)
	}
	return string(data), nil
}
