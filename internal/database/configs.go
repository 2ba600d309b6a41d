package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"dataset-manager/internal/logging"
	"dataset-manager/internal/metrics"
	"dataset-manager/internal/modelconfig"
)

// configParams is the JSON persisted in the params column; exactly one field
// is set, matching the kind column.
type configParams struct {
	Local  *modelconfig.LocalParams  `json:"local,omitempty"`
	Remote *modelconfig.RemoteParams `json:"remote,omitempty"`
}

// AddModelConfig validates and stores a new config, assigning and returning
// its ID.
func (d *Database) AddModelConfig(c *modelconfig.Config) (string, error) {
	if err := modelconfig.Validate(c); err != nil {
		return "", err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	params, err := json.Marshal(configParams{Local: c.Local, Remote: c.Remote})
	if err != nil {
		return "", fmt.Errorf("encoding config params: %w", err)
	}

	id := uuid.NewString()
	now := time.Now().Unix()
	_, err = d.db.Exec(
		`INSERT INTO model_configs (id, name, kind, params, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		id, c.Name, string(c.Kind), string(params), now, now,
	)
	recordQuery("add_model_config", err)
	if err != nil {
		return "", fmt.Errorf("inserting model config: %w", err)
	}

	c.ID = id
	logging.Info("Added model config %s (%s, kind=%s)", id, c.Name, c.Kind)
	return id, nil
}

// UpdateModelConfig validates and replaces the config with the given ID.
func (d *Database) UpdateModelConfig(id string, c *modelconfig.Config) error {
	if err := modelconfig.Validate(c); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	params, err := json.Marshal(configParams{Local: c.Local, Remote: c.Remote})
	if err != nil {
		return fmt.Errorf("encoding config params: %w", err)
	}

	res, err := d.db.Exec(
		`UPDATE model_configs SET name = ?, kind = ?, params = ?, updated_at = ? WHERE id = ?`,
		c.Name, string(c.Kind), string(params), time.Now().Unix(), id,
	)
	recordQuery("update_model_config", err)
	if err != nil {
		return fmt.Errorf("updating model config: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return modelconfig.ErrNotFound
	}

	c.ID = id
	logging.Info("Updated model config %s (%s)", id, c.Name)
	return nil
}

// RemoveModelConfig deletes the config with the given ID.
func (d *Database) RemoveModelConfig(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	res, err := d.db.Exec(`DELETE FROM model_configs WHERE id = ?`, id)
	recordQuery("remove_model_config", err)
	if err != nil {
		return fmt.Errorf("removing model config: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return modelconfig.ErrNotFound
	}

	logging.Info("Removed model config %s", id)
	return nil
}

// GetModelConfig returns the config with the given ID.
func (d *Database) GetModelConfig(id string) (*modelconfig.Config, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	row := d.db.QueryRow(
		`SELECT id, name, kind, params, created_at, updated_at FROM model_configs WHERE id = ?`, id)

	c, err := scanModelConfig(row)
	if err == sql.ErrNoRows {
		return nil, modelconfig.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ListModelConfigs returns all configs in insertion order.
func (d *Database) ListModelConfigs() ([]*modelconfig.Config, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rows, err := d.db.Query(
		`SELECT id, name, kind, params, created_at, updated_at FROM model_configs ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("listing model configs: %w", err)
	}
	defer rows.Close()

	var configs []*modelconfig.Config
	for rows.Next() {
		c, err := scanModelConfig(rows)
		if err != nil {
			logging.Warn("Skipping unreadable model config row: %v", err)
			continue
		}
		configs = append(configs, c)
	}
	return configs, rows.Err()
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanModelConfig(s scanner) (*modelconfig.Config, error) {
	var (
		c         modelconfig.Config
		kind      string
		rawParams string
		createdAt int64
		updatedAt int64
	)
	if err := s.Scan(&c.ID, &c.Name, &kind, &rawParams, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var params configParams
	if err := json.Unmarshal([]byte(rawParams), &params); err != nil {
		return nil, fmt.Errorf("decoding config params for %s: %w", c.ID, err)
	}

	c.Kind = modelconfig.Kind(kind)
	c.Local = params.Local
	c.Remote = params.Remote
	c.CreatedAt = time.Unix(createdAt, 0)
	c.UpdatedAt = time.Unix(updatedAt, 0)
	return &c, nil
}

func recordQuery(operation string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
}
