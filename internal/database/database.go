package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"dataset-manager/internal/logging"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Database manages all durable state for the dataset manager: model
// configurations, the trash manifest, task history, and the API token.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New creates a new Database instance.
// dbPath must be the full path to the database FILE (e.g.,
// "/database/dataset-manager.db") and the parent directory must already
// exist and be writable.
//
// A corrupt database file never aborts startup: the damaged file is moved
// aside and a fresh store is created with a warning. The trash manifest is
// rebuilt from the physical directory by the reconcile pass at startup.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	if err := diagnosePermissions(dbPath); err != nil {
		logging.Warn("Database permission diagnostics: %v", err)
	}

	d, err := open(ctx, dbPath)
	if err != nil && isCorruptError(err) {
		logging.Warn("Database at %s is corrupt, starting with an empty store: %v", dbPath, err)
		if moveErr := quarantineCorruptFile(dbPath); moveErr != nil {
			return nil, fmt.Errorf("quarantining corrupt database: %w", moveErr)
		}
		d, err = open(ctx, dbPath)
	}
	if err != nil {
		return nil, err
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func open(ctx context.Context, dbPath string) (*Database, error) {
	// WAL mode plus busy_timeout prevents "database is locked" errors when
	// the task runner and trash manager commit concurrently.
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}
	return d, nil
}

// isCorruptError reports whether the error indicates an unreadable database
// file rather than a transient or permission problem.
func isCorruptError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "file is not a database") ||
		strings.Contains(msg, "database disk image is malformed") ||
		strings.Contains(msg, "file is encrypted")
}

// quarantineCorruptFile moves the database file and its WAL sidecars aside
// so the damaged data stays available for inspection.
func quarantineCorruptFile(dbPath string) error {
	suffix := fmt.Sprintf(".corrupt-%d", time.Now().Unix())
	if err := os.Rename(dbPath, dbPath+suffix); err != nil {
		return err
	}
	for _, sidecar := range []string{dbPath + "-wal", dbPath + "-shm"} {
		if err := os.Rename(sidecar, sidecar+suffix); err != nil && !os.IsNotExist(err) {
			logging.Warn("Could not move aside %s: %v", sidecar, err)
		}
	}
	return nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	-- Named detection backend configurations. Insertion order is rowid order.
	CREATE TABLE IF NOT EXISTS model_configs (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		params TEXT NOT NULL,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	-- Trash manifest: the record of truth for soft-deleted entries.
	CREATE TABLE IF NOT EXISTS trash_records (
		id TEXT PRIMARY KEY,
		original_path TEXT NOT NULL,
		trash_path TEXT NOT NULL UNIQUE,
		deleted_at INTEGER NOT NULL,
		kind TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'trashed',
		recovered INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_trash_records_status ON trash_records(status);
	CREATE INDEX IF NOT EXISTS idx_trash_records_deleted_at ON trash_records(deleted_at);

	-- Annotation task history.
	CREATE TABLE IF NOT EXISTS tasks (
		id TEXT PRIMARY KEY,
		dataset_path TEXT NOT NULL,
		model_config_id TEXT NOT NULL,
		status TEXT NOT NULL,
		processed INTEGER NOT NULL DEFAULT 0,
		total INTEGER NOT NULL DEFAULT 0,
		file_errors TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);

	-- Single-row API token table.
	CREATE TABLE IF NOT EXISTS auth_token (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		token_hash TEXT NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);
	`

	initCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err := d.db.ExecContext(initCtx, schema)
	return err
}

// Close closes the underlying database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.dbPath
}

// diagnosePermissions surfaces common deployment mistakes (missing parent
// directory, read-only volume) before sqlite produces an opaque error.
func diagnosePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("database directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("database parent %s is not a directory", dir)
	}

	probe := filepath.Join(dir, ".write-probe")
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("database directory %s is not writable: %w", dir, err)
	}
	f.Close()
	os.Remove(probe)
	return nil
}
