package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Little-Star888/agenttask/internal/model"

	_ "modernc.org/sqlite"
)

const createTasksTable = `
CREATE TABLE IF NOT EXISTS tasks (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    active      INTEGER NOT NULL,
    step_count  INTEGER NOT NULL,
    config      TEXT NOT NULL,
    created_at  DATETIME NOT NULL,
    updated_at  DATETIME NOT NULL
)`

const createTasksUpdatedIndex = `
CREATE INDEX IF NOT EXISTS idx_tasks_updated_at ON tasks (updated_at DESC, id)`

// Compile-time interface satisfaction check.
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite. Each write is a single
// statement, so readers see either the previous or the new record.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the SQLite database at dbPath and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every connection to ":memory:" is its own database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	if _, err := db.Exec(createTasksTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tasks table: %w", err)
	}

	if _, err := db.Exec(createTasksUpdatedIndex); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tasks index: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveTask creates or overwrites a task definition.
func (s *SQLiteStore) SaveTask(ctx context.Context, name string, cfg model.TaskConfig, id string) (*model.Task, error) {
	cfg, raw, err := prepareSave(name, cfg)
	if err != nil {
		return nil, err
	}

	t := &model.Task{ID: id, Name: name, Config: cfg, UpdatedAt: now()}

	if id != "" {
		var created dbTime
		err := s.db.QueryRowContext(ctx,
			`UPDATE tasks
			SET name = ?, description = ?, active = ?, step_count = ?, config = ?, updated_at = ?
			WHERE id = ?
			RETURNING created_at`,
			name, cfg.Description, cfg.IsActive(), len(cfg.Steps), string(raw), t.UpdatedAt, id,
		).Scan(&created)
		if err == nil {
			t.CreatedAt = created.Time
			return t, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, storageErr("update task", err)
		}
	}

	t.ID = model.NewTaskID()
	t.CreatedAt = t.UpdatedAt
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO tasks (id, name, description, active, step_count, config, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, name, cfg.Description, cfg.IsActive(), len(cfg.Steps), string(raw), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return nil, storageErr("insert task", err)
	}
	return t, nil
}

// GetTask retrieves a task by ID.
func (s *SQLiteStore) GetTask(ctx context.Context, id string) (*model.Task, error) {
	t := &model.Task{}
	var raw string
	var created, updated dbTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, config, created_at, updated_at FROM tasks WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &raw, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, storageErr("get task", err)
	}
	if err := json.Unmarshal([]byte(raw), &t.Config); err != nil {
		return nil, storageErr("decode task", err)
	}
	t.CreatedAt, t.UpdatedAt = created.Time, updated.Time
	return t, nil
}

// ListTasks returns task summaries, most recently updated first. Steps are
// never decoded.
func (s *SQLiteStore) ListTasks(ctx context.Context) ([]model.TaskSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, active, step_count, updated_at
		FROM tasks ORDER BY updated_at DESC, id`,
	)
	if err != nil {
		return nil, storageErr("list tasks", err)
	}
	defer rows.Close()

	summaries := []model.TaskSummary{}
	for rows.Next() {
		var ts model.TaskSummary
		var updated dbTime
		if err := rows.Scan(&ts.ID, &ts.Name, &ts.Description, &ts.Active, &ts.StepCount, &updated); err != nil {
			return nil, storageErr("scan task", err)
		}
		ts.UpdatedAt = updated.Time
		summaries = append(summaries, ts)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterate tasks", err)
	}
	return summaries, nil
}

// DeleteTask removes a task by ID.
func (s *SQLiteStore) DeleteTask(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return storageErr("delete task", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return storageErr("check rows affected", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// dbTime scans a DATETIME column. The driver yields time.Time when it can
// infer the column type and the stored text otherwise, as with RETURNING.
type dbTime struct {
	time.Time
}

var dbTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
}

func (t *dbTime) Scan(v any) error {
	var s string
	switch val := v.(type) {
	case time.Time:
		t.Time = val.UTC()
		return nil
	case string:
		s = val
	case []byte:
		s = string(val)
	default:
		return fmt.Errorf("scan time: unsupported type %T", v)
	}
	for _, layout := range dbTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("scan time: unrecognized format %q", s)
}
