package task

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Compile-time check that SQLiteRepository implements Repository.
var _ Repository = (*SQLiteRepository)(nil)

// SQLiteRepository persists tasks in a SQLite database so task status
// survives a restart. Tasks left QUEUED or RUNNING by a previous process
// are marked FAILED when the database is opened.
type SQLiteRepository struct {
	conn   *sql.DB
	logger *slog.Logger
}

// NewSQLiteRepository opens (or creates) the database at dbPath and applies migrations.
func NewSQLiteRepository(dbPath string, logger *slog.Logger) (*SQLiteRepository, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0750); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	r := &SQLiteRepository{conn: conn, logger: logger}
	if err := r.migrate(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	if n, err := r.markInterrupted(); err != nil {
		logger.Warn("failed to mark interrupted tasks", slog.String("error", err.Error()))
	} else if n > 0 {
		logger.Info("marked interrupted tasks as failed", slog.Int64("count", n))
	}

	return r, nil
}

// Close closes the database.
func (r *SQLiteRepository) Close() error {
	return r.conn.Close()
}

func (r *SQLiteRepository) migrate() error {
	migrations, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations: %w", err)
	}

	for _, m := range migrations {
		if m.IsDir() {
			continue
		}
		name := m.Name()
		if r.isMigrationApplied(name) {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := r.conn.Exec(string(content)); err != nil {
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
		if _, err := r.conn.Exec("INSERT INTO _migrations (name) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}

		r.logger.Info("applied migration", slog.String("name", name))
	}
	return nil
}

func (r *SQLiteRepository) isMigrationApplied(name string) bool {
	var exists int
	err := r.conn.QueryRow("SELECT 1 FROM sqlite_master WHERE type='table' AND name='_migrations'").Scan(&exists)
	if err != nil {
		return false
	}

	var applied int
	err = r.conn.QueryRow("SELECT 1 FROM _migrations WHERE name = ?", name).Scan(&applied)
	return err == nil && applied == 1
}

func (r *SQLiteRepository) markInterrupted() (int64, error) {
	now := formatTime(time.Now())
	res, err := r.conn.Exec(`
		UPDATE tasks SET status = ?, error = 'interrupted by restart', updated_at = ?, completed_at = ?
		WHERE status IN (?, ?)
	`, string(StatusFailed), now, now, string(StatusQueued), string(StatusRunning))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Save inserts or replaces the task.
func (r *SQLiteRepository) Save(ctx context.Context, task *Task) error {
	t := task.Clone()
	skipped, err := json.Marshal(t.Skipped)
	if err != nil {
		return fmt.Errorf("marshal skipped indices: %w", err)
	}

	_, err = r.conn.ExecContext(ctx, `
		INSERT INTO tasks (id, session_id, kind, status, progress, output_path, video_url,
			processed, skipped, error, created_at, updated_at, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			output_path = excluded.output_path,
			video_url = excluded.video_url,
			processed = excluded.processed,
			skipped = excluded.skipped,
			error = excluded.error,
			updated_at = excluded.updated_at,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`, t.ID, t.SessionID, string(t.Kind), string(t.Status), t.Progress,
		nullString(t.OutputPath), nullString(t.VideoURL), t.Processed, string(skipped), nullString(t.Error),
		formatTime(t.CreatedAt), formatTime(t.UpdatedAt), nullTime(t.StartedAt), nullTime(t.CompletedAt))
	if err != nil {
		return fmt.Errorf("save task %s: %w", t.ID, err)
	}
	return nil
}

const selectColumns = `SELECT id, session_id, kind, status, progress, output_path, video_url,
	processed, skipped, error, created_at, updated_at, started_at, completed_at FROM tasks`

// FindByID retrieves a task by ID.
func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (*Task, error) {
	row := r.conn.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find task %s: %w", id, err)
	}
	return t, nil
}

// List returns all tasks, newest first.
func (r *SQLiteRepository) List(ctx context.Context) ([]*Task, error) {
	return r.query(ctx, selectColumns+" ORDER BY created_at DESC")
}

// ListBySession returns the session's tasks, newest first.
func (r *SQLiteRepository) ListBySession(ctx context.Context, sessionID string) ([]*Task, error) {
	return r.query(ctx, selectColumns+" WHERE session_id = ? ORDER BY created_at DESC", sessionID)
}

func (r *SQLiteRepository) query(ctx context.Context, q string, args ...any) ([]*Task, error) {
	rows, err := r.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	tasks := make([]*Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Delete removes a task.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.conn.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task %s: %w", id, err)
	}
	if n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(s scanner) (*Task, error) {
	var t Task
	var outputPath, videoURL, errMsg, startedAt, completedAt sql.NullString
	var skipped, createdAt, updatedAt string

	if err := s.Scan(&t.ID, &t.SessionID, &t.Kind, &t.Status, &t.Progress, &outputPath, &videoURL,
		&t.Processed, &skipped, &errMsg, &createdAt, &updatedAt, &startedAt, &completedAt); err != nil {
		return nil, err
	}

	t.OutputPath = outputPath.String
	t.VideoURL = videoURL.String
	t.Error = errMsg.String
	if err := json.Unmarshal([]byte(skipped), &t.Skipped); err != nil {
		return nil, fmt.Errorf("decode skipped indices: %w", err)
	}
	if t.Skipped == nil {
		t.Skipped = make([]int, 0)
	}
	t.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	t.UpdatedAt, _ = time.Parse(timeLayout, updatedAt)
	t.StartedAt, _ = time.Parse(timeLayout, startedAt.String)
	t.CompletedAt, _ = time.Parse(timeLayout, completedAt.String)
	return &t, nil
}

// timeLayout has fixed-width fractional seconds so stored values sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
