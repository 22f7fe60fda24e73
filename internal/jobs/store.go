package jobs

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"natronfarm/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes incompatibly.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	jobColumns  = "id, name, data_file, plugin_json, environment_json, first_frame, last_frame, chunk_size, created_at, updated_at"
	taskColumns = "job_id, task_id, start_frame, end_frame, status, progress, status_message, exit_code, failure, updated_at"
)

// Store persists job records and task state in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the job database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}
	return OpenPath(cfg.JobsDBPath())
}

// OpenPath opens the job database at an explicit location.
func OpenPath(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to start over)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// CreateJob inserts a job and one queued task per frame chunk. A missing ID is
// assigned a random UUID.
func (s *Store) CreateJob(ctx context.Context, job *Job) error {
	if job == nil {
		return errors.New("job required")
	}
	if strings.TrimSpace(job.ID) == "" {
		job.ID = uuid.NewString()
	}
	if job.ChunkSize <= 0 {
		job.ChunkSize = 1
	}
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	pluginJSON, envJSON, err := encodeJob(job)
	if err != nil {
		return err
	}
	timestamp := now.Format(time.RFC3339Nano)

	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin job tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			job.ID, job.Name, nullableString(job.DataFile), pluginJSON, envJSON,
			job.FirstFrame, job.LastFrame, job.ChunkSize, timestamp, timestamp,
		); err != nil {
			return fmt.Errorf("insert job: %w", err)
		}

		for i, chunk := range splitFrames(job.FirstFrame, job.LastFrame, job.ChunkSize) {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO tasks (job_id, task_id, start_frame, end_frame, status, progress, updated_at)
                 VALUES (?, ?, ?, ?, ?, 0, ?)`,
				job.ID, i, chunk.start, chunk.end, TaskStatusQueued, timestamp,
			); err != nil {
				return fmt.Errorf("insert task %d: %w", i, err)
			}
		}
		return tx.Commit()
	})
}

// SaveJob persists the mutable job fields (name, plugin info, environment).
func (s *Store) SaveJob(ctx context.Context, job *Job) error {
	if job == nil || job.ID == "" {
		return errors.New("job with id required")
	}
	pluginJSON, envJSON, err := encodeJob(job)
	if err != nil {
		return err
	}
	job.UpdatedAt = time.Now().UTC()
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET name = ?, data_file = ?, plugin_json = ?, environment_json = ?, updated_at = ? WHERE id = ?`,
		job.Name, nullableString(job.DataFile), pluginJSON, envJSON, job.UpdatedAt.Format(time.RFC3339Nano), job.ID,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("update job %s: no such job", job.ID)
	}
	return nil
}

// GetJob fetches a job by identifier. It returns nil without error when the job does not exist.
func (s *Store) GetJob(ctx context.Context, id string) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// ListJobs returns every job, newest first.
func (s *Store) ListJobs(ctx context.Context) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var result []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		result = append(result, job)
	}
	return result, rows.Err()
}

// ListTasks returns the tasks of a job ordered by task index.
func (s *Store) ListTasks(ctx context.Context, jobID string) ([]*Task, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE job_id = ? ORDER BY task_id`, jobID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var result []*Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		result = append(result, task)
	}
	return result, rows.Err()
}

// GetTask fetches one task. It returns nil without error when the task does not exist.
func (s *Store) GetTask(ctx context.Context, jobID string, taskID int) (*Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE job_id = ? AND task_id = ?`, jobID, taskID)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get task: %w", err)
	}
	return task, nil
}

// MarkTaskRunning resets the task's progress and moves it to running.
func (s *Store) MarkTaskRunning(ctx context.Context, jobID string, taskID int) error {
	return s.updateTask(ctx,
		`UPDATE tasks SET status = ?, progress = 0, status_message = NULL, exit_code = NULL, failure = NULL, updated_at = ?
         WHERE job_id = ? AND task_id = ?`,
		TaskStatusRunning, nowString(), jobID, taskID)
}

// UpdateTaskProgress records the latest progress percentage and status message.
func (s *Store) UpdateTaskProgress(ctx context.Context, jobID string, taskID int, progress float64, message string) error {
	return s.updateTask(ctx,
		`UPDATE tasks SET progress = ?, status_message = ?, updated_at = ? WHERE job_id = ? AND task_id = ?`,
		progress, nullableString(message), nowString(), jobID, taskID)
}

// FinishTask stores the terminal status, exit code and failure reason.
func (s *Store) FinishTask(ctx context.Context, jobID string, taskID int, status TaskStatus, exitCode *int, failure string) error {
	if !status.IsTerminal() {
		return fmt.Errorf("finish task: status %q is not terminal", status)
	}
	var code any
	if exitCode != nil {
		code = *exitCode
	}
	return s.updateTask(ctx,
		`UPDATE tasks SET status = ?, exit_code = ?, failure = ?, updated_at = ? WHERE job_id = ? AND task_id = ?`,
		status, code, nullableString(failure), nowString(), jobID, taskID)
}

func (s *Store) updateTask(ctx context.Context, query string, args ...any) error {
	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.New("update task: no such task")
	}
	return nil
}

func encodeJob(job *Job) (string, string, error) {
	pluginJSON, err := json.Marshal(job.Plugin)
	if err != nil {
		return "", "", fmt.Errorf("marshal plugin info: %w", err)
	}
	env := job.Environment
	if env == nil {
		env = map[string]string{}
	}
	envJSON, err := json.Marshal(env)
	if err != nil {
		return "", "", fmt.Errorf("marshal environment: %w", err)
	}
	return string(pluginJSON), string(envJSON), nil
}
