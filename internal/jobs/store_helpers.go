package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(scanner rowScanner) (*Job, error) {
	var (
		job        Job
		dataFile   sql.NullString
		pluginJSON string
		envJSON    string
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&job.ID,
		&job.Name,
		&dataFile,
		&pluginJSON,
		&envJSON,
		&job.FirstFrame,
		&job.LastFrame,
		&job.ChunkSize,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	job.DataFile = dataFile.String
	if err := json.Unmarshal([]byte(pluginJSON), &job.Plugin); err != nil {
		return nil, fmt.Errorf("decode plugin info for job %s: %w", job.ID, err)
	}
	if err := json.Unmarshal([]byte(envJSON), &job.Environment); err != nil {
		return nil, fmt.Errorf("decode environment for job %s: %w", job.ID, err)
	}
	if job.Environment == nil {
		job.Environment = map[string]string{}
	}
	job.CreatedAt = parseTime(createdRaw)
	job.UpdatedAt = parseTime(updatedRaw)
	return &job, nil
}

func scanTask(scanner rowScanner) (*Task, error) {
	var (
		task       Task
		status     string
		message    sql.NullString
		exitCode   sql.NullInt64
		failure    sql.NullString
		updatedRaw string
	)
	if err := scanner.Scan(
		&task.JobID,
		&task.ID,
		&task.StartFrame,
		&task.EndFrame,
		&status,
		&task.Progress,
		&message,
		&exitCode,
		&failure,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	task.Status = TaskStatus(status)
	task.StatusMessage = message.String
	task.Failure = failure.String
	if exitCode.Valid {
		code := int(exitCode.Int64)
		task.ExitCode = &code
	}
	task.UpdatedAt = parseTime(updatedRaw)
	return &task, nil
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nowString() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// retryOnBusy retries op while SQLite reports the database as locked. Several
// render slots update task progress against the same file.
func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}
