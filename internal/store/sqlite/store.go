package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	apperrors "hyperfocus/internal/errors"
	"hyperfocus/internal/logging"
	"hyperfocus/internal/toolengine"
)

// ErrTaskNotFound reports a task id that does not exist for the caller.
var ErrTaskNotFound = errors.New("task not found")

// Task statuses.
const (
	StatusPending   = "pending"
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// FocusTask is one unit of hyperfocus work.
type FocusTask struct {
	ID           int64      `json:"id"`
	UserID       string     `json:"user_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description,omitempty"`
	Status       string     `json:"status"`
	Priority     string     `json:"priority"`
	FocusMinutes int        `json:"focus_minutes"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// Stats aggregates a user's tasks.
type Stats struct {
	Total             int `json:"total"`
	Pending           int `json:"pending"`
	Active            int `json:"active"`
	Completed         int `json:"completed"`
	TotalFocusMinutes int `json:"total_focus_minutes"`
}

// Store is the persistence collaborator backing the focus-task tools and
// the engine's execution log. Single-row operations rely on sqlite's own
// atomicity; there are no cross-row transactions here.
type Store struct {
	db     *sql.DB
	logger logging.Logger
}

// Open connects to the sqlite database and ensures the schema exists.
func Open(dsn string, logger logging.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	// sqlite handles one writer at a time; a single connection avoids
	// SQLITE_BUSY churn under concurrent tool calls.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, logger: logging.OrNop(logger)}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS focus_tasks (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id       TEXT    NOT NULL,
	title         TEXT    NOT NULL,
	description   TEXT    NOT NULL DEFAULT '',
	status        TEXT    NOT NULL DEFAULT 'pending',
	priority      TEXT    NOT NULL DEFAULT 'medium',
	focus_minutes INTEGER NOT NULL DEFAULT 0,
	created_at    TIMESTAMP NOT NULL,
	updated_at    TIMESTAMP NOT NULL,
	completed_at  TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_focus_tasks_user ON focus_tasks(user_id, status);

CREATE TABLE IF NOT EXISTS tool_executions (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id           TEXT NOT NULL,
	tool_name         TEXT NOT NULL,
	tool_call_id      TEXT NOT NULL,
	parameters        TEXT NOT NULL,
	result            TEXT,
	error_message     TEXT,
	status            TEXT NOT NULL,
	execution_time_ms INTEGER NOT NULL,
	completed_at      TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tool_executions_user ON tool_executions(user_id, completed_at);
`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// CreateTask inserts a new task and returns it with timestamps filled.
func (s *Store) CreateTask(ctx context.Context, task FocusTask) (*FocusTask, error) {
	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
	if task.Status == "" {
		task.Status = StatusPending
	}
	if task.Priority == "" {
		task.Priority = "medium"
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO focus_tasks (user_id, title, description, status, priority, focus_minutes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.UserID, task.Title, task.Description, task.Status, task.Priority, task.FocusMinutes, task.CreatedAt, task.UpdatedAt)
	if err != nil {
		return nil, apperrors.NewDatabase(err)
	}
	task.ID, err = res.LastInsertId()
	if err != nil {
		return nil, apperrors.NewDatabase(err)
	}
	return &task, nil
}

// GetTask fetches one task scoped to its owner.
func (s *Store) GetTask(ctx context.Context, userID string, id int64) (*FocusTask, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, description, status, priority, focus_minutes, created_at, updated_at, completed_at
		FROM focus_tasks WHERE id = ? AND user_id = ?`, id, userID)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTaskNotFound
	}
	if err != nil {
		return nil, apperrors.NewDatabase(err)
	}
	return task, nil
}

// ListTasks returns the caller's tasks, optionally filtered by status,
// newest first.
func (s *Store) ListTasks(ctx context.Context, userID, status string, limit int) ([]FocusTask, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := `
		SELECT id, user_id, title, description, status, priority, focus_minutes, created_at, updated_at, completed_at
		FROM focus_tasks WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewDatabase(err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// SearchTasks matches title and description against a substring query.
func (s *Store) SearchTasks(ctx context.Context, userID, query string, limit int) ([]FocusTask, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	pattern := "%" + strings.ReplaceAll(query, "%", `\%`) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, title, description, status, priority, focus_minutes, created_at, updated_at, completed_at
		FROM focus_tasks
		WHERE user_id = ? AND (title LIKE ? ESCAPE '\' OR description LIKE ? ESCAPE '\')
		ORDER BY created_at DESC LIMIT ?`, userID, pattern, pattern, limit)
	if err != nil {
		return nil, apperrors.NewDatabase(err)
	}
	defer rows.Close()
	return collectTasks(rows)
}

// TaskUpdate lists the mutable fields; nil pointers leave the column
// untouched.
type TaskUpdate struct {
	Title        *string
	Description  *string
	Status       *string
	Priority     *string
	FocusMinutes *int
}

// UpdateTask applies a partial update and returns the refreshed row.
func (s *Store) UpdateTask(ctx context.Context, userID string, id int64, update TaskUpdate) (*FocusTask, error) {
	var sets []string
	var args []any
	if update.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *update.Title)
	}
	if update.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *update.Description)
	}
	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *update.Status)
	}
	if update.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, *update.Priority)
	}
	if update.FocusMinutes != nil {
		sets = append(sets, "focus_minutes = ?")
		args = append(args, *update.FocusMinutes)
	}
	if len(sets) == 0 {
		return s.GetTask(ctx, userID, id)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id, userID)

	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE focus_tasks SET %s WHERE id = ? AND user_id = ?", strings.Join(sets, ", ")), args...)
	if err != nil {
		return nil, apperrors.NewDatabase(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, apperrors.NewDatabase(err)
	}
	if affected == 0 {
		return nil, ErrTaskNotFound
	}
	return s.GetTask(ctx, userID, id)
}

// CompleteTask marks a task completed and records the focus minutes spent.
func (s *Store) CompleteTask(ctx context.Context, userID string, id int64, focusMinutes int) (*FocusTask, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx, `
		UPDATE focus_tasks
		SET status = ?, focus_minutes = focus_minutes + ?, completed_at = ?, updated_at = ?
		WHERE id = ? AND user_id = ? AND status != ?`,
		StatusCompleted, focusMinutes, now, now, id, userID, StatusCompleted)
	if err != nil {
		return nil, apperrors.NewDatabase(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, apperrors.NewDatabase(err)
	}
	if affected == 0 {
		// Either missing or already completed; disambiguate for the caller.
		if _, getErr := s.GetTask(ctx, userID, id); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("task %d is already completed", id)
	}
	return s.GetTask(ctx, userID, id)
}

// DeleteTask removes a task permanently.
func (s *Store) DeleteTask(ctx context.Context, userID string, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM focus_tasks WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return apperrors.NewDatabase(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewDatabase(err)
	}
	if affected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// TaskStats aggregates the caller's tasks.
func (s *Store) TaskStats(ctx context.Context, userID string) (*Stats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN status = 'completed' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(focus_minutes), 0)
		FROM focus_tasks WHERE user_id = ?`, userID)

	var stats Stats
	if err := row.Scan(&stats.Total, &stats.Pending, &stats.Active, &stats.Completed, &stats.TotalFocusMinutes); err != nil {
		return nil, apperrors.NewDatabase(err)
	}
	return &stats, nil
}

// RecordExecution implements toolengine.ExecutionLog.
func (s *Store) RecordExecution(ctx context.Context, record toolengine.ExecutionRecord) error {
	params, err := json.Marshal(record.Parameters)
	if err != nil {
		params = []byte("{}")
	}
	var result []byte
	if record.Result != nil {
		result, _ = json.Marshal(record.Result)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tool_executions (user_id, tool_name, tool_call_id, parameters, result, error_message, status, execution_time_ms, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.UserID, record.ToolName, record.ToolCallID, string(params), nullableString(result),
		record.ErrorMessage, record.Status, record.ExecutionTimeMS, record.CompletedAt)
	if err != nil {
		return fmt.Errorf("record execution: %w", err)
	}
	return nil
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*FocusTask, error) {
	var task FocusTask
	var completedAt sql.NullTime
	err := row.Scan(&task.ID, &task.UserID, &task.Title, &task.Description, &task.Status,
		&task.Priority, &task.FocusMinutes, &task.CreatedAt, &task.UpdatedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	if completedAt.Valid {
		task.CompletedAt = &completedAt.Time
	}
	return &task, nil
}

func collectTasks(rows *sql.Rows) ([]FocusTask, error) {
	var tasks []FocusTask
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, apperrors.NewDatabase(err)
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabase(err)
	}
	return tasks, nil
}

var _ toolengine.ExecutionLog = (*Store)(nil)
