package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxRetries is applied to enqueued tasks that don't set their own.
const DefaultMaxRetries = 3

// StandardTaskSet returns the fixed batch of tasks enqueued when a job enters
// processing. Generate tasks carry higher priority than their review
// counterparts; the review handlers depend on the initial document existing.
func StandardTaskSet(jobID string) []Task {
	specs := []struct {
		typ      TaskType
		priority int
	}{
		{TaskExtractJobInfo, 100},
		{TaskCalculateMatch, 90},
		{TaskGenerateCV, 80},
		{TaskGenerateCoverLetter, 70},
		{TaskReviewCV, 60},
		{TaskReviewCoverLetter, 50},
	}

	tasks := make([]Task, 0, len(specs))
	for _, sp := range specs {
		tasks = append(tasks, Task{
			ID:       uuid.New().String(),
			JobID:    jobID,
			Type:     sp.typ,
			Priority: sp.priority,
		})
	}
	return tasks
}

func validTaskType(t TaskType) bool {
	for _, known := range KnownTaskTypes {
		if t == known {
			return true
		}
	}
	return false
}

// EnqueueTasks inserts a batch of pending tasks in one transaction. Unknown
// task types are rejected up front so they can never reach dispatch.
func (s *Store) EnqueueTasks(tasks []Task) error {
	if len(tasks) == 0 {
		return nil
	}
	for _, t := range tasks {
		if !validTaskType(t.Type) {
			return fmt.Errorf("unknown task type %q", t.Type)
		}
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning enqueue transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range tasks {
		id := t.ID
		if id == "" {
			id = uuid.New().String()
		}
		maxRetries := t.MaxRetries
		if maxRetries == 0 {
			maxRetries = DefaultMaxRetries
		}
		createdAt := t.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		_, err := tx.Exec(`
			INSERT INTO tasks (id, job_id, task_type, status, priority, retry_count, max_retries, created_at, task_data_json)
			VALUES (?, ?, ?, 'pending', ?, 0, ?, ?, ?)`,
			id, t.JobID, string(t.Type), t.Priority, maxRetries, formatTime(createdAt), t.TaskDataJSON,
		)
		if err != nil {
			return fmt.Errorf("inserting task %s: %w", id, err)
		}
	}

	return tx.Commit()
}

const taskColumns = `id, job_id, task_type, status, priority, retry_count, max_retries,
	created_at, started_at, completed_at, task_data_json, task_result_json, error_message`

func scanTask(row interface{ Scan(...any) error }) (Task, error) {
	var t Task
	var typ, status, createdAt, startedAt, completedAt string
	err := row.Scan(
		&t.ID, &t.JobID, &typ, &status, &t.Priority, &t.RetryCount, &t.MaxRetries,
		&createdAt, &startedAt, &completedAt, &t.TaskDataJSON, &t.TaskResultJSON, &t.ErrorMessage,
	)
	if err != nil {
		return Task{}, err
	}
	t.Type = TaskType(typ)
	t.Status = TaskStatus(status)
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return Task{}, fmt.Errorf("parsing created_at for task %s: %w", t.ID, err)
	}
	if t.StartedAt, err = parseTime(startedAt); err != nil {
		return Task{}, fmt.Errorf("parsing started_at for task %s: %w", t.ID, err)
	}
	if t.CompletedAt, err = parseTime(completedAt); err != nil {
		return Task{}, fmt.Errorf("parsing completed_at for task %s: %w", t.ID, err)
	}
	return t, nil
}

// ClaimNextTask atomically claims the single best pending task: highest
// priority first, oldest creation time as the tie-break. The select and the
// pending→processing transition run in one transaction with a conditional
// UPDATE, so two overlapping ticks can never claim the same row.
// Returns nil when the queue has no pending work.
func (s *Store) ClaimNextTask() (*Task, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}

	row := tx.QueryRow(`SELECT ` + taskColumns + `
		FROM tasks
		WHERE status = 'pending'
		ORDER BY priority DESC, created_at ASC
		LIMIT 1`)

	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		tx.Rollback()
		return nil, nil
	}
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("selecting next task: %w", err)
	}

	now := time.Now()
	res, err := tx.Exec(`UPDATE tasks SET status = 'processing', started_at = ? WHERE id = ? AND status = 'pending'`,
		formatTime(now), t.ID)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("updating task status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("checking updated task rows: %w", err)
	}
	if n != 1 {
		tx.Rollback()
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	t.Status = TaskProcessing
	t.StartedAt = now.UTC()
	return &t, nil
}

// CompleteTask marks a task completed with its result payload.
func (s *Store) CompleteTask(id, resultJSON string) error {
	res, err := s.db.Exec(`UPDATE tasks SET status = 'completed', completed_at = ?, task_result_json = ? WHERE id = ?`,
		formatTime(time.Now()), resultJSON, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// FailOrRetryTask increments retry_count and either re-queues the task as
// pending (keeping its priority and original created_at, so a retried task
// holds its FIFO position among same-priority peers) or, once retry_count
// reaches max_retries, marks it terminally failed. The settled status is
// returned.
func (s *Store) FailOrRetryTask(id, errMsg string) (TaskStatus, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("beginning fail transaction: %w", err)
	}
	defer tx.Rollback()

	var retryCount, maxRetries int
	err = tx.QueryRow(`SELECT retry_count, max_retries FROM tasks WHERE id = ?`, id).Scan(&retryCount, &maxRetries)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	retryCount++

	settled := TaskPending
	if retryCount >= maxRetries {
		settled = TaskFailed
		_, err = tx.Exec(`UPDATE tasks SET status = 'failed', retry_count = ?, error_message = ?, completed_at = ? WHERE id = ?`,
			retryCount, errMsg, formatTime(time.Now()), id)
	} else {
		_, err = tx.Exec(`UPDATE tasks SET status = 'pending', retry_count = ?, error_message = ? WHERE id = ?`,
			retryCount, errMsg, id)
	}
	if err != nil {
		return "", err
	}

	return settled, tx.Commit()
}

// GetTask returns a single task by ID.
func (s *Store) GetTask(id string) (Task, error) {
	row := s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

// ListTasksForJob returns all tasks for a job, ordered by priority then age.
func (s *Store) ListTasksForJob(jobID string) ([]Task, error) {
	rows, err := s.db.Query(`SELECT `+taskColumns+` FROM tasks WHERE job_id = ? ORDER BY priority DESC, created_at ASC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// CountOpenTasks returns the number of tasks for a job still pending or
// processing. Zero means every task has reached a terminal state.
func (s *Store) CountOpenTasks(jobID string) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM tasks WHERE job_id = ? AND status IN ('pending', 'processing')`, jobID).Scan(&n)
	return n, err
}
