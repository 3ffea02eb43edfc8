// Package scheduler drains the task queue: each tick claims the highest
// priority pending task, dispatches it to its handler and settles the result.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/jobtrail/internal/observability"
	"github.com/kalambet/jobtrail/internal/storage"
)

// TaskStore abstracts the queue operations the scheduler needs.
type TaskStore interface {
	ClaimNextTask() (*storage.Task, error)
	CompleteTask(id string, resultJSON string) error
	FailOrRetryTask(id string, errMsg string) (storage.TaskStatus, error)
	CompleteJobIfDone(jobID string) (bool, error)
}

// Handler processes a single claimed task. A non-nil result is recorded on
// the task row as JSON.
type Handler interface {
	Handle(ctx context.Context, task *storage.Task) (string, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, task *storage.Task) (string, error)

func (f HandlerFunc) Handle(ctx context.Context, task *storage.Task) (string, error) {
	return f(ctx, task)
}

// Scheduler owns the tick loop. The handler registry is fixed at
// construction; a claimed task with no registered handler fails immediately
// instead of blocking the queue.
type Scheduler struct {
	store    TaskStore
	handlers map[storage.TaskType]Handler
	poll     time.Duration
	logger   *slog.Logger
}

// New creates a Scheduler. If pollInterval is <= 0, it defaults to one minute.
func New(store TaskStore, handlers map[storage.TaskType]Handler, pollInterval time.Duration) *Scheduler {
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}
	return &Scheduler{
		store:    store,
		handlers: handlers,
		poll:     pollInterval,
		logger:   slog.Default(),
	}
}

// Run ticks until ctx is cancelled. When a tick processed a task it ticks
// again immediately to drain the backlog.
func (s *Scheduler) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := s.Tick(ctx)
		if err != nil {
			s.logger.Error("scheduler tick failed", "error", err)
			observability.SchedulerTicks.WithLabelValues("error").Inc()
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.poll):
		}
	}
}

// Tick claims and processes a single task. Returns true if a task was
// claimed, regardless of whether it succeeded. Tick never returns an error
// for a handler failure; those are settled on the task row.
func (s *Scheduler) Tick(ctx context.Context) (bool, error) {
	task, err := s.store.ClaimNextTask()
	if err != nil {
		return false, fmt.Errorf("claiming task: %w", err)
	}
	if task == nil {
		observability.SchedulerTicks.WithLabelValues("idle").Inc()
		return false, nil
	}
	observability.SchedulerTicks.WithLabelValues("processed").Inc()

	start := time.Now()
	result, err := s.runHandler(ctx, task)
	observability.TaskDuration.WithLabelValues(string(task.Type)).Observe(time.Since(start).Seconds())

	if err != nil {
		s.logger.Warn("task failed", "task_id", task.ID, "job_id", task.JobID, "type", task.Type, "error", err)
		settled, failErr := s.store.FailOrRetryTask(task.ID, err.Error())
		if failErr != nil {
			s.logger.Error("failed to settle failed task", "task_id", task.ID, "error", failErr)
			return true, nil
		}
		if settled == storage.TaskFailed {
			observability.TasksProcessed.WithLabelValues(string(task.Type), "failed").Inc()
		} else {
			observability.TasksProcessed.WithLabelValues(string(task.Type), "retried").Inc()
		}
	} else {
		if err := s.store.CompleteTask(task.ID, result); err != nil {
			s.logger.Error("failed to complete task", "task_id", task.ID, "error", err)
			return true, nil
		}
		observability.TasksProcessed.WithLabelValues(string(task.Type), "completed").Inc()
		s.logger.Info("task completed", "task_id", task.ID, "job_id", task.JobID, "type", task.Type)
	}

	promoted, err := s.store.CompleteJobIfDone(task.JobID)
	if err != nil {
		s.logger.Error("failed to check job completion", "job_id", task.JobID, "error", err)
		return true, nil
	}
	if promoted {
		s.logger.Info("job pipeline finished", "job_id", task.JobID)
	}
	return true, nil
}

// runHandler dispatches the task and converts handler panics into errors so
// a misbehaving handler cannot take the scheduler down.
func (s *Scheduler) runHandler(ctx context.Context, task *storage.Task) (result string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()

	handler, ok := s.handlers[task.Type]
	if !ok {
		return "", fmt.Errorf("no handler registered for task type %q", task.Type)
	}
	return handler.Handle(ctx, task)
}
