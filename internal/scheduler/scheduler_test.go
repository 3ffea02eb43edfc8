package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kalambet/jobtrail/internal/storage"
)

func openTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestJob(t *testing.T, s *storage.Store, id string) {
	t.Helper()
	if err := s.CreateJob(storage.Job{ID: id, InputType: storage.InputText, InputContent: "posting"}); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
}

func enqueueOne(t *testing.T, s *storage.Store, id string, typ storage.TaskType) {
	t.Helper()
	if err := s.EnqueueTasks([]storage.Task{{ID: id, JobID: "job-1", Type: typ, Priority: 50}}); err != nil {
		t.Fatalf("EnqueueTasks: %v", err)
	}
}

func TestTick_Idle(t *testing.T) {
	s := openTestStore(t)
	sched := New(s, nil, time.Minute)

	done, err := sched.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick: %v", err)
	}
	if done {
		t.Error("Tick on empty queue reported work done")
	}
}

func TestTick_CompletesTask(t *testing.T) {
	s := openTestStore(t)
	createTestJob(t, s, "job-1")
	enqueueOne(t, s, "t1", storage.TaskCalculateMatch)

	var handled *storage.Task
	handlers := map[storage.TaskType]Handler{
		storage.TaskCalculateMatch: HandlerFunc(func(_ context.Context, task *storage.Task) (string, error) {
			handled = task
			return `{"match": 80}`, nil
		}),
	}
	sched := New(s, handlers, time.Minute)

	done, err := sched.Tick(context.Background())
	if err != nil || !done {
		t.Fatalf("Tick: done=%v err=%v", done, err)
	}
	if handled == nil || handled.ID != "t1" {
		t.Fatalf("handler saw %+v, want task t1", handled)
	}

	task, err := s.GetTask("t1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.Status != storage.TaskCompleted {
		t.Errorf("status = %q, want completed", task.Status)
	}
	if task.TaskResultJSON != `{"match": 80}` {
		t.Errorf("result = %q", task.TaskResultJSON)
	}
}

func TestTick_HandlerErrorRetries(t *testing.T) {
	s := openTestStore(t)
	createTestJob(t, s, "job-1")
	enqueueOne(t, s, "t1", storage.TaskCalculateMatch)

	handlers := map[storage.TaskType]Handler{
		storage.TaskCalculateMatch: HandlerFunc(func(context.Context, *storage.Task) (string, error) {
			return "", errors.New("model unavailable")
		}),
	}
	sched := New(s, handlers, time.Minute)

	done, err := sched.Tick(context.Background())
	if err != nil || !done {
		t.Fatalf("Tick: done=%v err=%v", done, err)
	}

	task, err := s.GetTask("t1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.Status != storage.TaskPending {
		t.Errorf("status = %q, want pending for retry", task.Status)
	}
	if task.RetryCount != 1 {
		t.Errorf("retry_count = %d, want 1", task.RetryCount)
	}
	if task.ErrorMessage != "model unavailable" {
		t.Errorf("error_message = %q", task.ErrorMessage)
	}
}

func TestTick_HandlerPanicDoesNotCrash(t *testing.T) {
	s := openTestStore(t)
	createTestJob(t, s, "job-1")
	enqueueOne(t, s, "t1", storage.TaskCalculateMatch)

	handlers := map[storage.TaskType]Handler{
		storage.TaskCalculateMatch: HandlerFunc(func(context.Context, *storage.Task) (string, error) {
			panic("nil dereference in handler")
		}),
	}
	sched := New(s, handlers, time.Minute)

	done, err := sched.Tick(context.Background())
	if err != nil || !done {
		t.Fatalf("Tick: done=%v err=%v", done, err)
	}

	task, err := s.GetTask("t1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.Status != storage.TaskPending {
		t.Errorf("status = %q, want pending", task.Status)
	}
}

func TestTick_UnknownTaskTypeFails(t *testing.T) {
	s := openTestStore(t)
	createTestJob(t, s, "job-1")
	enqueueOne(t, s, "t1", storage.TaskReviewCV)

	sched := New(s, map[storage.TaskType]Handler{}, time.Minute)

	done, err := sched.Tick(context.Background())
	if err != nil || !done {
		t.Fatalf("Tick: done=%v err=%v", done, err)
	}

	task, err := s.GetTask("t1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.Status == storage.TaskCompleted {
		t.Error("task with no handler must not complete")
	}
	if task.ErrorMessage == "" {
		t.Error("missing-handler failure should be recorded on the task")
	}
}

func TestTick_PromotesJobWhenPipelineDrains(t *testing.T) {
	s := openTestStore(t)
	createTestJob(t, s, "job-1")
	if err := s.EnqueueTasks(storage.StandardTaskSet("job-1")); err != nil {
		t.Fatalf("EnqueueTasks: %v", err)
	}

	ok := HandlerFunc(func(context.Context, *storage.Task) (string, error) { return "{}", nil })
	handlers := make(map[storage.TaskType]Handler)
	for _, typ := range storage.KnownTaskTypes {
		handlers[typ] = ok
	}
	sched := New(s, handlers, time.Minute)

	for i := 0; i < 6; i++ {
		job, err := s.GetJob("job-1")
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if job.Status != storage.JobProcessing {
			t.Fatalf("job promoted after %d tasks, want 6", i)
		}
		if done, err := sched.Tick(context.Background()); err != nil || !done {
			t.Fatalf("Tick %d: done=%v err=%v", i, done, err)
		}
	}

	job, err := s.GetJob("job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if job.Status != storage.JobToSubmit {
		t.Errorf("job status = %q, want to_submit", job.Status)
	}

	// Queue drained.
	if done, err := sched.Tick(context.Background()); err != nil || done {
		t.Errorf("post-drain Tick: done=%v err=%v", done, err)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := openTestStore(t)
	sched := New(s, nil, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		sched.Run(ctx)
		close(stopped)
	}()

	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}
