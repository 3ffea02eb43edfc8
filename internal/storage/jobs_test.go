package storage

import (
	"errors"
	"testing"
	"time"
)

func TestCreateAndGetJob(t *testing.T) {
	s := openTestStore(t)

	err := s.CreateJob(Job{
		ID:           "job-1",
		InputType:    InputURL,
		InputContent: "https://example.com/careers/123",
		OriginalURL:  "https://example.com/careers/123",
	})
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}

	got, err := s.GetJob("job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != JobProcessing {
		t.Errorf("status = %q, want processing", got.Status)
	}
	if got.InputType != InputURL {
		t.Errorf("input_type = %q, want url", got.InputType)
	}
	if got.CreatedAt.IsZero() {
		t.Error("created_at not set")
	}
}

func TestGetJob_NotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.GetJob("missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateJobExtraction(t *testing.T) {
	s := openTestStore(t)
	createTestJob(t, s, "job-1")

	fields := ExtractedFields{
		CompanyName:        "Acme",
		PositionTitle:      "Senior Backend Engineer",
		Location:           "Bangkok, Thailand",
		SalaryRange:        "80,000-120,000 THB",
		JobType:            "full-time",
		JobDescriptionText: "Build distributed systems in Go.",
		FolderPath:         "Acme_Senior_Backend_Engineer_2025-06-01",
		ApplicationMethod:  "online_form",
	}
	if err := s.UpdateJobExtraction("job-1", fields); err != nil {
		t.Fatalf("UpdateJobExtraction: %v", err)
	}

	got, err := s.GetJob("job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.CompanyName != "Acme" || got.PositionTitle != "Senior Backend Engineer" {
		t.Errorf("extraction fields not persisted: %+v", got)
	}
	if got.FolderPath != "Acme_Senior_Backend_Engineer_2025-06-01" {
		t.Errorf("folder_path = %q", got.FolderPath)
	}
}

func TestUpdateJobMatch(t *testing.T) {
	s := openTestStore(t)
	createTestJob(t, s, "job-1")

	if err := s.UpdateJobMatch("job-1", 85, `{"strengths":["Go"],"partial_matches":[],"gaps":["K8s"]}`); err != nil {
		t.Fatalf("UpdateJobMatch: %v", err)
	}

	got, err := s.GetJob("job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.MatchPercentage != 85 {
		t.Errorf("match_percentage = %d, want 85", got.MatchPercentage)
	}
}

// TestCompleteJobIfDone_GatesOnAllTerminal enqueues 6 tasks and verifies the
// job advances to to_submit only when the last of them reaches a terminal
// state. A mix of completed and failed still counts as terminal.
func TestCompleteJobIfDone_GatesOnAllTerminal(t *testing.T) {
	s := openTestStore(t)
	createTestJob(t, s, "job-1")

	if err := s.EnqueueTasks(StandardTaskSet("job-1")); err != nil {
		t.Fatalf("EnqueueTasks: %v", err)
	}

	for i := 0; i < 6; i++ {
		claimed, err := s.ClaimNextTask()
		if err != nil || claimed == nil {
			t.Fatalf("claim %d: task=%v err=%v", i, claimed, err)
		}

		// Fail one task terminally, complete the rest.
		if i == 2 {
			if _, err := s.FailOrRetryTask(claimed.ID, "upstream down"); err != nil {
				t.Fatalf("FailOrRetryTask: %v", err)
			}
			// Drive it to terminal failure.
			for {
				task, err := s.GetTask(claimed.ID)
				if err != nil {
					t.Fatalf("GetTask: %v", err)
				}
				if task.Status == TaskFailed {
					break
				}
				re, err := s.ClaimNextTask()
				if err != nil || re == nil {
					t.Fatalf("reclaim: task=%v err=%v", re, err)
				}
				if re.ID != claimed.ID {
					t.Fatalf("reclaimed %q, want retried task %q", re.ID, claimed.ID)
				}
				if _, err := s.FailOrRetryTask(re.ID, "upstream down"); err != nil {
					t.Fatalf("FailOrRetryTask: %v", err)
				}
			}
		} else {
			if err := s.CompleteTask(claimed.ID, "{}"); err != nil {
				t.Fatalf("CompleteTask: %v", err)
			}
		}

		moved, err := s.CompleteJobIfDone("job-1")
		if err != nil {
			t.Fatalf("CompleteJobIfDone %d: %v", i, err)
		}
		if i < 5 && moved {
			t.Errorf("job advanced after %d of 6 tasks", i+1)
		}
		if i == 5 && !moved {
			t.Error("job did not advance after all 6 tasks terminal")
		}
	}

	got, err := s.GetJob("job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.Status != JobToSubmit {
		t.Errorf("status = %q, want to_submit", got.Status)
	}
}

// TestCompleteJobIfDone_RespectsManualStatus verifies the conditional update:
// a job manually moved off processing is not dragged back to to_submit.
func TestCompleteJobIfDone_RespectsManualStatus(t *testing.T) {
	s := openTestStore(t)
	createTestJob(t, s, "job-1")

	if err := s.EnqueueTasks([]Task{{ID: "t1", JobID: "job-1", Type: TaskExtractJobInfo, Priority: 100}}); err != nil {
		t.Fatalf("EnqueueTasks: %v", err)
	}
	if _, err := s.ClaimNextTask(); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := s.CompleteTask("t1", "{}"); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	// User drags the card to not_now before the completion check runs.
	if err := s.UpdateJobStatus("job-1", JobNotNow, -1); err != nil {
		t.Fatalf("UpdateJobStatus: %v", err)
	}

	moved, err := s.CompleteJobIfDone("job-1")
	if err != nil {
		t.Fatalf("CompleteJobIfDone: %v", err)
	}
	if moved {
		t.Error("CompleteJobIfDone overrode a manual status change")
	}

	got, _ := s.GetJob("job-1")
	if got.Status != JobNotNow {
		t.Errorf("status = %q, want not_now", got.Status)
	}
}

func TestUpdateSubmission(t *testing.T) {
	s := openTestStore(t)
	createTestJob(t, s, "job-1")

	submitted := time.Date(2025, 6, 2, 9, 30, 0, 0, time.UTC)
	err := s.UpdateSubmission("job-1", SubmissionInfo{
		ApplicationURL:    "https://example.com/apply",
		ApplicationMethod: "email",
		RecruiterEmail:    "recruiter@example.com",
		SubmittedAt:       submitted,
	})
	if err != nil {
		t.Fatalf("UpdateSubmission: %v", err)
	}

	got, err := s.GetJob("job-1")
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if got.RecruiterEmail != "recruiter@example.com" {
		t.Errorf("recruiter_email = %q", got.RecruiterEmail)
	}
	if !got.SubmittedAt.Equal(submitted) {
		t.Errorf("submitted_at = %v, want %v", got.SubmittedAt, submitted)
	}
}

func TestListJobs(t *testing.T) {
	s := openTestStore(t)
	createTestJob(t, s, "job-1")
	createTestJob(t, s, "job-2")

	jobs, err := s.ListJobs()
	if err != nil {
		t.Fatalf("ListJobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Fatalf("got %d jobs, want 2", len(jobs))
	}
}
