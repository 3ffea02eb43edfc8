package storage

import (
	"errors"
	"testing"
	"time"
)

func TestSaveAndGetDocument(t *testing.T) {
	s := openTestStore(t)
	createTestJob(t, s, "job-1")

	doc := Document{
		ID:       "doc-1",
		JobID:    "job-1",
		Type:     DocCV,
		Version:  VersionInitial,
		Markdown: "# CV\n\nExperience…",
	}
	if err := s.SaveDocument(doc); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	got, err := s.GetDocument("job-1", DocCV, VersionInitial)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.ID != "doc-1" {
		t.Errorf("ID = %q, want doc-1", got.ID)
	}
	if got.Markdown != "# CV\n\nExperience…" {
		t.Errorf("markdown mismatch: %q", got.Markdown)
	}
	if got.ProcessingStatus != TaskCompleted {
		t.Errorf("processing_status = %q, want completed", got.ProcessingStatus)
	}
}

func TestGetDocument_NotFound(t *testing.T) {
	s := openTestStore(t)
	createTestJob(t, s, "job-1")

	_, err := s.GetDocument("job-1", DocCoverLetter, VersionInitial)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// TestGetDocument_LatestWins verifies that a re-run handler's fresh row
// shadows an older row of the same job+type+version.
func TestGetDocument_LatestWins(t *testing.T) {
	s := openTestStore(t)
	createTestJob(t, s, "job-1")

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	old := Document{ID: "doc-old", JobID: "job-1", Type: DocCV, Version: VersionInitial, Markdown: "old", CreatedAt: base}
	fresh := Document{ID: "doc-new", JobID: "job-1", Type: DocCV, Version: VersionInitial, Markdown: "new", CreatedAt: base.Add(time.Minute)}
	if err := s.SaveDocument(old); err != nil {
		t.Fatalf("SaveDocument old: %v", err)
	}
	if err := s.SaveDocument(fresh); err != nil {
		t.Fatalf("SaveDocument fresh: %v", err)
	}

	got, err := s.GetDocument("job-1", DocCV, VersionInitial)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.ID != "doc-new" {
		t.Errorf("got %q, want doc-new", got.ID)
	}
}

func TestNextRegenerationNumber(t *testing.T) {
	s := openTestStore(t)
	createTestJob(t, s, "job-1")

	n, err := s.NextRegenerationNumber("job-1", DocCV)
	if err != nil {
		t.Fatalf("NextRegenerationNumber: %v", err)
	}
	if n != 1 {
		t.Errorf("first regeneration number = %d, want 1", n)
	}

	doc := Document{ID: "doc-1", JobID: "job-1", Type: DocCV, Version: VersionRegenerated, RegenerationNumber: 1, Markdown: "v1"}
	if err := s.SaveDocument(doc); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	n, err = s.NextRegenerationNumber("job-1", DocCV)
	if err != nil {
		t.Fatalf("NextRegenerationNumber: %v", err)
	}
	if n != 2 {
		t.Errorf("second regeneration number = %d, want 2", n)
	}
}

func TestRegenerationRequestLifecycle(t *testing.T) {
	s := openTestStore(t)
	createTestJob(t, s, "job-1")

	doc := Document{ID: "doc-1", JobID: "job-1", Type: DocCV, Version: VersionInitial, Markdown: "v1"}
	if err := s.SaveDocument(doc); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	req := RegenerationRequest{
		ID:           "regen-1",
		JobID:        "job-1",
		DocumentID:   "doc-1",
		UserFeedback: "Tone down the achievements section.",
	}
	if err := s.CreateRegenerationRequest(req); err != nil {
		t.Fatalf("CreateRegenerationRequest: %v", err)
	}

	if err := s.ResolveRegenerationRequest("regen-1", TaskCompleted, "doc-2"); err != nil {
		t.Fatalf("ResolveRegenerationRequest: %v", err)
	}

	var status, newDocID string
	err := s.db.QueryRow(`SELECT status, new_document_id FROM regeneration_requests WHERE id = 'regen-1'`).Scan(&status, &newDocID)
	if err != nil {
		t.Fatalf("reading regeneration request: %v", err)
	}
	if status != string(TaskCompleted) || newDocID != "doc-2" {
		t.Errorf("status=%q new_document_id=%q", status, newDocID)
	}
}
