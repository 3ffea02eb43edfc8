package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kalambet/jobtrail/internal/storage"
)

func createJobViaAPI(t *testing.T, h http.Handler, body string) jobResponse {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/api/jobs", body, testToken))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create job: status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var job jobResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &job); err != nil {
		t.Fatalf("decoding created job: %v", err)
	}
	return job
}

func TestCreateJob_EnqueuesFullPipeline(t *testing.T) {
	h, store := setupAppHandler(t, &mockParser{})

	job := createJobViaAPI(t, h, `{"url":"https://example.com/careers/42"}`)
	if job.InputType != string(storage.InputURL) {
		t.Errorf("input_type = %q", job.InputType)
	}
	if job.OriginalURL != "https://example.com/careers/42" {
		t.Errorf("original_url = %q", job.OriginalURL)
	}
	if job.Status != string(storage.JobProcessing) {
		t.Errorf("status = %q", job.Status)
	}

	tasks, err := store.ListTasksForJob(job.ID)
	if err != nil {
		t.Fatalf("ListTasksForJob: %v", err)
	}
	if len(tasks) != 6 {
		t.Fatalf("enqueued %d tasks, want 6", len(tasks))
	}
	for _, task := range tasks {
		if task.Status != storage.TaskPending {
			t.Errorf("task %s status = %q, want pending", task.Type, task.Status)
		}
	}
}

func TestCreateJob_RejectsAmbiguousInput(t *testing.T) {
	h, _ := setupAppHandler(t, &mockParser{})

	for _, body := range []string{`{}`, `{"url":"https://a.example","text":"pasted"}`} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, authReq(http.MethodPost, "/api/jobs", body, testToken))
		if rr.Code != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, rr.Code)
		}
	}
}

func TestGetJob_NotFound(t *testing.T) {
	h, _ := setupAppHandler(t, &mockParser{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/api/jobs/no-such-job", "", testToken))

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestListJobs(t *testing.T) {
	h, _ := setupAppHandler(t, &mockParser{})

	createJobViaAPI(t, h, `{"text":"pasted job posting"}`)
	createJobViaAPI(t, h, `{"text":"another posting"}`)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/api/jobs", "", testToken))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var jobs []jobResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &jobs); err != nil {
		t.Fatalf("decoding jobs: %v", err)
	}
	if len(jobs) != 2 {
		t.Errorf("got %d jobs, want 2", len(jobs))
	}
}

func TestUpdateStatus(t *testing.T) {
	h, store := setupAppHandler(t, &mockParser{})
	job := createJobViaAPI(t, h, `{"text":"pasted job posting"}`)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPatch, "/api/jobs/"+job.ID+"/status", `{"status":"ongoing","kanban_order":3}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	updated, err := store.GetJob(job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if updated.Status != storage.JobOngoing {
		t.Errorf("job status = %q, want ongoing", updated.Status)
	}
	if updated.KanbanOrder != 3 {
		t.Errorf("kanban_order = %d, want 3", updated.KanbanOrder)
	}
}

func TestUpdateStatus_RejectsUnknown(t *testing.T) {
	h, _ := setupAppHandler(t, &mockParser{})
	job := createJobViaAPI(t, h, `{"text":"pasted job posting"}`)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPatch, "/api/jobs/"+job.ID+"/status", `{"status":"archived"}`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestUpdateSubmission(t *testing.T) {
	h, store := setupAppHandler(t, &mockParser{})
	job := createJobViaAPI(t, h, `{"text":"pasted job posting"}`)

	body := `{"application_url":"https://example.com/apply","application_method":"website","recruiter_email":"jane@example.com","submitted_at":"2026-08-15T10:00:00Z"}`
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPatch, "/api/jobs/"+job.ID+"/submission", body, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}

	updated, err := store.GetJob(job.ID)
	if err != nil {
		t.Fatalf("GetJob: %v", err)
	}
	if updated.ApplicationURL != "https://example.com/apply" {
		t.Errorf("application_url = %q", updated.ApplicationURL)
	}
	if updated.RecruiterEmail != "jane@example.com" {
		t.Errorf("recruiter_email = %q", updated.RecruiterEmail)
	}
	if updated.SubmittedAt.IsZero() {
		t.Error("submitted_at not recorded")
	}
}

func TestRegenerate_QueuesPriorityTask(t *testing.T) {
	h, store := setupAppHandler(t, &mockParser{})
	job := createJobViaAPI(t, h, `{"text":"pasted job posting"}`)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/api/jobs/"+job.ID+"/regenerate", `{"document_type":"cv","feedback":"emphasize Go experience"}`, testToken))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body = %s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp["status"] != "queued" || resp["request_id"] == "" || resp["task_id"] == "" {
		t.Errorf("response = %v", resp)
	}

	task, err := store.GetTask(resp["task_id"])
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if task.Type != storage.TaskGenerateCV {
		t.Errorf("task type = %q", task.Type)
	}
	if task.Priority != 100 {
		t.Errorf("priority = %d, want 100", task.Priority)
	}
	if !strings.Contains(task.TaskDataJSON, `"regeneration":true`) ||
		!strings.Contains(task.TaskDataJSON, "emphasize Go experience") {
		t.Errorf("task_data = %s", task.TaskDataJSON)
	}
}

func TestRegenerate_UnknownDocumentType(t *testing.T) {
	h, _ := setupAppHandler(t, &mockParser{})
	job := createJobViaAPI(t, h, `{"text":"pasted job posting"}`)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/api/jobs/"+job.ID+"/regenerate", `{"document_type":"resume"}`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestListDocuments(t *testing.T) {
	h, store := setupAppHandler(t, &mockParser{})
	job := createJobViaAPI(t, h, `{"text":"pasted job posting"}`)

	doc := storage.Document{
		ID:       "doc-1",
		JobID:    job.ID,
		Type:     storage.DocCV,
		Version:  storage.VersionInitial,
		Markdown: "# CV",
	}
	if err := store.SaveDocument(doc); err != nil {
		t.Fatalf("SaveDocument: %v", err)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/api/jobs/"+job.ID+"/documents", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	var docs []documentResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &docs); err != nil {
		t.Fatalf("decoding documents: %v", err)
	}
	if len(docs) != 1 || docs[0].Type != "cv" || docs[0].Markdown != "# CV" {
		t.Errorf("documents = %+v", docs)
	}
}

func TestProfile_GetAndPatch(t *testing.T) {
	h, _ := setupAppHandler(t, &mockParser{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPatch, "/api/profile", `{"expected_version":0,"updates":{"identity.name":"Jane Doe"}}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("patch status = %d, body = %s", rr.Code, rr.Body.String())
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodGet, "/api/profile", "", testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d", rr.Code)
	}
	var resp profileResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding profile: %v", err)
	}
	if resp.Version != 1 {
		t.Errorf("version = %d, want 1", resp.Version)
	}
	if resp.Profile["identity.name"] != "Jane Doe" {
		t.Errorf("profile = %v", resp.Profile)
	}
}

func TestProfile_PatchVersionConflict(t *testing.T) {
	h, _ := setupAppHandler(t, &mockParser{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPatch, "/api/profile", `{"expected_version":0,"updates":{"summary":"first"}}`, testToken))
	if rr.Code != http.StatusOK {
		t.Fatalf("first patch status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPatch, "/api/profile", `{"expected_version":0,"updates":{"summary":"stale"}}`, testToken))
	if rr.Code != http.StatusConflict {
		t.Fatalf("stale patch status = %d, want 409; body = %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "VERSION_CONFLICT") {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestProfile_PatchEmptyUpdates(t *testing.T) {
	h, _ := setupAppHandler(t, &mockParser{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPatch, "/api/profile", `{"expected_version":0,"updates":{}}`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}
