package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/jobtrail/internal/storage"
)

type createJobRequest struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

type jobResponse struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`

	InputType   string `json:"input_type"`
	OriginalURL string `json:"original_url,omitempty"`

	CompanyName        string `json:"company_name,omitempty"`
	PositionTitle      string `json:"position_title,omitempty"`
	Location           string `json:"location,omitempty"`
	PostedDate         string `json:"posted_date,omitempty"`
	SalaryRange        string `json:"salary_range,omitempty"`
	JobType            string `json:"job_type,omitempty"`
	JobDescriptionText string `json:"job_description_text,omitempty"`
	FolderPath         string `json:"folder_path,omitempty"`

	MatchPercentage int              `json:"match_percentage"`
	MatchAnalysis   *json.RawMessage `json:"match_analysis,omitempty"`

	Status      string `json:"status"`
	KanbanOrder int    `json:"kanban_order"`

	ApplicationURL      string `json:"application_url,omitempty"`
	ApplicationMethod   string `json:"application_method,omitempty"`
	RecruiterEmail      string `json:"recruiter_email,omitempty"`
	RecruiterName       string `json:"recruiter_name,omitempty"`
	ApplicationNotes    string `json:"application_notes,omitempty"`
	ApplicationDeadline string `json:"application_deadline,omitempty"`
	SubmittedAt         string `json:"submitted_at,omitempty"`
}

func toJobResponse(j storage.Job) jobResponse {
	resp := jobResponse{
		ID:                  j.ID,
		CreatedAt:           j.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:           j.UpdatedAt.UTC().Format(time.RFC3339),
		InputType:           string(j.InputType),
		OriginalURL:         j.OriginalURL,
		CompanyName:         j.CompanyName,
		PositionTitle:       j.PositionTitle,
		Location:            j.Location,
		PostedDate:          j.PostedDate,
		SalaryRange:         j.SalaryRange,
		JobType:             j.JobType,
		JobDescriptionText:  j.JobDescriptionText,
		FolderPath:          j.FolderPath,
		MatchPercentage:     j.MatchPercentage,
		Status:              string(j.Status),
		KanbanOrder:         j.KanbanOrder,
		ApplicationURL:      j.ApplicationURL,
		ApplicationMethod:   j.ApplicationMethod,
		RecruiterEmail:      j.RecruiterEmail,
		RecruiterName:       j.RecruiterName,
		ApplicationNotes:    j.ApplicationNotes,
		ApplicationDeadline: j.ApplicationDeadline,
	}
	if j.MatchAnalysisJSON != "" {
		raw := json.RawMessage(j.MatchAnalysisJSON)
		resp.MatchAnalysis = &raw
	}
	if !j.SubmittedAt.IsZero() {
		resp.SubmittedAt = j.SubmittedAt.UTC().Format(time.RFC3339)
	}
	return resp
}

func handleCreateJob(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req createJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: %v", err)
			return
		}
		if (req.URL == "") == (req.Text == "") {
			httpError(w, http.StatusBadRequest, "INVALID_INPUT", "provide exactly one of url or text")
			return
		}

		job := storage.Job{
			ID:        uuid.New().String(),
			InputType: storage.InputText,
		}
		if req.URL != "" {
			job.InputType = storage.InputURL
			job.OriginalURL = req.URL
			job.InputContent = req.URL
		} else {
			job.InputContent = req.Text
		}

		if err := deps.Store.CreateJob(job); err != nil {
			httpError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to create job: %v", err)
			return
		}
		if err := deps.Store.EnqueueTasks(storage.StandardTaskSet(job.ID)); err != nil {
			httpError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to enqueue tasks: %v", err)
			return
		}

		created, err := deps.Store.GetJob(job.ID)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to load created job: %v", err)
			return
		}
		writeJSON(w, http.StatusCreated, toJobResponse(created))
	}
}

func handleListJobs(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := deps.Store.ListJobs()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list jobs: %v", err)
			return
		}

		resp := make([]jobResponse, 0, len(jobs))
		for _, j := range jobs {
			resp = append(resp, toJobResponse(j))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func handleGetJob(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		job, err := deps.Store.GetJob(id)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "NOT_FOUND", "job not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to get job: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, toJobResponse(job))
	}
}

type updateStatusRequest struct {
	Status      string `json:"status"`
	KanbanOrder *int   `json:"kanban_order"`
}

var validStatuses = map[storage.JobStatus]bool{
	storage.JobProcessing:     true,
	storage.JobToSubmit:       true,
	storage.JobWaitingForCall: true,
	storage.JobOngoing:        true,
	storage.JobSuccess:        true,
	storage.JobNotNow:         true,
}

func handleUpdateStatus(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req updateStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: %v", err)
			return
		}
		status := storage.JobStatus(req.Status)
		if !validStatuses[status] {
			httpError(w, http.StatusBadRequest, "INVALID_INPUT", "unknown status %q", req.Status)
			return
		}

		order := -1
		if req.KanbanOrder != nil && *req.KanbanOrder >= 0 {
			order = *req.KanbanOrder
		}

		err := deps.Store.UpdateJobStatus(id, status, order)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "NOT_FOUND", "job not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to update status: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

type updateSubmissionRequest struct {
	ApplicationURL      string `json:"application_url"`
	ApplicationMethod   string `json:"application_method"`
	RecruiterEmail      string `json:"recruiter_email"`
	RecruiterName       string `json:"recruiter_name"`
	ApplicationNotes    string `json:"application_notes"`
	ApplicationDeadline string `json:"application_deadline"`
	SubmittedAt         string `json:"submitted_at"`
}

func handleUpdateSubmission(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req updateSubmissionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: %v", err)
			return
		}

		info := storage.SubmissionInfo{
			ApplicationURL:      req.ApplicationURL,
			ApplicationMethod:   req.ApplicationMethod,
			RecruiterEmail:      req.RecruiterEmail,
			RecruiterName:       req.RecruiterName,
			ApplicationNotes:    req.ApplicationNotes,
			ApplicationDeadline: req.ApplicationDeadline,
		}
		if req.SubmittedAt != "" {
			t, err := time.Parse(time.RFC3339, req.SubmittedAt)
			if err != nil {
				httpError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid submitted_at: %v", err)
				return
			}
			info.SubmittedAt = t
		} else {
			info.SubmittedAt = time.Now()
		}

		err := deps.Store.UpdateSubmission(id, info)
		if errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "NOT_FOUND", "job not found")
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to update submission: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

type regenerateRequest struct {
	DocumentType string `json:"document_type"`
	Feedback     string `json:"feedback"`
}

// handleRegenerate records the user's feedback and enqueues a fresh
// generation task at top priority so the rewrite happens before any other
// queued work.
func handleRegenerate(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req regenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: %v", err)
			return
		}

		var docType storage.DocumentType
		var taskType storage.TaskType
		switch req.DocumentType {
		case string(storage.DocCV):
			docType, taskType = storage.DocCV, storage.TaskGenerateCV
		case string(storage.DocCoverLetter):
			docType, taskType = storage.DocCoverLetter, storage.TaskGenerateCoverLetter
		default:
			httpError(w, http.StatusBadRequest, "INVALID_INPUT", "unknown document_type %q", req.DocumentType)
			return
		}

		if _, err := deps.Store.GetJob(id); errors.Is(err, storage.ErrNotFound) {
			httpError(w, http.StatusNotFound, "NOT_FOUND", "job not found")
			return
		} else if err != nil {
			httpError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to get job: %v", err)
			return
		}

		// The feedback targets the newest artifact of the requested type.
		var documentID string
		docs, err := deps.Store.ListDocumentsForJob(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list documents: %v", err)
			return
		}
		for _, d := range docs {
			if d.Type == docType {
				documentID = d.ID
				break
			}
		}

		request := storage.RegenerationRequest{
			ID:           uuid.New().String(),
			JobID:        id,
			DocumentID:   documentID,
			UserFeedback: req.Feedback,
		}
		if err := deps.Store.CreateRegenerationRequest(request); err != nil {
			httpError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to record regeneration request: %v", err)
			return
		}

		taskData, err := json.Marshal(map[string]any{
			"regeneration": true,
			"feedback":     req.Feedback,
			"request_id":   request.ID,
		})
		if err != nil {
			httpError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to build task data: %v", err)
			return
		}

		task := storage.Task{
			ID:           uuid.New().String(),
			JobID:        id,
			Type:         taskType,
			Priority:     100,
			TaskDataJSON: string(taskData),
		}
		if err := deps.Store.EnqueueTasks([]storage.Task{task}); err != nil {
			httpError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to enqueue task: %v", err)
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{
			"request_id": request.ID,
			"task_id":    task.ID,
			"status":     "queued",
		})
	}
}

type documentResponse struct {
	ID                 string `json:"id"`
	JobID              string `json:"job_id"`
	Type               string `json:"document_type"`
	Version            string `json:"version"`
	RegenerationNumber int    `json:"regeneration_number"`
	Markdown           string `json:"markdown"`
	ProcessingStatus   string `json:"processing_status"`
	CreatedAt          string `json:"created_at"`
}

func handleListDocuments(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		docs, err := deps.Store.ListDocumentsForJob(id)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "failed to list documents: %v", err)
			return
		}

		resp := make([]documentResponse, 0, len(docs))
		for _, d := range docs {
			resp = append(resp, documentResponse{
				ID:                 d.ID,
				JobID:              d.JobID,
				Type:               string(d.Type),
				Version:            string(d.Version),
				RegenerationNumber: d.RegenerationNumber,
				Markdown:           d.Markdown,
				ProcessingStatus:   string(d.ProcessingStatus),
				CreatedAt:          d.CreatedAt.UTC().Format(time.RFC3339),
			})
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
