package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kalambet/jobtrail/internal/llm"
	"github.com/kalambet/jobtrail/internal/parser"
	"github.com/kalambet/jobtrail/internal/safeurl"
	"github.com/kalambet/jobtrail/internal/storage"
)

const extractPrompt = `You are a job description analyzer. Extract the following information from this job posting:

1. Company name
2. Position title
3. Location (city, country, or "Remote")
4. Posted date (if available, format: YYYY-MM-DD)
5. Salary range (if mentioned)
6. Job type (full-time, contract, remote, hybrid, etc.)
7. Clean job description text (remove HTML, keep structure)
8. Application method (how to apply):
   - Look for phrases like "Apply at", "Send CV to", "Apply through LinkedIn", etc.
   - Determine the method: online_form, email, linkedin, recruiter, referral, or other
9. Application URL (where to submit the application, if different from job posting URL)
10. Recruiter contact (email or name, if mentioned)
11. Application deadline (if mentioned, format: YYYY-MM-DD)

Job posting:
%s

Return the information in JSON format:
{
  "company_name": "...",
  "position_title": "...",
  "location": "...",
  "posted_date": "...",
  "salary_range": "...",
  "job_type": "...",
  "job_description_text": "...",
  "application_method": "online_form|email|linkedin|recruiter|referral|other",
  "application_url": "...",
  "recruiter_email": "...",
  "recruiter_name": "...",
  "application_deadline": "..."
}`

type extractResult struct {
	CompanyName         string `json:"company_name"`
	PositionTitle       string `json:"position_title"`
	Location            string `json:"location"`
	PostedDate          string `json:"posted_date"`
	SalaryRange         string `json:"salary_range"`
	JobType             string `json:"job_type"`
	JobDescriptionText  string `json:"job_description_text"`
	ApplicationMethod   string `json:"application_method"`
	ApplicationURL      string `json:"application_url"`
	RecruiterEmail      string `json:"recruiter_email"`
	RecruiterName       string `json:"recruiter_name"`
	ApplicationDeadline string `json:"application_deadline"`
}

// ExtractJobInfo resolves the posting content for a job, extracts structured
// fields via the model and persists them onto the job row.
func (h *Handlers) ExtractJobInfo(ctx context.Context, task *storage.Task) (string, error) {
	job, err := h.store.GetJob(task.JobID)
	if err != nil {
		return "", fmt.Errorf("loading job %s: %w", task.JobID, err)
	}

	content := h.resolveContent(ctx, job)

	raw, err := h.client.Complete(ctx, llm.Request{
		MaxTokens: 2000,
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf(extractPrompt, content)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("extraction completion: %w", err)
	}

	var extracted extractResult
	if err := parser.DecodeModelJSON(raw, &extracted); err != nil {
		return "", err
	}

	applicationURL := extracted.ApplicationURL
	if applicationURL == "" {
		applicationURL = job.OriginalURL
	}

	fields := storage.ExtractedFields{
		CompanyName:         extracted.CompanyName,
		PositionTitle:       extracted.PositionTitle,
		Location:            extracted.Location,
		PostedDate:          extracted.PostedDate,
		SalaryRange:         extracted.SalaryRange,
		JobType:             extracted.JobType,
		JobDescriptionText:  extracted.JobDescriptionText,
		FolderPath:          applicationFolder(extracted.CompanyName, extracted.PositionTitle, time.Now()),
		ApplicationURL:      applicationURL,
		ApplicationMethod:   extracted.ApplicationMethod,
		RecruiterEmail:      extracted.RecruiterEmail,
		RecruiterName:       extracted.RecruiterName,
		ApplicationDeadline: extracted.ApplicationDeadline,
	}
	if err := h.store.UpdateJobExtraction(task.JobID, fields); err != nil {
		return "", fmt.Errorf("persisting extraction: %w", err)
	}

	return marshalResult(extracted)
}

// resolveContent prefers a fresh fetch for URL-submitted jobs but only for
// trusted job boards; anything else, and any fetch failure, falls back to
// the content captured when the job was created.
func (h *Handlers) resolveContent(ctx context.Context, job storage.Job) string {
	if job.InputType != storage.InputURL || job.OriginalURL == "" {
		return job.InputContent
	}

	if check := safeurl.CheckTrusted(job.OriginalURL); !check.OK {
		slog.Warn("skipping refetch of untrusted URL", "job_id", job.ID, "reason", check.Reason)
		return job.InputContent
	}

	fetched, err := h.fetcher.FetchContent(ctx, job.OriginalURL)
	if err != nil {
		slog.Warn("refetch failed, using stored content", "job_id", job.ID, "error", err)
		return job.InputContent
	}
	return fetched
}

// applicationFolder builds the per-application folder name used to organize
// generated documents on disk.
func applicationFolder(company, position string, now time.Time) string {
	clean := func(s string) string {
		s = strings.ReplaceAll(s, "/", "-")
		s = strings.ReplaceAll(s, "\\", "-")
		return strings.TrimSpace(s)
	}
	return fmt.Sprintf("applications/%s_%s_%s", clean(company), clean(position), now.Format("2006-01-02"))
}
