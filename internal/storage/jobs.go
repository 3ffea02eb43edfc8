package storage

import (
	"database/sql"
	"fmt"
	"time"
)

const jobColumns = `id, created_at, updated_at, input_type, input_content, original_url,
	company_name, position_title, location, posted_date, salary_range, job_type,
	job_description_text, folder_path, match_percentage, match_analysis_json,
	status, kanban_order, application_url, application_method, recruiter_email,
	recruiter_name, application_notes, application_deadline, submitted_at`

func scanJob(row interface{ Scan(...any) error }) (Job, error) {
	var j Job
	var inputType, status, createdAt, updatedAt, submittedAt string
	err := row.Scan(
		&j.ID, &createdAt, &updatedAt, &inputType, &j.InputContent, &j.OriginalURL,
		&j.CompanyName, &j.PositionTitle, &j.Location, &j.PostedDate, &j.SalaryRange, &j.JobType,
		&j.JobDescriptionText, &j.FolderPath, &j.MatchPercentage, &j.MatchAnalysisJSON,
		&status, &j.KanbanOrder, &j.ApplicationURL, &j.ApplicationMethod, &j.RecruiterEmail,
		&j.RecruiterName, &j.ApplicationNotes, &j.ApplicationDeadline, &submittedAt,
	)
	if err != nil {
		return Job{}, err
	}
	j.InputType = InputType(inputType)
	j.Status = JobStatus(status)
	if j.CreatedAt, err = parseTime(createdAt); err != nil {
		return Job{}, fmt.Errorf("parsing created_at for job %s: %w", j.ID, err)
	}
	if j.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Job{}, fmt.Errorf("parsing updated_at for job %s: %w", j.ID, err)
	}
	if j.SubmittedAt, err = parseTime(submittedAt); err != nil {
		return Job{}, fmt.Errorf("parsing submitted_at for job %s: %w", j.ID, err)
	}
	return j, nil
}

// CreateJob inserts a new job row. Status defaults to processing when unset.
func (s *Store) CreateJob(j Job) error {
	if j.Status == "" {
		j.Status = JobProcessing
	}
	now := time.Now()
	createdAt := j.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	_, err := s.db.Exec(`
		INSERT INTO jobs (id, created_at, updated_at, input_type, input_content, original_url, status, kanban_order)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, formatTime(createdAt), formatTime(now), string(j.InputType), j.InputContent, j.OriginalURL,
		string(j.Status), j.KanbanOrder,
	)
	return err
}

// GetJob returns a single job by ID.
func (s *Store) GetJob(id string) (Job, error) {
	row := s.db.QueryRow(`SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if err == sql.ErrNoRows {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, err
	}
	return j, nil
}

// ListJobs returns jobs ordered for the kanban board: status, then board
// position, then recency.
func (s *Store) ListJobs() ([]Job, error) {
	rows, err := s.db.Query(`SELECT ` + jobColumns + ` FROM jobs ORDER BY status, kanban_order ASC, created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ExtractedFields is the set of job columns the extract_job_info handler owns.
type ExtractedFields struct {
	CompanyName         string
	PositionTitle       string
	Location            string
	PostedDate          string
	SalaryRange         string
	JobType             string
	JobDescriptionText  string
	FolderPath          string
	ApplicationURL      string
	ApplicationMethod   string
	RecruiterEmail      string
	RecruiterName       string
	ApplicationDeadline string
}

// UpdateJobExtraction persists extracted posting fields onto the job row.
func (s *Store) UpdateJobExtraction(id string, f ExtractedFields) error {
	res, err := s.db.Exec(`UPDATE jobs SET
		company_name = ?, position_title = ?, location = ?, posted_date = ?,
		salary_range = ?, job_type = ?, job_description_text = ?, folder_path = ?,
		application_url = ?, application_method = ?, recruiter_email = ?,
		recruiter_name = ?, application_deadline = ?, updated_at = ?
		WHERE id = ?`,
		f.CompanyName, f.PositionTitle, f.Location, f.PostedDate,
		f.SalaryRange, f.JobType, f.JobDescriptionText, f.FolderPath,
		f.ApplicationURL, f.ApplicationMethod, f.RecruiterEmail,
		f.RecruiterName, f.ApplicationDeadline, formatTime(time.Now()), id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateJobMatch persists the match score and analysis onto the job row.
func (s *Store) UpdateJobMatch(id string, percentage int, analysisJSON string) error {
	res, err := s.db.Exec(`UPDATE jobs SET match_percentage = ?, match_analysis_json = ?, updated_at = ? WHERE id = ?`,
		percentage, analysisJSON, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateJobStatus moves a job on the board, optionally setting its position.
// newOrder < 0 leaves kanban_order untouched.
func (s *Store) UpdateJobStatus(id string, status JobStatus, newOrder int) error {
	var res sql.Result
	var err error
	if newOrder >= 0 {
		res, err = s.db.Exec(`UPDATE jobs SET status = ?, kanban_order = ?, updated_at = ? WHERE id = ?`,
			string(status), newOrder, formatTime(time.Now()), id)
	} else {
		res, err = s.db.Exec(`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`,
			string(status), formatTime(time.Now()), id)
	}
	if err != nil {
		return err
	}
	return requireRow(res)
}

// SubmissionInfo holds the user-entered application submission metadata.
type SubmissionInfo struct {
	ApplicationURL      string
	ApplicationMethod   string
	RecruiterEmail      string
	RecruiterName       string
	ApplicationNotes    string
	ApplicationDeadline string
	SubmittedAt         time.Time
}

// UpdateSubmission records how and when an application was submitted.
func (s *Store) UpdateSubmission(id string, info SubmissionInfo) error {
	res, err := s.db.Exec(`UPDATE jobs SET
		application_url = ?, application_method = ?, recruiter_email = ?,
		recruiter_name = ?, application_notes = ?, application_deadline = ?,
		submitted_at = ?, updated_at = ?
		WHERE id = ?`,
		info.ApplicationURL, info.ApplicationMethod, info.RecruiterEmail,
		info.RecruiterName, info.ApplicationNotes, info.ApplicationDeadline,
		formatSubmittedAt(info.SubmittedAt), formatTime(time.Now()), id,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func formatSubmittedAt(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return formatTime(t)
}

// CompleteJobIfDone advances a job from processing to to_submit, but only if
// every task for the job is terminal and the job is still in processing. The
// status condition guards against racing a concurrent manual board move.
// Returns true if the transition happened.
func (s *Store) CompleteJobIfDone(jobID string) (bool, error) {
	open, err := s.CountOpenTasks(jobID)
	if err != nil {
		return false, fmt.Errorf("counting open tasks: %w", err)
	}
	if open > 0 {
		return false, nil
	}

	res, err := s.db.Exec(`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(JobToSubmit), formatTime(time.Now()), jobID, string(JobProcessing))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
