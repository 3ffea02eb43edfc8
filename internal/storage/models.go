package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned by compare-and-swap updates when the stored
// version does not match the caller's expected version. Distinct from
// ErrNotFound so callers can tell "re-fetch and retry" from "gone".
var ErrVersionConflict = errors.New("version conflict")

// JobStatus is the kanban lifecycle status of a tracked application.
type JobStatus string

const (
	JobProcessing     JobStatus = "processing"
	JobToSubmit       JobStatus = "to_submit"
	JobWaitingForCall JobStatus = "waiting_for_call"
	JobOngoing        JobStatus = "ongoing"
	JobSuccess        JobStatus = "success"
	JobNotNow         JobStatus = "not_now"
)

// InputType says whether a job was submitted as a URL or pasted text.
type InputType string

const (
	InputURL  InputType = "url"
	InputText InputType = "text"
)

// TaskType enumerates the closed set of queue task kinds. Unknown types are
// rejected at enqueue time.
type TaskType string

const (
	TaskExtractJobInfo      TaskType = "extract_job_info"
	TaskCalculateMatch      TaskType = "calculate_match"
	TaskGenerateCV          TaskType = "generate_cv"
	TaskGenerateCoverLetter TaskType = "generate_cover_letter"
	TaskReviewCV            TaskType = "review_cv"
	TaskReviewCoverLetter   TaskType = "review_cover_letter"
)

// KnownTaskTypes lists every valid task type.
var KnownTaskTypes = []TaskType{
	TaskExtractJobInfo,
	TaskCalculateMatch,
	TaskGenerateCV,
	TaskGenerateCoverLetter,
	TaskReviewCV,
	TaskReviewCoverLetter,
}

// TaskStatus is the queue state of a single task row.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// DocumentType distinguishes generated artifact kinds.
type DocumentType string

const (
	DocCV          DocumentType = "cv"
	DocCoverLetter DocumentType = "cover_letter"
)

// DocumentVersion tracks the revision stage of a generated document.
type DocumentVersion string

const (
	VersionInitial     DocumentVersion = "initial"
	VersionReviewed    DocumentVersion = "reviewed"
	VersionRegenerated DocumentVersion = "regenerated"
)

// Job is one user-submitted application target.
type Job struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	InputType    InputType
	InputContent string
	OriginalURL  string

	CompanyName        string
	PositionTitle      string
	Location           string
	PostedDate         string
	SalaryRange        string
	JobType            string
	JobDescriptionText string
	FolderPath         string

	MatchPercentage   int
	MatchAnalysisJSON string // {strengths, partial_matches, gaps} stored as text

	Status      JobStatus
	KanbanOrder int

	ApplicationURL      string
	ApplicationMethod   string
	RecruiterEmail      string
	RecruiterName       string
	ApplicationNotes    string
	ApplicationDeadline string
	SubmittedAt         time.Time
}

// Task is one queued unit of asynchronous work bound to a Job.
type Task struct {
	ID    string
	JobID string
	Type  TaskType

	Status     TaskStatus
	Priority   int
	RetryCount int
	MaxRetries int

	CreatedAt   time.Time
	StartedAt   time.Time
	CompletedAt time.Time

	TaskDataJSON   string
	TaskResultJSON string
	ErrorMessage   string
}

// Document is a generated CV or cover-letter artifact. Rows are immutable
// once written; regenerations create new rows.
type Document struct {
	ID    string
	JobID string

	Type               DocumentType
	Version            DocumentVersion
	RegenerationNumber int

	Markdown         string
	ProcessingStatus TaskStatus
	ErrorMessage     string

	CreatedAt time.Time
}

// RegenerationRequest records user feedback asking for a new document version.
type RegenerationRequest struct {
	ID            string
	JobID         string
	DocumentID    string
	UserFeedback  string
	Status        TaskStatus
	NewDocumentID string
	CreatedAt     time.Time
}

// MatchAnalysis is the structured fit breakdown stored on a Job.
type MatchAnalysis struct {
	Strengths      []string `json:"strengths"`
	PartialMatches []string `json:"partial_matches"`
	Gaps           []string `json:"gaps"`
}
