// Package handlers implements the task pipeline: extraction, match scoring,
// document generation and review. Each handler is dispatched by the
// scheduler against one claimed task.
package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kalambet/jobtrail/internal/llm"
	"github.com/kalambet/jobtrail/internal/scheduler"
	"github.com/kalambet/jobtrail/internal/storage"
)

// Store covers the storage operations the handlers need.
// Implemented by storage.Store.
type Store interface {
	GetJob(id string) (storage.Job, error)
	UpdateJobExtraction(id string, f storage.ExtractedFields) error
	UpdateJobMatch(id string, percentage int, analysisJSON string) error
	GetDocument(jobID string, typ storage.DocumentType, version storage.DocumentVersion) (storage.Document, error)
	SaveDocument(d storage.Document) error
	NextRegenerationNumber(jobID string, typ storage.DocumentType) (int, error)
	ResolveRegenerationRequest(id string, status storage.TaskStatus, newDocumentID string) error
}

// Completer is the single LLM operation the handlers need.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// Fetcher retrieves posting content for a URL.
type Fetcher interface {
	FetchContent(ctx context.Context, target string) (string, error)
}

// ProfileSummarizer supplies the candidate summary injected into prompts.
type ProfileSummarizer interface {
	Summary() (string, error)
}

// Handlers bundles the task handlers and their shared dependencies.
type Handlers struct {
	store   Store
	client  Completer
	fetcher Fetcher
	profile ProfileSummarizer
}

// New creates the handler set.
func New(store Store, client Completer, fetcher Fetcher, profile ProfileSummarizer) *Handlers {
	return &Handlers{
		store:   store,
		client:  client,
		fetcher: fetcher,
		profile: profile,
	}
}

// Registry maps every known task type to its handler. The scheduler
// dispatches against this map; task types outside it fail at enqueue time.
func (h *Handlers) Registry() map[storage.TaskType]scheduler.Handler {
	return map[storage.TaskType]scheduler.Handler{
		storage.TaskExtractJobInfo:      scheduler.HandlerFunc(h.ExtractJobInfo),
		storage.TaskCalculateMatch:      scheduler.HandlerFunc(h.CalculateMatch),
		storage.TaskGenerateCV:          scheduler.HandlerFunc(h.GenerateCV),
		storage.TaskGenerateCoverLetter: scheduler.HandlerFunc(h.GenerateCoverLetter),
		storage.TaskReviewCV:            scheduler.HandlerFunc(h.ReviewCV),
		storage.TaskReviewCoverLetter:   scheduler.HandlerFunc(h.ReviewCoverLetter),
	}
}

// generationData is the optional task_data payload carried by generate tasks
// enqueued through the regeneration endpoint.
type generationData struct {
	Regeneration bool   `json:"regeneration"`
	Feedback     string `json:"feedback"`
	RequestID    string `json:"request_id"`
}

func parseGenerationData(task *storage.Task) (generationData, error) {
	var data generationData
	if task.TaskDataJSON == "" {
		return data, nil
	}
	if err := json.Unmarshal([]byte(task.TaskDataJSON), &data); err != nil {
		return data, fmt.Errorf("parsing task data: %w", err)
	}
	return data, nil
}

func marshalResult(v any) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshalling task result: %w", err)
	}
	return string(b), nil
}
