package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kalambet/jobtrail/internal/llm"
	"github.com/kalambet/jobtrail/internal/storage"
)

const cvPrompt = `You are a professional CV writer. Create a tailored CV for this job application.

IMPORTANT: Base all content on factual information provided. Never fabricate achievements or experience.

CANDIDATE PROFILE:
%s

Job Details:
Company: %s
Position: %s
%s

Create a CV in Markdown format that:
1. Emphasizes relevant experience for this role
2. Highlights matching skills
3. Includes quantified achievements where available
4. Maintains professional tone
5. Is ATS-optimized

Return ONLY the CV content in Markdown format.`

const coverLetterPrompt = `You are a professional cover letter writer. Create a tailored cover letter for this job application.

CRITICAL REQUIREMENTS:
1. Maximum 300-350 words (must fit on ONE page)
2. Base all content on factual information
3. Never fabricate achievements or experience
4. Professional yet personable tone
5. Highlight 2-3 most relevant experiences

CANDIDATE PROFILE:
%s

Job Details:
Company: %s
Position: %s
%s

Return ONLY the cover letter content in Markdown format.`

const regenerationFeedback = `

The previous version was rejected with this feedback, address it:
%s`

// documentResult is the task result recorded for generation and review tasks.
type documentResult struct {
	DocumentID string `json:"document_id"`
	Type       string `json:"document_type"`
	Version    string `json:"version"`
}

// GenerateCV produces a tailored CV for the job and stores it as a document
// row. Regeneration runs fold user feedback into the prompt and record a new
// regenerated version instead of an initial one.
func (h *Handlers) GenerateCV(ctx context.Context, task *storage.Task) (string, error) {
	return h.generateDocument(ctx, task, storage.DocCV, cvPrompt, 4000)
}

// GenerateCoverLetter produces a one-page cover letter for the job.
func (h *Handlers) GenerateCoverLetter(ctx context.Context, task *storage.Task) (string, error) {
	return h.generateDocument(ctx, task, storage.DocCoverLetter, coverLetterPrompt, 2000)
}

func (h *Handlers) generateDocument(ctx context.Context, task *storage.Task, typ storage.DocumentType, prompt string, maxTokens int) (string, error) {
	job, err := h.store.GetJob(task.JobID)
	if err != nil {
		return "", fmt.Errorf("loading job %s: %w", task.JobID, err)
	}
	if job.JobDescriptionText == "" {
		return "", fmt.Errorf("job %s has no extracted description yet", task.JobID)
	}

	data, err := parseGenerationData(task)
	if err != nil {
		return "", err
	}

	summary, err := h.profile.Summary()
	if err != nil {
		return "", fmt.Errorf("loading profile summary: %w", err)
	}

	userPrompt := fmt.Sprintf(prompt, summary, job.CompanyName, job.PositionTitle, job.JobDescriptionText)
	if data.Regeneration && data.Feedback != "" {
		userPrompt += fmt.Sprintf(regenerationFeedback, data.Feedback)
	}

	markdown, err := h.client.Complete(ctx, llm.Request{
		MaxTokens: maxTokens,
		Messages:  []llm.Message{{Role: "user", Content: userPrompt}},
	})
	if err != nil {
		return "", fmt.Errorf("generation completion: %w", err)
	}
	markdown = strings.TrimSpace(markdown)
	if markdown == "" {
		return "", fmt.Errorf("model returned empty %s", typ)
	}

	doc := storage.Document{
		ID:       uuid.New().String(),
		JobID:    task.JobID,
		Type:     typ,
		Version:  storage.VersionInitial,
		Markdown: markdown,
	}
	if data.Regeneration {
		doc.Version = storage.VersionRegenerated
		doc.RegenerationNumber, err = h.store.NextRegenerationNumber(task.JobID, typ)
		if err != nil {
			return "", fmt.Errorf("assigning regeneration number: %w", err)
		}
	}

	if err := h.store.SaveDocument(doc); err != nil {
		return "", fmt.Errorf("saving %s: %w", typ, err)
	}

	if data.Regeneration && data.RequestID != "" {
		if err := h.store.ResolveRegenerationRequest(data.RequestID, storage.TaskCompleted, doc.ID); err != nil {
			return "", fmt.Errorf("resolving regeneration request %s: %w", data.RequestID, err)
		}
	}

	return marshalResult(documentResult{
		DocumentID: doc.ID,
		Type:       string(doc.Type),
		Version:    string(doc.Version),
	})
}
