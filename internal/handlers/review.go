package handlers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/kalambet/jobtrail/internal/llm"
	"github.com/kalambet/jobtrail/internal/storage"
)

const reviewPrompt = `You are a skeptical CV/cover letter reviewer. Review this %[1]s for accuracy and believability.

CRITICAL REVIEW POINTS:
1. Flag any exaggerated claims or inflated numbers
2. Check for unrealistic achievements
3. Ensure collaborative language (avoid "I led", prefer "contributed to", "participated in")
4. Verify claims sound factual and modest
5. Remove any hype or marketing language

Original %[1]s:
%[2]s

Provide a reviewed version that is:
- More conservative and believable
- Uses collaborative language
- Maintains factual accuracy
- Still compelling but realistic

Return ONLY the reviewed %[1]s content in Markdown format.`

// ReviewCV rewrites the initial CV into a more conservative reviewed version.
// It fails when no initial CV exists yet; the retry cycle picks it up again
// after the generation task lands.
func (h *Handlers) ReviewCV(ctx context.Context, task *storage.Task) (string, error) {
	return h.reviewDocument(ctx, task, storage.DocCV)
}

// ReviewCoverLetter rewrites the initial cover letter the same way.
func (h *Handlers) ReviewCoverLetter(ctx context.Context, task *storage.Task) (string, error) {
	return h.reviewDocument(ctx, task, storage.DocCoverLetter)
}

func (h *Handlers) reviewDocument(ctx context.Context, task *storage.Task, typ storage.DocumentType) (string, error) {
	initial, err := h.store.GetDocument(task.JobID, typ, storage.VersionInitial)
	if errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("initial %s for job %s not found", typ, task.JobID)
	}
	if err != nil {
		return "", fmt.Errorf("loading initial %s: %w", typ, err)
	}

	reviewed, err := h.client.Complete(ctx, llm.Request{
		MaxTokens: 4000,
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf(reviewPrompt, documentLabel(typ), initial.Markdown)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("review completion: %w", err)
	}
	reviewed = strings.TrimSpace(reviewed)
	if reviewed == "" {
		return "", fmt.Errorf("model returned empty reviewed %s", typ)
	}

	doc := storage.Document{
		ID:       uuid.New().String(),
		JobID:    task.JobID,
		Type:     typ,
		Version:  storage.VersionReviewed,
		Markdown: reviewed,
	}
	if err := h.store.SaveDocument(doc); err != nil {
		return "", fmt.Errorf("saving reviewed %s: %w", typ, err)
	}

	return marshalResult(documentResult{
		DocumentID: doc.ID,
		Type:       string(doc.Type),
		Version:    string(doc.Version),
	})
}

func documentLabel(typ storage.DocumentType) string {
	if typ == storage.DocCoverLetter {
		return "cover letter"
	}
	return "cv"
}
