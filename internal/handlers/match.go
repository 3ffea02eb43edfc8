package handlers

import (
	"context"
	"fmt"

	"github.com/kalambet/jobtrail/internal/llm"
	"github.com/kalambet/jobtrail/internal/parser"
	"github.com/kalambet/jobtrail/internal/storage"
)

const matchPrompt = `You are a career advisor analyzing job fit. Compare this candidate profile with the job requirements:

CANDIDATE PROFILE:
%s

JOB REQUIREMENTS:
Position: %s
Company: %s
%s

Provide:
1. Match percentage (0-100)
2. List of strengths (where candidate exceeds requirements)
3. Partial matches (where candidate meets some but not all requirements)
4. Gaps (where candidate lacks requirements)

Return in JSON format:
{
  "match_percentage": 85,
  "strengths": ["8+ years React experience matches senior requirement", "..."],
  "partial_matches": ["Backend experience limited to Node.js, job wants Python too"],
  "gaps": ["No Kubernetes experience"]
}`

type matchResult struct {
	MatchPercentage int      `json:"match_percentage"`
	Strengths       []string `json:"strengths"`
	PartialMatches  []string `json:"partial_matches"`
	Gaps            []string `json:"gaps"`
}

// CalculateMatch scores the candidate against the extracted job description
// and persists the percentage plus the structured analysis.
func (h *Handlers) CalculateMatch(ctx context.Context, task *storage.Task) (string, error) {
	job, err := h.store.GetJob(task.JobID)
	if err != nil {
		return "", fmt.Errorf("loading job %s: %w", task.JobID, err)
	}
	if job.JobDescriptionText == "" {
		return "", fmt.Errorf("job %s has no extracted description yet", task.JobID)
	}

	summary, err := h.profile.Summary()
	if err != nil {
		return "", fmt.Errorf("loading profile summary: %w", err)
	}

	raw, err := h.client.Complete(ctx, llm.Request{
		MaxTokens: 2000,
		Messages: []llm.Message{
			{Role: "user", Content: fmt.Sprintf(matchPrompt, summary, job.PositionTitle, job.CompanyName, job.JobDescriptionText)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("match completion: %w", err)
	}

	var match matchResult
	if err := parser.DecodeModelJSON(raw, &match); err != nil {
		return "", err
	}

	analysis, err := marshalResult(storage.MatchAnalysis{
		Strengths:      match.Strengths,
		PartialMatches: match.PartialMatches,
		Gaps:           match.Gaps,
	})
	if err != nil {
		return "", err
	}
	if err := h.store.UpdateJobMatch(task.JobID, match.MatchPercentage, analysis); err != nil {
		return "", fmt.Errorf("persisting match: %w", err)
	}

	return marshalResult(match)
}
