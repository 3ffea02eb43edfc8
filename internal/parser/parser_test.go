package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/kalambet/jobtrail/internal/llm"
)

type mockCompleter struct {
	completeFn func(ctx context.Context, req llm.Request) (string, error)
	lastReq    llm.Request
}

func (m *mockCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	m.lastReq = req
	return m.completeFn(ctx, req)
}

type mockFetcher struct {
	fetchFn func(ctx context.Context, target string) (string, error)
}

func (m *mockFetcher) FetchContent(ctx context.Context, target string) (string, error) {
	return m.fetchFn(ctx, target)
}

func goodExtractionJSON(confidence int) string {
	return fmt.Sprintf(`{
		"company_name": "Acme Corp",
		"position_title": "Backend Engineer",
		"location": "Remote",
		"salary_range": null,
		"job_type": "full-time",
		"job_description_text": "Build services.",
		"posted_date": null,
		"confidence": %d
	}`, confidence)
}

func newTestParser(response string) (*Parser, *mockCompleter) {
	completer := &mockCompleter{
		completeFn: func(context.Context, llm.Request) (string, error) {
			return response, nil
		},
	}
	fetcher := &mockFetcher{
		fetchFn: func(_ context.Context, _ string) (string, error) {
			return strings.Repeat("job posting content. ", 20), nil
		},
	}
	return New(fetcher, NewExtractor(completer, "test-model")), completer
}

func TestParseJobPost_FromURL(t *testing.T) {
	p, completer := newTestParser(goodExtractionJSON(85))

	result, err := p.ParseJobPost(context.Background(), ParseRequest{URL: "https://example.com/job"})
	if err != nil {
		t.Fatalf("ParseJobPost: %v", err)
	}
	if result.CompanyName != "Acme Corp" || result.PositionTitle != "Backend Engineer" {
		t.Errorf("unexpected extraction: %+v", result.Extraction)
	}
	if result.ParsingSource != SourceURLFetch {
		t.Errorf("source = %q, want %q", result.ParsingSource, SourceURLFetch)
	}
	if result.JobSource != "https://example.com/job" {
		t.Errorf("job source = %q", result.JobSource)
	}
	if result.ParsingModel != "test-model" {
		t.Errorf("model = %q", result.ParsingModel)
	}
	if completer.lastReq.System == "" {
		t.Error("system prompt not set on completion request")
	}
}

func TestParseJobPost_FromText(t *testing.T) {
	p, _ := newTestParser(goodExtractionJSON(85))

	text := strings.Repeat("We are hiring a backend engineer. ", 10)
	result, err := p.ParseJobPost(context.Background(), ParseRequest{Text: text})
	if err != nil {
		t.Fatalf("ParseJobPost: %v", err)
	}
	if result.ParsingSource != SourceManualPaste {
		t.Errorf("source = %q, want %q", result.ParsingSource, SourceManualPaste)
	}
	if result.JobSource != "" {
		t.Errorf("job source = %q, want empty for pasted text", result.JobSource)
	}
}

func TestParseJobPost_InputValidation(t *testing.T) {
	p, _ := newTestParser(goodExtractionJSON(85))

	tests := []struct {
		name string
		req  ParseRequest
	}{
		{"neither url nor text", ParseRequest{}},
		{"both url and text", ParseRequest{URL: "https://example.com", Text: strings.Repeat("x", 60)}},
		{"text one under minimum", ParseRequest{Text: strings.Repeat("a", MinTextLength-1)}},
		{"text one over maximum", ParseRequest{Text: strings.Repeat("a", MaxTextLength+1)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ParseJobPost(context.Background(), tt.req)
			var inputErr *InputError
			if !errors.As(err, &inputErr) {
				t.Fatalf("err = %v, want *InputError", err)
			}
		})
	}
}

func TestParseJobPost_TextAtBoundaries(t *testing.T) {
	p, _ := newTestParser(goodExtractionJSON(85))

	if _, err := p.ParseJobPost(context.Background(), ParseRequest{Text: strings.Repeat("a", MinTextLength)}); err != nil {
		t.Errorf("text of exactly %d chars rejected: %v", MinTextLength, err)
	}
	if _, err := p.ParseJobPost(context.Background(), ParseRequest{Text: strings.Repeat("a", MaxTextLength)}); err != nil {
		t.Errorf("text of exactly %d chars rejected: %v", MaxTextLength, err)
	}
}

func TestParseJobPost_FetchErrorPropagates(t *testing.T) {
	fetchErr := errors.New("upstream down")
	fetcher := &mockFetcher{
		fetchFn: func(context.Context, string) (string, error) { return "", fetchErr },
	}
	completer := &mockCompleter{
		completeFn: func(context.Context, llm.Request) (string, error) {
			t.Fatal("completer called despite fetch failure")
			return "", nil
		},
	}
	p := New(fetcher, NewExtractor(completer, "test-model"))

	_, err := p.ParseJobPost(context.Background(), ParseRequest{URL: "https://example.com/job"})
	if !errors.Is(err, fetchErr) {
		t.Errorf("err = %v, want wrapped fetch error", err)
	}
}

func TestParseJobPost_ValidationGate(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantCode string
	}{
		{
			"missing company",
			`{"company_name": "", "position_title": "Engineer", "job_description_text": "x", "confidence": 95}`,
			CodeMissingRequiredFields,
		},
		{
			"missing position",
			`{"company_name": "Acme", "position_title": "", "job_description_text": "x", "confidence": 95}`,
			CodeMissingRequiredFields,
		},
		{
			"low confidence",
			goodExtractionJSON(49),
			CodeLowConfidence,
		},
		{
			"missing fields win over low confidence",
			`{"company_name": "", "position_title": "", "job_description_text": "x", "confidence": 10}`,
			CodeMissingRequiredFields,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestParser(tt.response)

			_, err := p.ParseJobPost(context.Background(), ParseRequest{URL: "https://example.com/job"})
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if verr.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", verr.Code, tt.wantCode)
			}
			if verr.Result.ParsingSource != SourceURLFetch {
				t.Error("validation error should carry the partial result")
			}
		})
	}
}

func TestParseJobPost_ConfidenceAtThreshold(t *testing.T) {
	p, _ := newTestParser(goodExtractionJSON(MinConfidence))

	if _, err := p.ParseJobPost(context.Background(), ParseRequest{URL: "https://example.com/job"}); err != nil {
		t.Errorf("confidence exactly %d rejected: %v", MinConfidence, err)
	}
}
