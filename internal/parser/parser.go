// Package parser turns a job posting URL or pasted text into a validated
// structured extraction.
package parser

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	// MinTextLength and MaxTextLength bound manually pasted posting text.
	MinTextLength = 50
	MaxTextLength = 100000
)

// Parsing provenance values recorded alongside results.
const (
	SourceURLFetch    = "url_fetch"
	SourceManualPaste = "manual_paste"
)

// InputError reports a malformed parse request.
type InputError struct {
	Message string
}

func (e *InputError) Error() string { return e.Message }

// ParseRequest carries exactly one of URL or Text.
type ParseRequest struct {
	URL  string
	Text string
}

// ParseResult is a validated extraction plus its provenance.
type ParseResult struct {
	Extraction

	ParsingSource string
	ParsingModel  string
	RawContent    string
	JobSource     string
}

// ContentFetcher retrieves posting content for a URL.
type ContentFetcher interface {
	FetchContent(ctx context.Context, target string) (string, error)
}

// Parser orchestrates fetch, extraction and validation for a parse request.
type Parser struct {
	fetcher   ContentFetcher
	extractor *Extractor
}

// New creates a Parser.
func New(fetcher ContentFetcher, extractor *Extractor) *Parser {
	return &Parser{fetcher: fetcher, extractor: extractor}
}

// ParseJobPost resolves a request to a validated extraction. Fetch failures
// and model parse failures are returned as-is; validation failures come back
// as *ValidationError carrying the partial result.
func (p *Parser) ParseJobPost(ctx context.Context, req ParseRequest) (ParseResult, error) {
	hasURL := strings.TrimSpace(req.URL) != ""
	hasText := strings.TrimSpace(req.Text) != ""
	if hasURL == hasText {
		return ParseResult{}, &InputError{Message: "provide exactly one of url or text"}
	}

	var content, source, jobSource string
	if hasURL {
		fetched, err := p.fetcher.FetchContent(ctx, req.URL)
		if err != nil {
			return ParseResult{}, fmt.Errorf("fetching %s: %w", req.URL, err)
		}
		content = fetched
		source = SourceURLFetch
		jobSource = req.URL
	} else {
		text := strings.TrimSpace(req.Text)
		if len(text) < MinTextLength {
			return ParseResult{}, &InputError{Message: fmt.Sprintf("text too short: minimum %d characters", MinTextLength)}
		}
		if len(text) > MaxTextLength {
			return ParseResult{}, &InputError{Message: fmt.Sprintf("text too long: maximum %d characters", MaxTextLength)}
		}
		content = text
		source = SourceManualPaste
	}

	extracted, err := p.extractor.Extract(ctx, content)
	if err != nil {
		return ParseResult{}, err
	}

	result := ParseResult{
		Extraction:    extracted,
		ParsingSource: source,
		ParsingModel:  p.extractor.Model(),
		RawContent:    content,
		JobSource:     jobSource,
	}

	if err := Validate(extracted); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			verr.Result = result
		}
		return ParseResult{}, err
	}
	return result, nil
}
