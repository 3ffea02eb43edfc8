// Package fetch retrieves readable job-posting content through a
// content-extraction reader service (Jina AI Reader compatible).
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kalambet/jobtrail/internal/safeurl"
)

const (
	defaultBaseURL = "https://r.jina.ai"
	fetchTimeout   = 20 * time.Second
	maxBodySize    = 5 << 20 // 5MB

	// MinContentLength rejects bodies too short to be a real posting; a
	// near-empty response usually means the reader hit a wall, not a job ad.
	MinContentLength = 50
)

// ErrorCode classifies fetch failures for the caller.
type ErrorCode string

const (
	CodeUnsafeURL    ErrorCode = "unsafe_url"
	CodeBlocked      ErrorCode = "blocked"
	CodeNotFound     ErrorCode = "not_found"
	CodeRateLimited  ErrorCode = "rate_limited"
	CodeUnreachable  ErrorCode = "unreachable"
	CodeEmptyContent ErrorCode = "empty_content"
)

// Error is a typed fetch failure.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// Reader fetches markdown renditions of web pages via a reader proxy.
type Reader struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewReader creates a Reader against the default reader endpoint. apiKey is
// optional; when set it buys better rate limits.
func NewReader(apiKey string) *Reader {
	return &Reader{
		baseURL: defaultBaseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: fetchTimeout,
		},
	}
}

// NewReaderWithBaseURL creates a Reader pointing at a custom endpoint (for testing).
func NewReaderWithBaseURL(apiKey, baseURL string) *Reader {
	r := NewReader(apiKey)
	r.baseURL = strings.TrimRight(baseURL, "/")
	return r
}

// FetchContent retrieves the markdown rendition of a job posting URL.
// The target URL is validated against the SSRF blocklist before any network
// I/O. Failures are typed; this layer never retries, retry policy belongs to
// the scheduler.
func (r *Reader) FetchContent(ctx context.Context, target string) (string, error) {
	if res := safeurl.Check(target); !res.OK {
		return "", &Error{Code: CodeUnsafeURL, Message: "URL rejected: " + res.Reason}
	}

	readerURL := r.baseURL + "/" + url.QueryEscape(target)

	ctx, cancel := context.WithTimeout(ctx, fetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, readerURL, nil)
	if err != nil {
		return "", &Error{Code: CodeUnreachable, Message: "building reader request", Err: err}
	}
	req.Header.Set("Accept", "text/plain")
	req.Header.Set("X-Return-Format", "markdown")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", &Error{Code: CodeUnreachable, Message: "unable to fetch URL", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return "", &Error{Code: CodeBlocked, Message: "site blocked by CAPTCHA or authentication"}
	case resp.StatusCode == http.StatusNotFound:
		return "", &Error{Code: CodeNotFound, Message: "job posting not found"}
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &Error{Code: CodeRateLimited, Message: "rate limit exceeded, try again in a minute"}
	case resp.StatusCode != http.StatusOK:
		return "", &Error{Code: CodeUnreachable, Message: fmt.Sprintf("HTTP %d: unable to fetch URL", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", &Error{Code: CodeUnreachable, Message: "reading reader response", Err: err}
	}

	markdown := string(body)
	if len(strings.TrimSpace(markdown)) < MinContentLength {
		return "", &Error{Code: CodeEmptyContent, Message: "empty or invalid content returned from URL"}
	}

	return markdown, nil
}
