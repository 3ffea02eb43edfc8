package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/kalambet/jobtrail/internal/fetch"
	"github.com/kalambet/jobtrail/internal/observability"
	"github.com/kalambet/jobtrail/internal/parser"
)

type parseJobRequest struct {
	URL  string `json:"url"`
	Text string `json:"text"`
}

type parseJobResponse struct {
	CompanyName        string `json:"company_name"`
	PositionTitle      string `json:"position_title"`
	Location           string `json:"location,omitempty"`
	SalaryRange        string `json:"salary_range,omitempty"`
	JobType            string `json:"job_type,omitempty"`
	JobDescriptionText string `json:"job_description_text"`
	PostedDate         string `json:"posted_date,omitempty"`
	Confidence         int    `json:"confidence"`

	ParsingSource string `json:"parsing_source"`
	ParsingModel  string `json:"parsing_model"`
	RawContent    string `json:"raw_content"`
	JobSource     string `json:"job_source,omitempty"`
}

func toParseJobResponse(result parser.ParseResult) parseJobResponse {
	return parseJobResponse{
		CompanyName:        result.CompanyName,
		PositionTitle:      result.PositionTitle,
		Location:           result.Location,
		SalaryRange:        result.SalaryRange,
		JobType:            result.JobType,
		JobDescriptionText: result.JobDescriptionText,
		PostedDate:         result.PostedDate,
		Confidence:         result.Confidence,
		ParsingSource:      result.ParsingSource,
		ParsingModel:       result.ParsingModel,
		RawContent:         result.RawContent,
		JobSource:          result.JobSource,
	}
}

func handleParseJob(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

		var req parseJobRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "INVALID_INPUT", "invalid request body: %v", err)
			return
		}

		result, err := deps.Parser.ParseJobPost(r.Context(), parser.ParseRequest{URL: req.URL, Text: req.Text})
		if err != nil {
			source := parser.SourceManualPaste
			if req.URL != "" {
				source = parser.SourceURLFetch
			}
			observability.ParseRequests.WithLabelValues(source, "error").Inc()
			writeParseError(w, deps, err)
			return
		}

		observability.ParseRequests.WithLabelValues(result.ParsingSource, "ok").Inc()
		writeJSON(w, http.StatusOK, toParseJobResponse(result))
	}
}

// writeParseError maps the parse error taxonomy onto the HTTP contract.
// Validation failures carry the partial extraction so the caller can offer
// it as an editable draft; fetch failures carry the manual-paste fallback
// hint; everything unexpected gets a request ID for log correlation.
func writeParseError(w http.ResponseWriter, deps AppDeps, err error) {
	var inputErr *parser.InputError
	if errors.As(err, &inputErr) {
		httpError(w, http.StatusBadRequest, "INVALID_INPUT", "%s", inputErr.Message)
		return
	}

	var verr *parser.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":     verr.Message,
			"code":      verr.Code,
			"extracted": toParseJobResponse(verr.Result),
		})
		return
	}

	var fetchErr *fetch.Error
	if errors.As(err, &fetchErr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":    fetchErr.Message,
			"code":     "FETCH_FAILED",
			"fallback": "manual_paste",
		})
		return
	}

	requestID := uuid.New().String()
	deps.Logger.Error("parse-job failed", "request_id", requestID, "error", err)
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"error":     "internal error",
		"code":      "INTERNAL_ERROR",
		"requestId": requestID,
	})
}
