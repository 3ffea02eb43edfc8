package parser

import "strings"

const (
	// MinConfidence is the acceptance threshold for an extraction.
	MinConfidence = 50

	CodeMissingRequiredFields = "MISSING_REQUIRED_FIELDS"
	CodeLowConfidence         = "LOW_CONFIDENCE"
)

// ValidationError rejects an extraction while preserving the partial result
// so callers can surface it for manual correction.
type ValidationError struct {
	Code    string
	Message string
	Result  ParseResult
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate gates an extraction on required fields and confidence. The
// required-field check runs first: a response missing company or position is
// reported as incomplete regardless of its confidence score.
func Validate(extracted Extraction) error {
	if strings.TrimSpace(extracted.CompanyName) == "" || strings.TrimSpace(extracted.PositionTitle) == "" {
		return &ValidationError{
			Code:    CodeMissingRequiredFields,
			Message: "Could not extract company name or position title",
		}
	}
	if extracted.Confidence < MinConfidence {
		return &ValidationError{
			Code:    CodeLowConfidence,
			Message: "Extraction confidence too low. Please verify the content is a job posting.",
		}
	}
	return nil
}
