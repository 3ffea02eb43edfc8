package profile

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/ledongthuc/pdf"
)

// maxResumeChars bounds the stored resume text. Anything longer is almost
// certainly not a resume.
const maxResumeChars = 50000

var whitespaceRuns = regexp.MustCompile(`[ \t]{2,}`)

// ImportResume extracts plain text from a PDF resume and stores it under the
// resume.text profile key via the usual versioned update. Returns the new
// profile version.
func (m *Manager) ImportResume(path string, expectedVersion int) (int, error) {
	text, err := extractResumeText(path)
	if err != nil {
		return 0, err
	}
	return m.Update(expectedVersion, map[string]string{"resume.text": text})
}

func extractResumeText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening resume %s: %w", path, err)
	}
	defer f.Close()

	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extracting resume text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("reading resume text: %w", err)
	}

	text := strings.TrimSpace(whitespaceRuns.ReplaceAllString(buf.String(), " "))
	if text == "" {
		return "", fmt.Errorf("resume %s contains no extractable text", path)
	}
	if len(text) > maxResumeChars {
		text = text[:maxResumeChars]
	}
	return text, nil
}
