package storage

import (
	"database/sql"
	"fmt"
	"time"
)

const documentColumns = `id, job_id, document_type, version, regeneration_number,
	markdown, processing_status, error_message, created_at`

func scanDocument(row interface{ Scan(...any) error }) (Document, error) {
	var d Document
	var typ, version, status, createdAt string
	err := row.Scan(
		&d.ID, &d.JobID, &typ, &version, &d.RegenerationNumber,
		&d.Markdown, &status, &d.ErrorMessage, &createdAt,
	)
	if err != nil {
		return Document{}, err
	}
	d.Type = DocumentType(typ)
	d.Version = DocumentVersion(version)
	d.ProcessingStatus = TaskStatus(status)
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return Document{}, fmt.Errorf("parsing created_at for document %s: %w", d.ID, err)
	}
	return d, nil
}

// SaveDocument inserts a new document row. Document rows are immutable:
// handler re-runs and regenerations always insert, never overwrite.
func (s *Store) SaveDocument(d Document) error {
	if d.ProcessingStatus == "" {
		d.ProcessingStatus = TaskCompleted
	}
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO documents (id, job_id, document_type, version, regeneration_number, markdown, processing_status, error_message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.JobID, string(d.Type), string(d.Version), d.RegenerationNumber,
		d.Markdown, string(d.ProcessingStatus), d.ErrorMessage, formatTime(createdAt),
	)
	return err
}

// GetDocument returns the most recent document for a job+type+version
// combination. Retried handler runs insert fresh rows, so "most recent wins"
// gives review tasks the latest initial artifact.
func (s *Store) GetDocument(jobID string, typ DocumentType, version DocumentVersion) (Document, error) {
	row := s.db.QueryRow(`SELECT `+documentColumns+`
		FROM documents
		WHERE job_id = ? AND document_type = ? AND version = ?
		ORDER BY created_at DESC, regeneration_number DESC
		LIMIT 1`,
		jobID, string(typ), string(version))
	d, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return Document{}, ErrNotFound
	}
	if err != nil {
		return Document{}, err
	}
	return d, nil
}

// ListDocumentsForJob returns all document rows for a job, newest first.
func (s *Store) ListDocumentsForJob(jobID string) ([]Document, error) {
	rows, err := s.db.Query(`SELECT `+documentColumns+` FROM documents WHERE job_id = ? ORDER BY created_at DESC`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// NextRegenerationNumber returns 1 + the highest regeneration number recorded
// for a job+type, so regenerated documents get a monotonically increasing
// revision counter.
func (s *Store) NextRegenerationNumber(jobID string, typ DocumentType) (int, error) {
	var n sql.NullInt64
	err := s.db.QueryRow(`SELECT MAX(regeneration_number) FROM documents WHERE job_id = ? AND document_type = ?`,
		jobID, string(typ)).Scan(&n)
	if err != nil {
		return 0, err
	}
	return int(n.Int64) + 1, nil
}

// CreateRegenerationRequest records user feedback asking for a new document version.
func (s *Store) CreateRegenerationRequest(r RegenerationRequest) error {
	createdAt := r.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	status := r.Status
	if status == "" {
		status = TaskPending
	}
	_, err := s.db.Exec(`
		INSERT INTO regeneration_requests (id, job_id, document_id, user_feedback, status, new_document_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.JobID, r.DocumentID, r.UserFeedback, string(status), r.NewDocumentID, formatTime(createdAt),
	)
	return err
}

// ResolveRegenerationRequest marks a regeneration request terminal, recording
// the replacement document when one was produced.
func (s *Store) ResolveRegenerationRequest(id string, status TaskStatus, newDocumentID string) error {
	res, err := s.db.Exec(`UPDATE regeneration_requests SET status = ?, new_document_id = ? WHERE id = ?`,
		string(status), newDocumentID, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
