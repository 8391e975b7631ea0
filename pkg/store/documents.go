package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quillback/quill/pkg/types"
)

const documentColumns = `id, workspace_id, title, source, mime_type, storage_key,
	status, error_message, tags, content_hash, metadata, uploaded_by_user_id,
	created_at, deleted_at`

func (s *PGStore) CreateDocument(ctx context.Context, doc *types.Document) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO documents (id, workspace_id, title, source, mime_type, storage_key,
		   status, error_message, tags, content_hash, metadata, uploaded_by_user_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now())`,
		doc.ID, doc.WorkspaceID, doc.Title, doc.Source, doc.MimeType, doc.StorageKey,
		doc.Status, doc.ErrorMessage, doc.Tags, doc.ContentHash, doc.Metadata,
		doc.UploadedByUserID)
	return translate(err)
}

func (s *PGStore) GetDocument(ctx context.Context, workspaceID, id uuid.UUID) (*types.Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE workspace_id = $1 AND id = $2`,
		workspaceID, id)
	return scanDocument(row)
}

// GetDocumentByHash looks up a live document by content hash, used to
// resolve admission races after a unique violation.
func (s *PGStore) GetDocumentByHash(ctx context.Context, workspaceID uuid.UUID, hash string) (*types.Document, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+documentColumns+`
		 FROM documents
		 WHERE workspace_id = $1 AND content_hash = $2 AND deleted_at IS NULL`,
		workspaceID, hash)
	return scanDocument(row)
}

func (s *PGStore) ListDocuments(ctx context.Context, workspaceID uuid.UUID, filter DocumentFilter) ([]*types.Document, error) {
	query := `SELECT ` + documentColumns + `
		 FROM documents
		 WHERE workspace_id = $1
		   AND ($2 = '' OR status = $2)
		   AND ($3 = '' OR $3 = ANY(tags))
		   AND ($4 = '' OR title ILIKE '%' || $4 || '%')
		   AND ($5 OR deleted_at IS NULL)
		 ORDER BY created_at DESC, id DESC
		 LIMIT $6 OFFSET $7`

	rows, err := s.pool.Query(ctx, query,
		workspaceID, string(filter.Status), filter.Tag, filter.TitleQuery,
		filter.IncludeDeleted, filter.Limit, filter.Offset)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []*types.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, translate(rows.Err())
}

// ClaimDocument transitions PENDING to PROCESSING with a compare-and-set.
// Returns false when another worker already claimed the document or it left
// the PENDING state.
func (s *PGStore) ClaimDocument(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET status = 'PROCESSING', error_message = ''
		 WHERE id = $1 AND status = 'PENDING' AND deleted_at IS NULL`, id)
	if err != nil {
		return false, translate(err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PGStore) FailDocument(ctx context.Context, id uuid.UUID, message string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET status = 'FAILED', error_message = $2 WHERE id = $1`,
		id, message)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetDocumentForReprocess puts a READY or FAILED document back to PENDING
// and drops its chunks so the pipeline starts clean.
func (s *PGStore) ResetDocumentForReprocess(ctx context.Context, workspaceID, id uuid.UUID) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE documents SET status = 'PENDING', error_message = ''
			 WHERE workspace_id = $1 AND id = $2
			   AND status IN ('READY', 'FAILED') AND deleted_at IS NULL`,
			workspaceID, id)
		if err != nil {
			return translate(err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		_, err = tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, id)
		return translate(err)
	})
}

// SoftDeleteDocument marks the document deleted and purges its chunks in the
// same transaction so retrieval never sees orphans.
func (s *PGStore) SoftDeleteDocument(ctx context.Context, workspaceID, id uuid.UUID) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE documents SET deleted_at = now()
			 WHERE workspace_id = $1 AND id = $2 AND deleted_at IS NULL`,
			workspaceID, id)
		if err != nil {
			return translate(err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		_, err = tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, id)
		return translate(err)
	})
}

func (s *PGStore) SetDocumentMetadata(ctx context.Context, id uuid.UUID, metadata map[string]string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE documents SET metadata = metadata || $2 WHERE id = $1`, id, metadata)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// CountDocumentsByStatus reports live document counts per status, feeding
// the documents gauge.
func (s *PGStore) CountDocumentsByStatus(ctx context.Context) (map[types.DocumentStatus]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, count(*) FROM documents WHERE deleted_at IS NULL GROUP BY status`)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := make(map[types.DocumentStatus]int)
	for rows.Next() {
		var status types.DocumentStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, translate(err)
		}
		out[status] = n
	}
	return out, translate(rows.Err())
}

func scanDocument(row pgx.Row) (*types.Document, error) {
	var d types.Document
	if err := row.Scan(&d.ID, &d.WorkspaceID, &d.Title, &d.Source, &d.MimeType,
		&d.StorageKey, &d.Status, &d.ErrorMessage, &d.Tags, &d.ContentHash,
		&d.Metadata, &d.UploadedByUserID, &d.CreatedAt, &d.DeletedAt); err != nil {
		return nil, translate(err)
	}
	return &d, nil
}
