package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/quillback/quill/pkg/types"
)

// PersistChunks atomically replaces the document's chunk set and flips the
// document to READY. A concurrent soft delete wins: if the document row is
// gone or deleted the transaction aborts with ErrNotFound and no chunks
// survive.
func (s *PGStore) PersistChunks(ctx context.Context, documentID uuid.UUID, chunks []*types.Chunk, metadata map[string]string) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		var status types.DocumentStatus
		err := tx.QueryRow(ctx,
			`SELECT status FROM documents
			 WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, documentID).Scan(&status)
		if err != nil {
			return translate(err)
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
			return translate(err)
		}

		for _, c := range chunks {
			if _, err := tx.Exec(ctx,
				`INSERT INTO chunks (id, document_id, chunk_index, content, embedding, metadata, created_at)
				 VALUES ($1, $2, $3, $4, $5, $6, now())`,
				c.ID, c.DocumentID, c.ChunkIndex, c.Content,
				pgvector.NewVector(c.Embedding), c.Metadata); err != nil {
				return translate(err)
			}
		}

		if metadata == nil {
			metadata = map[string]string{}
		}
		_, err = tx.Exec(ctx,
			`UPDATE documents SET status = 'READY', error_message = '', metadata = metadata || $2
			 WHERE id = $1`, documentID, metadata)
		return translate(err)
	})
}

func (s *PGStore) CountChunks(ctx context.Context, documentID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM chunks WHERE document_id = $1`, documentID).Scan(&n)
	return n, translate(err)
}

func (s *PGStore) DeleteChunks(ctx context.Context, documentID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	return translate(err)
}

// DenseSearch runs cosine similarity over the workspace's chunks. Soft
// deleted documents are excluded at the join so tenant isolation and
// deletion both hold in one place.
func (s *PGStore) DenseSearch(ctx context.Context, workspaceID uuid.UUID, embedding []float32, limit int) ([]types.ScoredChunk, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.document_id, d.title, d.created_at, d.workspace_id, c.chunk_index, c.content,
		        1 - (c.embedding <=> $2) AS score
		 FROM chunks c
		 JOIN documents d ON d.id = c.document_id
		 WHERE d.workspace_id = $1 AND d.deleted_at IS NULL AND d.status = 'READY'
		 ORDER BY c.embedding <=> $2
		 LIMIT $3`,
		workspaceID, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	return collectScored(rows, types.RetrievalSourceDense)
}

// SparseSearch runs PostgreSQL full text search with the workspace's
// language configuration. The language must come from the configured
// allowlist; it is cast to regconfig server-side.
func (s *PGStore) SparseSearch(ctx context.Context, workspaceID uuid.UUID, language, query string, limit int) ([]types.ScoredChunk, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.id, c.document_id, d.title, d.created_at, d.workspace_id, c.chunk_index, c.content,
		        ts_rank_cd(to_tsvector($2::regconfig, c.content), plainto_tsquery($2::regconfig, $3)) AS score
		 FROM chunks c
		 JOIN documents d ON d.id = c.document_id
		 WHERE d.workspace_id = $1 AND d.deleted_at IS NULL AND d.status = 'READY'
		   AND to_tsvector($2::regconfig, c.content) @@ plainto_tsquery($2::regconfig, $3)
		 ORDER BY score DESC, c.document_id, c.chunk_index
		 LIMIT $4`,
		workspaceID, language, query, limit)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()
	return collectScored(rows, types.RetrievalSourceSparse)
}

func collectScored(rows pgx.Rows, source types.RetrievalSource) ([]types.ScoredChunk, error) {
	var out []types.ScoredChunk
	for rows.Next() {
		var sc types.ScoredChunk
		if err := rows.Scan(&sc.ChunkID, &sc.DocumentID, &sc.DocumentTitle,
			&sc.DocumentCreatedAt, &sc.WorkspaceID, &sc.ChunkIndex, &sc.Content, &sc.Score); err != nil {
			return nil, translate(err)
		}
		sc.Source = source
		out = append(out, sc)
	}
	return out, translate(rows.Err())
}
