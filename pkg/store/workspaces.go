package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quillback/quill/pkg/types"
)

func (s *PGStore) CreateWorkspace(ctx context.Context, ws *types.Workspace) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO workspaces (id, name, description, owner_user_id, visibility, fts_language, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now())`,
		ws.ID, ws.Name, ws.Description, ws.OwnerUserID, ws.Visibility, ws.FTSLanguage)
	return translate(err)
}

func (s *PGStore) GetWorkspace(ctx context.Context, id uuid.UUID) (*types.Workspace, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, name, description, owner_user_id, visibility, fts_language, archived_at, created_at
		 FROM workspaces WHERE id = $1`, id)
	return scanWorkspace(row)
}

// ListVisibleWorkspaces pushes the read policy into a single query: a
// workspace is visible when the principal owns it, it is ORG_READ, or the
// principal appears on its ACL while SHARED. Admins see everything.
func (s *PGStore) ListVisibleWorkspaces(ctx context.Context, p types.Principal, includeArchived bool, page Page) ([]*types.Workspace, error) {
	query := `SELECT w.id, w.name, w.description, w.owner_user_id, w.visibility, w.fts_language, w.archived_at, w.created_at
		 FROM workspaces w
		 WHERE ($2 OR w.owner_user_id = $1
		        OR w.visibility = 'ORG_READ'
		        OR (w.visibility = 'SHARED' AND EXISTS (
		              SELECT 1 FROM workspace_acl a
		              WHERE a.workspace_id = w.id AND a.user_id = $1)))
		   AND ($3 OR w.archived_at IS NULL)
		 ORDER BY w.created_at DESC, w.id DESC
		 LIMIT $4 OFFSET $5`

	rows, err := s.pool.Query(ctx, query,
		p.UserID, p.IsAdmin(), includeArchived, page.Limit, page.Offset)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var out []*types.Workspace
	for rows.Next() {
		w, err := scanWorkspace(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, translate(rows.Err())
}

func (s *PGStore) UpdateWorkspace(ctx context.Context, ws *types.Workspace) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE workspaces
		 SET name = $2, description = $3, fts_language = $4
		 WHERE id = $1`,
		ws.ID, ws.Name, ws.Description, ws.FTSLanguage)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) SetWorkspaceArchived(ctx context.Context, id uuid.UUID, archived bool) error {
	var query string
	if archived {
		query = `UPDATE workspaces SET archived_at = now() WHERE id = $1`
	} else {
		query = `UPDATE workspaces SET archived_at = NULL WHERE id = $1`
	}
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) GetACLMembers(ctx context.Context, workspaceID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT user_id FROM workspace_acl WHERE workspace_id = $1 ORDER BY user_id`, workspaceID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, translate(err)
		}
		ids = append(ids, id)
	}
	return ids, translate(rows.Err())
}

// SetWorkspaceSharing replaces the ACL and sets the visibility in one
// transaction. The workspace row is locked so concurrent share and publish
// calls serialize, and the ACL can never disagree with the visibility.
func (s *PGStore) SetWorkspaceSharing(ctx context.Context, workspaceID uuid.UUID, userIDs []uuid.UUID, vis types.Visibility) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		var id uuid.UUID
		err := tx.QueryRow(ctx,
			`SELECT id FROM workspaces WHERE id = $1 FOR UPDATE`, workspaceID).Scan(&id)
		if err != nil {
			return translate(err)
		}

		if _, err := tx.Exec(ctx,
			`DELETE FROM workspace_acl WHERE workspace_id = $1`, workspaceID); err != nil {
			return translate(err)
		}

		for _, uid := range userIDs {
			if _, err := tx.Exec(ctx,
				`INSERT INTO workspace_acl (workspace_id, user_id, access_level, created_at)
				 VALUES ($1, $2, $3, now())`,
				workspaceID, uid, types.AccessLevelRead); err != nil {
				return translate(err)
			}
		}

		_, err = tx.Exec(ctx,
			`UPDATE workspaces SET visibility = $2 WHERE id = $1`, workspaceID, vis)
		return translate(err)
	})
}

func scanWorkspace(row pgx.Row) (*types.Workspace, error) {
	var w types.Workspace
	if err := row.Scan(&w.ID, &w.Name, &w.Description, &w.OwnerUserID,
		&w.Visibility, &w.FTSLanguage, &w.ArchivedAt, &w.CreatedAt); err != nil {
		return nil, translate(err)
	}
	return &w, nil
}
