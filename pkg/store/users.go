package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/quillback/quill/pkg/types"
)

func (s *PGStore) CreateUser(ctx context.Context, user *types.User) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO users (id, email, role, active, created_at)
		 VALUES ($1, $2, $3, $4, now())`,
		user.ID, user.Email, user.Role, user.Active)
	return translate(err)
}

func (s *PGStore) GetUser(ctx context.Context, id uuid.UUID) (*types.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, email, role, active, created_at FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (s *PGStore) GetUserByEmail(ctx context.Context, email string) (*types.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, email, role, active, created_at FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

// ListActiveUsers returns the subset of ids that exist and are active
func (s *PGStore) ListActiveUsers(ctx context.Context, ids []uuid.UUID) ([]*types.User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, email, role, active, created_at
		 FROM users WHERE id = ANY($1) AND active`, ids)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	var users []*types.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, translate(rows.Err())
}

func (s *PGStore) SetUserActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := s.pool.Exec(ctx, `UPDATE users SET active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanUser(row pgx.Row) (*types.User, error) {
	var u types.User
	if err := row.Scan(&u.ID, &u.Email, &u.Role, &u.Active, &u.CreatedAt); err != nil {
		return nil, translate(err)
	}
	return &u, nil
}
