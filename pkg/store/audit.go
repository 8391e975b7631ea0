package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/quillback/quill/pkg/types"
)

// AppendAudit records one immutable event row. Audit failures are surfaced
// to the caller; services decide whether the surrounding operation proceeds.
func (s *PGStore) AppendAudit(ctx context.Context, event *types.AuditEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Metadata == nil {
		event.Metadata = map[string]string{}
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO audit_events (id, actor, action, target_id, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, now())`,
		event.ID, event.Actor, event.Action, event.TargetID, event.Metadata)
	return translate(err)
}
