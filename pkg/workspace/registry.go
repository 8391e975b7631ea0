package workspace

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/quillback/quill/pkg/config"
	"github.com/quillback/quill/pkg/errdefs"
	"github.com/quillback/quill/pkg/log"
	"github.com/quillback/quill/pkg/policy"
	"github.com/quillback/quill/pkg/store"
	"github.com/quillback/quill/pkg/types"
)

// Registry manages workspace lifecycle, visibility, and sharing. All
// authorization decisions for workspace-scoped operations flow through it.
type Registry struct {
	store store.Store
	cfg   *config.Config
}

func NewRegistry(st store.Store, cfg *config.Config) *Registry {
	return &Registry{store: st, cfg: cfg}
}

// CreateParams carries the fields for a new workspace. Visibility may be
// PRIVATE or ORG_READ; SHARED requires a non-empty ACL and is only reachable
// through Share.
type CreateParams struct {
	Name        string `validate:"required,min=1,max=120"`
	Description string `validate:"max=2000"`
	OwnerUserID uuid.UUID
	Visibility  types.Visibility
	FTSLanguage string
}

// Create provisions a workspace. Only admins create workspaces; the owner
// may be any active user. Names are unique per owner.
func (r *Registry) Create(ctx context.Context, p types.Principal, params CreateParams) (*types.Workspace, error) {
	if !p.Active {
		return nil, errdefs.Unauthenticated("account is inactive")
	}
	if !p.IsAdmin() {
		return nil, errdefs.AccessDenied("only administrators create workspaces")
	}

	owner := params.OwnerUserID
	if owner == uuid.Nil {
		owner = p.UserID
	}
	ownerUser, err := r.store.GetUser(ctx, owner)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errdefs.BadRequest("owner user does not exist")
		}
		return nil, errdefs.Internal("failed to look up owner", err)
	}
	if !ownerUser.Active {
		return nil, errdefs.BadRequest("owner user is inactive")
	}

	lang := params.FTSLanguage
	if lang == "" {
		lang = r.cfg.DefaultFTSLanguage
	}
	if !r.cfg.LanguageAllowed(lang) {
		return nil, errdefs.BadRequest(fmt.Sprintf("language %q is not enabled", lang))
	}

	visibility := params.Visibility
	switch visibility {
	case "":
		visibility = types.VisibilityPrivate
	case types.VisibilityPrivate, types.VisibilityOrgRead:
	default:
		return nil, errdefs.BadRequest("visibility must be PRIVATE or ORG_READ at creation")
	}

	ws := &types.Workspace{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(params.Name),
		Description: params.Description,
		OwnerUserID: owner,
		Visibility:  visibility,
		FTSLanguage: lang,
	}
	if ws.Name == "" {
		return nil, errdefs.BadRequest("workspace name is required")
	}

	if err := r.store.CreateWorkspace(ctx, ws); err != nil {
		if errors.Is(err, store.ErrUniqueViolation) {
			return nil, errdefs.ConflictUnique("a workspace with this name already exists for the owner")
		}
		return nil, errdefs.Internal("failed to create workspace", err)
	}

	r.audit(ctx, p, types.AuditWorkspaceCreate, ws.ID, map[string]string{"name": ws.Name})
	log.WithWorkspaceID(ws.ID.String()).Info().
		Str("component", "workspace").
		Str("owner", owner.String()).
		Msg("workspace created")
	return ws, nil
}

// AuthorizeRead loads the workspace and verifies the principal may read it.
// A denial is masked as not-found so existence is never leaked.
func (r *Registry) AuthorizeRead(ctx context.Context, p types.Principal, id uuid.UUID) (*types.Workspace, error) {
	ws, err := r.store.GetWorkspace(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errdefs.NotFound("workspace not found")
		}
		return nil, errdefs.Internal("failed to load workspace", err)
	}

	var acl []uuid.UUID
	if ws.Visibility == types.VisibilityShared {
		acl, err = r.store.GetACLMembers(ctx, id)
		if err != nil {
			return nil, errdefs.Internal("failed to load workspace acl", err)
		}
	}

	if !policy.CanRead(p, ws, acl) {
		return nil, errdefs.MaskNotFound(errdefs.AccessDenied("workspace access denied"))
	}
	return ws, nil
}

// AuthorizeWrite loads the workspace and verifies the principal may mutate
// it. Readers without write access get an explicit denial; principals with
// no access at all get not-found.
func (r *Registry) AuthorizeWrite(ctx context.Context, p types.Principal, id uuid.UUID) (*types.Workspace, error) {
	ws, err := r.AuthorizeRead(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if !policy.CanWrite(p, ws) {
		return nil, errdefs.AccessDenied("workspace is read-only for this account")
	}
	return ws, nil
}

// List returns the workspaces visible to the principal. Visibility is
// resolved in a single query, not by filtering after the fact.
func (r *Registry) List(ctx context.Context, p types.Principal, includeArchived bool, page store.Page) ([]*types.Workspace, error) {
	if !p.Active {
		return nil, errdefs.Unauthenticated("account is inactive")
	}
	if page.Limit <= 0 || page.Limit > 200 {
		page.Limit = 50
	}
	out, err := r.store.ListVisibleWorkspaces(ctx, p, includeArchived, page)
	if err != nil {
		return nil, errdefs.Internal("failed to list workspaces", err)
	}
	return out, nil
}

// UpdateParams carries mutable workspace fields; nil means keep
type UpdateParams struct {
	Name        *string
	Description *string
	FTSLanguage *string
}

// Update renames or redescribes the workspace. Rename revalidates the
// per-owner uniqueness constraint.
func (r *Registry) Update(ctx context.Context, p types.Principal, id uuid.UUID, params UpdateParams) (*types.Workspace, error) {
	ws, err := r.AuthorizeWrite(ctx, p, id)
	if err != nil {
		return nil, err
	}

	if params.Name != nil {
		name := strings.TrimSpace(*params.Name)
		if name == "" {
			return nil, errdefs.BadRequest("workspace name cannot be empty")
		}
		ws.Name = name
	}
	if params.Description != nil {
		ws.Description = *params.Description
	}
	if params.FTSLanguage != nil {
		if !r.cfg.LanguageAllowed(*params.FTSLanguage) {
			return nil, errdefs.BadRequest(fmt.Sprintf("language %q is not enabled", *params.FTSLanguage))
		}
		ws.FTSLanguage = *params.FTSLanguage
	}

	if err := r.store.UpdateWorkspace(ctx, ws); err != nil {
		if errors.Is(err, store.ErrUniqueViolation) {
			return nil, errdefs.ConflictUnique("a workspace with this name already exists for the owner")
		}
		return nil, errdefs.Internal("failed to update workspace", err)
	}

	r.audit(ctx, p, types.AuditWorkspaceUpdate, ws.ID, map[string]string{"name": ws.Name})
	return ws, nil
}

// Archive freezes the workspace. Archiving an archived workspace is a
// no-op, not an error.
func (r *Registry) Archive(ctx context.Context, p types.Principal, id uuid.UUID) error {
	ws, err := r.AuthorizeWrite(ctx, p, id)
	if err != nil {
		return err
	}
	if ws.Archived() {
		return nil
	}
	if err := r.store.SetWorkspaceArchived(ctx, id, true); err != nil {
		return errdefs.Internal("failed to archive workspace", err)
	}
	r.audit(ctx, p, types.AuditWorkspaceArchive, id, nil)
	return nil
}

// Unarchive reactivates an archived workspace. Admins and owners only; the
// archived-write guard does not apply to the unarchive itself.
func (r *Registry) Unarchive(ctx context.Context, p types.Principal, id uuid.UUID) error {
	ws, err := r.AuthorizeRead(ctx, p, id)
	if err != nil {
		return err
	}
	if !p.IsAdmin() && p.UserID != ws.OwnerUserID {
		return errdefs.AccessDenied("workspace is read-only for this account")
	}
	if !ws.Archived() {
		return nil
	}
	if err := r.store.SetWorkspaceArchived(ctx, id, false); err != nil {
		return errdefs.Internal("failed to unarchive workspace", err)
	}
	r.audit(ctx, p, types.AuditWorkspaceUnarchive, id, nil)
	return nil
}

// Publish flips the workspace to ORG_READ, clearing any ACL
func (r *Registry) Publish(ctx context.Context, p types.Principal, id uuid.UUID) error {
	if _, err := r.AuthorizeWrite(ctx, p, id); err != nil {
		return err
	}
	if err := r.store.SetWorkspaceSharing(ctx, id, nil, types.VisibilityOrgRead); err != nil {
		return errdefs.Internal("failed to publish workspace", err)
	}
	r.audit(ctx, p, types.AuditWorkspacePublish, id, nil)
	return nil
}

// Share replaces the ACL with the given member set and flips visibility to
// SHARED. Every member must be an existing active user. An empty member set
// reverts the workspace to PRIVATE.
func (r *Registry) Share(ctx context.Context, p types.Principal, id uuid.UUID, memberIDs []uuid.UUID) error {
	ws, err := r.AuthorizeWrite(ctx, p, id)
	if err != nil {
		return err
	}

	members := dedupe(memberIDs, ws.OwnerUserID)
	if len(members) == 0 {
		if err := r.store.SetWorkspaceSharing(ctx, id, nil, types.VisibilityPrivate); err != nil {
			return errdefs.Internal("failed to clear workspace acl", err)
		}
		r.audit(ctx, p, types.AuditWorkspaceShare, id, map[string]string{"members": "0"})
		return nil
	}

	active, err := r.store.ListActiveUsers(ctx, members)
	if err != nil {
		return errdefs.Internal("failed to validate acl members", err)
	}
	if len(active) != len(members) {
		return errdefs.BadRequest("acl members must be existing active users")
	}

	// ACL and visibility move together in one store transaction
	if err := r.store.SetWorkspaceSharing(ctx, id, members, types.VisibilityShared); err != nil {
		return errdefs.Internal("failed to share workspace", err)
	}

	r.audit(ctx, p, types.AuditWorkspaceShare, id, map[string]string{
		"members": fmt.Sprintf("%d", len(members)),
	})
	return nil
}

// ACLMembers lists the user ids on the workspace ACL
func (r *Registry) ACLMembers(ctx context.Context, p types.Principal, id uuid.UUID) ([]uuid.UUID, error) {
	if _, err := r.AuthorizeRead(ctx, p, id); err != nil {
		return nil, err
	}
	members, err := r.store.GetACLMembers(ctx, id)
	if err != nil {
		return nil, errdefs.Internal("failed to load workspace acl", err)
	}
	return members, nil
}

func (r *Registry) audit(ctx context.Context, p types.Principal, action string, target uuid.UUID, md map[string]string) {
	event := &types.AuditEvent{Actor: p.UserID, Action: action, TargetID: target, Metadata: md}
	if err := r.store.AppendAudit(ctx, event); err != nil {
		log.WithComponent("workspace").Error().Err(err).
			Str("action", action).Msg("failed to append audit event")
	}
}

// dedupe drops duplicates and the owner, who needs no ACL entry
func dedupe(ids []uuid.UUID, owner uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, id := range ids {
		if id == uuid.Nil || id == owner || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
