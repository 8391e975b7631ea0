package policy

import (
	"github.com/google/uuid"

	"github.com/quillback/quill/pkg/types"
)

// CanRead decides whether the principal may read the workspace. aclMembers
// is the set of user ids granted access while the workspace is SHARED.
//
// Rules, evaluated in order: inactive principals are denied; admins are
// allowed; owners are allowed; ORG_READ grants any active employee; SHARED
// grants ACL members; PRIVATE grants nobody else.
func CanRead(p types.Principal, w *types.Workspace, aclMembers []uuid.UUID) bool {
	if !p.Active {
		return false
	}
	if p.IsAdmin() {
		return true
	}
	if p.UserID == w.OwnerUserID {
		return true
	}
	switch w.Visibility {
	case types.VisibilityOrgRead:
		return p.Role == types.RoleEmployee || p.Role == types.RoleAdmin
	case types.VisibilityShared:
		for _, id := range aclMembers {
			if id == p.UserID {
				return true
			}
		}
	}
	return false
}

// CanWrite decides whether the principal may mutate the workspace or its
// documents. Writes to archived workspaces are denied for everyone except
// admins.
func CanWrite(p types.Principal, w *types.Workspace) bool {
	if !p.Active {
		return false
	}
	if p.IsAdmin() {
		return true
	}
	if w.Archived() {
		return false
	}
	return p.UserID == w.OwnerUserID
}
