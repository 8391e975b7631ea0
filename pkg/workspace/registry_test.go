package workspace

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillback/quill/pkg/config"
	"github.com/quillback/quill/pkg/errdefs"
	"github.com/quillback/quill/pkg/store"
	"github.com/quillback/quill/pkg/types"
)

type env struct {
	store    *store.MockStore
	registry *Registry
	admin    types.Principal
	owner    types.Principal
	other    types.Principal
}

func testConfig() *config.Config {
	return &config.Config{
		FTSLanguageAllowlist: []string{"spanish", "english", "simple"},
		DefaultFTSLanguage:   "spanish",
	}
}

func newEnv(t *testing.T) *env {
	t.Helper()
	st := store.NewMockStore()
	ctx := context.Background()

	admin := &types.User{ID: uuid.New(), Email: "admin@example.com", Role: types.RoleAdmin, Active: true}
	owner := &types.User{ID: uuid.New(), Email: "owner@example.com", Role: types.RoleEmployee, Active: true}
	other := &types.User{ID: uuid.New(), Email: "other@example.com", Role: types.RoleEmployee, Active: true}
	for _, u := range []*types.User{admin, owner, other} {
		require.NoError(t, st.CreateUser(ctx, u))
	}

	return &env{
		store:    st,
		registry: NewRegistry(st, testConfig()),
		admin:    types.Principal{UserID: admin.ID, Role: types.RoleAdmin, Active: true},
		owner:    types.Principal{UserID: owner.ID, Role: types.RoleEmployee, Active: true},
		other:    types.Principal{UserID: other.ID, Role: types.RoleEmployee, Active: true},
	}
}

func (e *env) create(t *testing.T, name string) *types.Workspace {
	t.Helper()
	ws, err := e.registry.Create(context.Background(), e.admin, CreateParams{
		Name:        name,
		OwnerUserID: e.owner.UserID,
	})
	require.NoError(t, err)
	return ws
}

func TestCreateRequiresAdmin(t *testing.T) {
	e := newEnv(t)
	_, err := e.registry.Create(context.Background(), e.owner, CreateParams{Name: "research"})
	assert.Equal(t, errdefs.CodeAccessDenied, errdefs.CodeOf(err))
}

func TestCreateDefaults(t *testing.T) {
	e := newEnv(t)
	ws := e.create(t, "research")

	assert.Equal(t, types.VisibilityPrivate, ws.Visibility)
	assert.Equal(t, "spanish", ws.FTSLanguage)
	assert.Equal(t, e.owner.UserID, ws.OwnerUserID)
}

func TestCreateVisibility(t *testing.T) {
	e := newEnv(t)

	ws, err := e.registry.Create(context.Background(), e.admin, CreateParams{
		Name: "handbook", OwnerUserID: e.owner.UserID, Visibility: types.VisibilityOrgRead,
	})
	require.NoError(t, err)
	assert.Equal(t, types.VisibilityOrgRead, ws.Visibility)

	// SHARED is only reachable through Share, which establishes the ACL
	_, err = e.registry.Create(context.Background(), e.admin, CreateParams{
		Name: "secrets", OwnerUserID: e.owner.UserID, Visibility: types.VisibilityShared,
	})
	assert.Equal(t, errdefs.CodeBadRequest, errdefs.CodeOf(err))
}

func TestCreateDuplicateName(t *testing.T) {
	e := newEnv(t)
	e.create(t, "research")

	_, err := e.registry.Create(context.Background(), e.admin, CreateParams{
		Name: "research", OwnerUserID: e.owner.UserID,
	})
	assert.Equal(t, errdefs.CodeConflictUnique, errdefs.CodeOf(err))
}

func TestCreateRejectsUnknownLanguage(t *testing.T) {
	e := newEnv(t)
	_, err := e.registry.Create(context.Background(), e.admin, CreateParams{
		Name: "docs", OwnerUserID: e.owner.UserID, FTSLanguage: "klingon",
	})
	assert.Equal(t, errdefs.CodeBadRequest, errdefs.CodeOf(err))
}

func TestCreateAudits(t *testing.T) {
	e := newEnv(t)
	ws := e.create(t, "research")

	events := e.store.AuditEvents()
	require.Len(t, events, 1)
	assert.Equal(t, types.AuditWorkspaceCreate, events[0].Action)
	assert.Equal(t, ws.ID, events[0].TargetID)
}

func TestAuthorizeReadMasksDenialAsNotFound(t *testing.T) {
	e := newEnv(t)
	ws := e.create(t, "private")

	_, err := e.registry.AuthorizeRead(context.Background(), e.other, ws.ID)
	assert.Equal(t, errdefs.CodeNotFound, errdefs.CodeOf(err),
		"denied reader must not learn the workspace exists")
}

func TestAuthorizeWriteDistinguishesReaderFromStranger(t *testing.T) {
	e := newEnv(t)
	ws := e.create(t, "published")
	require.NoError(t, e.registry.Publish(context.Background(), e.owner, ws.ID))

	// reader with no write access sees an explicit denial
	_, err := e.registry.AuthorizeWrite(context.Background(), e.other, ws.ID)
	assert.Equal(t, errdefs.CodeAccessDenied, errdefs.CodeOf(err))
}

func TestListVisibility(t *testing.T) {
	e := newEnv(t)
	private := e.create(t, "private")
	published := e.create(t, "published")
	ctx := context.Background()
	require.NoError(t, e.registry.Publish(ctx, e.owner, published.ID))

	visible, err := e.registry.List(ctx, e.other, false, store.Page{})
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, published.ID, visible[0].ID)

	all, err := e.registry.List(ctx, e.admin, false, store.Page{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	_ = private
}

func TestArchiveIdempotent(t *testing.T) {
	e := newEnv(t)
	ws := e.create(t, "old")
	ctx := context.Background()

	require.NoError(t, e.registry.Archive(ctx, e.owner, ws.ID))
	require.NoError(t, e.registry.Archive(ctx, e.owner, ws.ID), "second archive is a no-op")

	got, err := e.store.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.True(t, got.Archived())
}

func TestUnarchiveByOwner(t *testing.T) {
	e := newEnv(t)
	ws := e.create(t, "old")
	ctx := context.Background()
	require.NoError(t, e.registry.Archive(ctx, e.owner, ws.ID))

	require.NoError(t, e.registry.Unarchive(ctx, e.owner, ws.ID))
	got, err := e.store.GetWorkspace(ctx, ws.ID)
	require.NoError(t, err)
	assert.False(t, got.Archived())
}

func TestUpdateBlockedWhileArchived(t *testing.T) {
	e := newEnv(t)
	ws := e.create(t, "frozen")
	ctx := context.Background()
	require.NoError(t, e.registry.Archive(ctx, e.owner, ws.ID))

	name := "renamed"
	_, err := e.registry.Update(ctx, e.owner, ws.ID, UpdateParams{Name: &name})
	assert.Equal(t, errdefs.CodeAccessDenied, errdefs.CodeOf(err))
}

func TestShareGrantsAndRevokes(t *testing.T) {
	e := newEnv(t)
	ws := e.create(t, "shared")
	ctx := context.Background()

	require.NoError(t, e.registry.Share(ctx, e.owner, ws.ID, []uuid.UUID{e.other.UserID}))

	got, err := e.registry.AuthorizeRead(ctx, e.other, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, types.VisibilityShared, got.Visibility)

	// replacing with an empty set reverts to private
	require.NoError(t, e.registry.Share(ctx, e.owner, ws.ID, nil))
	_, err = e.registry.AuthorizeRead(ctx, e.other, ws.ID)
	assert.Equal(t, errdefs.CodeNotFound, errdefs.CodeOf(err))
}

// sharingFailStore rejects the combined ACL-and-visibility write
type sharingFailStore struct {
	*store.MockStore
}

func (s *sharingFailStore) SetWorkspaceSharing(context.Context, uuid.UUID, []uuid.UUID, types.Visibility) error {
	return errors.New("write failed")
}

func TestShareLeavesNoPartialState(t *testing.T) {
	e := newEnv(t)
	ws := e.create(t, "research")
	ctx := context.Background()

	broken := NewRegistry(&sharingFailStore{e.store}, testConfig())
	err := broken.Share(ctx, e.admin, ws.ID, []uuid.UUID{e.other.UserID})
	require.Error(t, err)

	// a failed share changes neither the visibility nor the ACL
	got, gerr := e.store.GetWorkspace(ctx, ws.ID)
	require.NoError(t, gerr)
	assert.Equal(t, types.VisibilityPrivate, got.Visibility)
	members, merr := e.store.GetACLMembers(ctx, ws.ID)
	require.NoError(t, merr)
	assert.Empty(t, members)
}

func TestShareRejectsUnknownMembers(t *testing.T) {
	e := newEnv(t)
	ws := e.create(t, "shared")

	err := e.registry.Share(context.Background(), e.owner, ws.ID, []uuid.UUID{uuid.New()})
	assert.Equal(t, errdefs.CodeBadRequest, errdefs.CodeOf(err))
}

func TestShareRejectsInactiveMembers(t *testing.T) {
	e := newEnv(t)
	ws := e.create(t, "shared")
	ctx := context.Background()
	require.NoError(t, e.store.SetUserActive(ctx, e.other.UserID, false))

	err := e.registry.Share(ctx, e.owner, ws.ID, []uuid.UUID{e.other.UserID})
	assert.Equal(t, errdefs.CodeBadRequest, errdefs.CodeOf(err))
}

func TestPublishClearsACL(t *testing.T) {
	e := newEnv(t)
	ws := e.create(t, "toshare")
	ctx := context.Background()
	require.NoError(t, e.registry.Share(ctx, e.owner, ws.ID, []uuid.UUID{e.other.UserID}))

	require.NoError(t, e.registry.Publish(ctx, e.owner, ws.ID))

	members, err := e.registry.ACLMembers(ctx, e.owner, ws.ID)
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestInactivePrincipalDenied(t *testing.T) {
	e := newEnv(t)
	ws := e.create(t, "research")
	inactive := types.Principal{UserID: e.owner.UserID, Role: types.RoleEmployee, Active: false}

	_, err := e.registry.AuthorizeRead(context.Background(), inactive, ws.ID)
	assert.Equal(t, errdefs.CodeNotFound, errdefs.CodeOf(err))

	_, err = e.registry.List(context.Background(), inactive, false, store.Page{})
	assert.Equal(t, errdefs.CodeUnauthenticated, errdefs.CodeOf(err))
}
