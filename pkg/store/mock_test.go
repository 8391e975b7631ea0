package store

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillback/quill/pkg/types"
)

// Listings page newest-first with id descending as the tiebreaker, matching
// the SQL ORDER BY so cursoring behaves the same against both stores.
func TestListDocumentsTieBreaksByIDDesc(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()
	wsID := uuid.New()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 3; i++ {
		doc := &types.Document{
			ID:          uuid.New(),
			WorkspaceID: wsID,
			Title:       "same instant",
			MimeType:    "text/plain",
			StorageKey:  "docs/" + uuid.NewString(),
			Status:      types.DocumentStatusPending,
			ContentHash: uuid.NewString(),
		}
		require.NoError(t, m.CreateDocument(ctx, doc))
		m.documents[doc.ID].CreatedAt = created
		ids = append(ids, doc.ID.String())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))

	out, err := m.ListDocuments(ctx, wsID, DocumentFilter{Limit: 10})
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i, d := range out {
		assert.Equal(t, ids[i], d.ID.String())
	}
}

func TestListVisibleWorkspacesTieBreaksByIDDesc(t *testing.T) {
	m := NewMockStore()
	ctx := context.Background()
	owner := uuid.New()
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var ids []string
	for i := 0; i < 3; i++ {
		ws := &types.Workspace{
			ID:          uuid.New(),
			Name:        "ws-" + uuid.NewString(),
			OwnerUserID: owner,
			Visibility:  types.VisibilityPrivate,
			FTSLanguage: "spanish",
		}
		require.NoError(t, m.CreateWorkspace(ctx, ws))
		m.workspaces[ws.ID].CreatedAt = created
		ids = append(ids, ws.ID.String())
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))

	p := types.Principal{UserID: owner, Role: types.RoleEmployee, Active: true}
	out, err := m.ListVisibleWorkspaces(ctx, p, false, Page{Limit: 10})
	require.NoError(t, err)
	require.Len(t, out, 3)
	for i, w := range out {
		assert.Equal(t, ids[i], w.ID.String())
	}
}
