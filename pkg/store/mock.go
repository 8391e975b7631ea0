package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quillback/quill/pkg/types"
)

// MockStore is an in-memory Store used by service tests. Dense search ranks
// by dot product against stored embeddings; sparse search does naive term
// matching. Both honor workspace scoping the same way the SQL does.
type MockStore struct {
	mu         sync.Mutex
	users      map[uuid.UUID]*types.User
	workspaces map[uuid.UUID]*types.Workspace
	acl        map[uuid.UUID][]uuid.UUID
	documents  map[uuid.UUID]*types.Document
	chunks     map[uuid.UUID][]*types.Chunk // by document id
	audits     []*types.AuditEvent
}

var _ Store = (*MockStore)(nil)

func NewMockStore() *MockStore {
	return &MockStore{
		users:      make(map[uuid.UUID]*types.User),
		workspaces: make(map[uuid.UUID]*types.Workspace),
		acl:        make(map[uuid.UUID][]uuid.UUID),
		documents:  make(map[uuid.UUID]*types.Document),
		chunks:     make(map[uuid.UUID][]*types.Chunk),
	}
}

func (m *MockStore) CreateUser(_ context.Context, user *types.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, user.Email) {
			return ErrUniqueViolation
		}
	}
	cp := *user
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.users[cp.ID] = &cp
	return nil
}

func (m *MockStore) GetUser(_ context.Context, id uuid.UUID) (*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockStore) GetUserByEmail(_ context.Context, email string) (*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MockStore) ListActiveUsers(_ context.Context, ids []uuid.UUID) ([]*types.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok && u.Active {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *MockStore) SetUserActive(_ context.Context, id uuid.UUID, active bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return ErrNotFound
	}
	u.Active = active
	return nil
}

func (m *MockStore) CreateWorkspace(_ context.Context, ws *types.Workspace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, w := range m.workspaces {
		if w.OwnerUserID == ws.OwnerUserID && w.Name == ws.Name {
			return ErrUniqueViolation
		}
	}
	cp := *ws
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.workspaces[cp.ID] = &cp
	return nil
}

func (m *MockStore) GetWorkspace(_ context.Context, id uuid.UUID) (*types.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workspaces[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (m *MockStore) ListVisibleWorkspaces(_ context.Context, p types.Principal, includeArchived bool, page Page) ([]*types.Workspace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.Workspace
	for _, w := range m.workspaces {
		if !includeArchived && w.Archived() {
			continue
		}
		visible := p.IsAdmin() || w.OwnerUserID == p.UserID || w.Visibility == types.VisibilityOrgRead
		if !visible && w.Visibility == types.VisibilityShared {
			for _, id := range m.acl[w.ID] {
				if id == p.UserID {
					visible = true
					break
				}
			}
		}
		if visible {
			cp := *w
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return paginate(out, page), nil
}

func (m *MockStore) UpdateWorkspace(_ context.Context, ws *types.Workspace) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.workspaces[ws.ID]
	if !ok {
		return ErrNotFound
	}
	for _, w := range m.workspaces {
		if w.ID != ws.ID && w.OwnerUserID == cur.OwnerUserID && w.Name == ws.Name {
			return ErrUniqueViolation
		}
	}
	cur.Name = ws.Name
	cur.Description = ws.Description
	cur.FTSLanguage = ws.FTSLanguage
	return nil
}

func (m *MockStore) SetWorkspaceArchived(_ context.Context, id uuid.UUID, archived bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workspaces[id]
	if !ok {
		return ErrNotFound
	}
	if archived {
		now := time.Now()
		w.ArchivedAt = &now
	} else {
		w.ArchivedAt = nil
	}
	return nil
}

// SetWorkspaceSharing applies the ACL and the visibility under one lock,
// mirroring the single transaction of the SQL store.
func (m *MockStore) SetWorkspaceSharing(_ context.Context, workspaceID uuid.UUID, userIDs []uuid.UUID, vis types.Visibility) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workspaces[workspaceID]
	if !ok {
		return ErrNotFound
	}
	m.acl[workspaceID] = append([]uuid.UUID(nil), userIDs...)
	w.Visibility = vis
	return nil
}

func (m *MockStore) GetACLMembers(_ context.Context, workspaceID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]uuid.UUID(nil), m.acl[workspaceID]...), nil
}

func (m *MockStore) CreateDocument(_ context.Context, doc *types.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.documents {
		if d.WorkspaceID == doc.WorkspaceID && d.ContentHash == doc.ContentHash && !d.Deleted() {
			return ErrUniqueViolation
		}
	}
	cp := *doc
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.documents[cp.ID] = &cp
	return nil
}

func (m *MockStore) GetDocument(_ context.Context, workspaceID, id uuid.UUID) (*types.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok || d.WorkspaceID != workspaceID {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *MockStore) GetDocumentByHash(_ context.Context, workspaceID uuid.UUID, hash string) (*types.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range m.documents {
		if d.WorkspaceID == workspaceID && d.ContentHash == hash && !d.Deleted() {
			cp := *d
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MockStore) ListDocuments(_ context.Context, workspaceID uuid.UUID, filter DocumentFilter) ([]*types.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.Document
	for _, d := range m.documents {
		if d.WorkspaceID != workspaceID {
			continue
		}
		if !filter.IncludeDeleted && d.Deleted() {
			continue
		}
		if filter.Status != "" && d.Status != filter.Status {
			continue
		}
		if filter.Tag != "" && !contains(d.Tags, filter.Tag) {
			continue
		}
		if filter.TitleQuery != "" && !strings.Contains(strings.ToLower(d.Title), strings.ToLower(filter.TitleQuery)) {
			continue
		}
		cp := *d
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID.String() > out[j].ID.String()
	})
	return paginate(out, Page{Limit: filter.Limit, Offset: filter.Offset}), nil
}

func (m *MockStore) ClaimDocument(_ context.Context, id uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok || d.Deleted() || d.Status != types.DocumentStatusPending {
		return false, nil
	}
	d.Status = types.DocumentStatusProcessing
	d.ErrorMessage = ""
	return true, nil
}

func (m *MockStore) FailDocument(_ context.Context, id uuid.UUID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok {
		return ErrNotFound
	}
	d.Status = types.DocumentStatusFailed
	d.ErrorMessage = message
	return nil
}

func (m *MockStore) ResetDocumentForReprocess(_ context.Context, workspaceID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok || d.WorkspaceID != workspaceID || d.Deleted() {
		return ErrNotFound
	}
	if d.Status != types.DocumentStatusReady && d.Status != types.DocumentStatusFailed {
		return ErrNotFound
	}
	d.Status = types.DocumentStatusPending
	d.ErrorMessage = ""
	delete(m.chunks, id)
	return nil
}

func (m *MockStore) SoftDeleteDocument(_ context.Context, workspaceID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok || d.WorkspaceID != workspaceID || d.Deleted() {
		return ErrNotFound
	}
	now := time.Now()
	d.DeletedAt = &now
	delete(m.chunks, id)
	return nil
}

func (m *MockStore) SetDocumentMetadata(_ context.Context, id uuid.UUID, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[id]
	if !ok {
		return ErrNotFound
	}
	if d.Metadata == nil {
		d.Metadata = map[string]string{}
	}
	for k, v := range metadata {
		d.Metadata[k] = v
	}
	return nil
}

func (m *MockStore) CountDocumentsByStatus(context.Context) (map[types.DocumentStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[types.DocumentStatus]int)
	for _, d := range m.documents {
		if d.Deleted() {
			continue
		}
		out[d.Status]++
	}
	return out, nil
}

func (m *MockStore) PersistChunks(_ context.Context, documentID uuid.UUID, chunks []*types.Chunk, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.documents[documentID]
	if !ok || d.Deleted() {
		return ErrNotFound
	}
	cps := make([]*types.Chunk, 0, len(chunks))
	for _, c := range chunks {
		cp := *c
		cps = append(cps, &cp)
	}
	m.chunks[documentID] = cps
	d.Status = types.DocumentStatusReady
	d.ErrorMessage = ""
	if d.Metadata == nil {
		d.Metadata = map[string]string{}
	}
	for k, v := range metadata {
		d.Metadata[k] = v
	}
	return nil
}

func (m *MockStore) CountChunks(_ context.Context, documentID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.chunks[documentID]), nil
}

func (m *MockStore) DeleteChunks(_ context.Context, documentID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chunks, documentID)
	return nil
}

func (m *MockStore) DenseSearch(_ context.Context, workspaceID uuid.UUID, embedding []float32, limit int) ([]types.ScoredChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []types.ScoredChunk
	for docID, cs := range m.chunks {
		d, ok := m.documents[docID]
		if !ok || d.WorkspaceID != workspaceID || d.Deleted() || d.Status != types.DocumentStatusReady {
			continue
		}
		for _, c := range cs {
			out = append(out, types.ScoredChunk{
				ChunkID:           c.ID,
				DocumentID:        docID,
				DocumentTitle:     d.Title,
				DocumentCreatedAt: d.CreatedAt,
				WorkspaceID:       workspaceID,
				ChunkIndex:        c.ChunkIndex,
				Content:           c.Content,
				Score:             dot(embedding, c.Embedding),
				Source:            types.RetrievalSourceDense,
			})
		}
	}
	sortScored(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockStore) SparseSearch(_ context.Context, workspaceID uuid.UUID, _ string, query string, limit int) ([]types.ScoredChunk, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	terms := strings.Fields(strings.ToLower(query))
	var out []types.ScoredChunk
	for docID, cs := range m.chunks {
		d, ok := m.documents[docID]
		if !ok || d.WorkspaceID != workspaceID || d.Deleted() || d.Status != types.DocumentStatusReady {
			continue
		}
		for _, c := range cs {
			content := strings.ToLower(c.Content)
			var hits int
			for _, t := range terms {
				if strings.Contains(content, t) {
					hits++
				}
			}
			if hits == 0 {
				continue
			}
			out = append(out, types.ScoredChunk{
				ChunkID:           c.ID,
				DocumentID:        docID,
				DocumentTitle:     d.Title,
				DocumentCreatedAt: d.CreatedAt,
				WorkspaceID:       workspaceID,
				ChunkIndex:        c.ChunkIndex,
				Content:           c.Content,
				Score:             float64(hits),
				Source:            types.RetrievalSourceSparse,
			})
		}
	}
	sortScored(out)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockStore) AppendAudit(_ context.Context, event *types.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *event
	if cp.ID == uuid.Nil {
		cp.ID = uuid.New()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now()
	}
	m.audits = append(m.audits, &cp)
	return nil
}

// AuditEvents returns a snapshot of recorded events, for assertions
func (m *MockStore) AuditEvents() []*types.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*types.AuditEvent(nil), m.audits...)
}

func (m *MockStore) Ping(context.Context) error { return nil }
func (m *MockStore) Close()                     {}

func paginate[T any](items []T, page Page) []T {
	if page.Offset > 0 {
		if page.Offset >= len(items) {
			return nil
		}
		items = items[page.Offset:]
	}
	if page.Limit > 0 && len(items) > page.Limit {
		items = items[:page.Limit]
	}
	return items
}

func contains(xs []string, want string) bool {
	for _, x := range xs {
		if x == want {
			return true
		}
	}
	return false
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func sortScored(xs []types.ScoredChunk) {
	sort.Slice(xs, func(i, j int) bool {
		if xs[i].Score != xs[j].Score {
			return xs[i].Score > xs[j].Score
		}
		if xs[i].DocumentID != xs[j].DocumentID {
			return xs[i].DocumentID.String() < xs[j].DocumentID.String()
		}
		return xs[i].ChunkIndex < xs[j].ChunkIndex
	})
}
