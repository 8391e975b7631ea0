package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/quillback/quill/pkg/types"
)

// Sentinel errors translated from the database layer. Services map these
// onto the client-facing taxonomy.
var (
	ErrNotFound      = errors.New("not found")
	ErrUniqueViolation = errors.New("unique violation")
)

// DocumentFilter narrows ListDocuments
type DocumentFilter struct {
	Status         types.DocumentStatus // empty = any
	Tag            string               // empty = any
	TitleQuery     string               // empty = no full-text filter
	IncludeDeleted bool                 // admin override
	Limit          int
	Offset         int
}

// Page bounds a deterministic listing
type Page struct {
	Limit  int
	Offset int
}

// Store defines the interface for Quill's persistent state.
// Implemented by Postgres-backed storage; tests substitute mocks.
type Store interface {
	// Users
	CreateUser(ctx context.Context, user *types.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*types.User, error)
	GetUserByEmail(ctx context.Context, email string) (*types.User, error)
	ListActiveUsers(ctx context.Context, ids []uuid.UUID) ([]*types.User, error)
	SetUserActive(ctx context.Context, id uuid.UUID, active bool) error

	// Workspaces
	CreateWorkspace(ctx context.Context, ws *types.Workspace) error
	GetWorkspace(ctx context.Context, id uuid.UUID) (*types.Workspace, error)
	ListVisibleWorkspaces(ctx context.Context, p types.Principal, includeArchived bool, page Page) ([]*types.Workspace, error)
	UpdateWorkspace(ctx context.Context, ws *types.Workspace) error
	SetWorkspaceArchived(ctx context.Context, id uuid.UUID, archived bool) error
	SetWorkspaceSharing(ctx context.Context, workspaceID uuid.UUID, userIDs []uuid.UUID, vis types.Visibility) error
	GetACLMembers(ctx context.Context, workspaceID uuid.UUID) ([]uuid.UUID, error)

	// Documents
	CreateDocument(ctx context.Context, doc *types.Document) error
	GetDocument(ctx context.Context, workspaceID, id uuid.UUID) (*types.Document, error)
	GetDocumentByHash(ctx context.Context, workspaceID uuid.UUID, hash string) (*types.Document, error)
	ListDocuments(ctx context.Context, workspaceID uuid.UUID, filter DocumentFilter) ([]*types.Document, error)
	ClaimDocument(ctx context.Context, id uuid.UUID) (bool, error)
	FailDocument(ctx context.Context, id uuid.UUID, message string) error
	ResetDocumentForReprocess(ctx context.Context, workspaceID, id uuid.UUID) error
	SoftDeleteDocument(ctx context.Context, workspaceID, id uuid.UUID) error
	SetDocumentMetadata(ctx context.Context, id uuid.UUID, metadata map[string]string) error
	CountDocumentsByStatus(ctx context.Context) (map[types.DocumentStatus]int, error)

	// Chunks
	PersistChunks(ctx context.Context, documentID uuid.UUID, chunks []*types.Chunk, metadata map[string]string) error
	CountChunks(ctx context.Context, documentID uuid.UUID) (int, error)
	DeleteChunks(ctx context.Context, documentID uuid.UUID) error

	// Retrieval
	DenseSearch(ctx context.Context, workspaceID uuid.UUID, embedding []float32, limit int) ([]types.ScoredChunk, error)
	SparseSearch(ctx context.Context, workspaceID uuid.UUID, language, query string, limit int) ([]types.ScoredChunk, error)

	// Audit
	AppendAudit(ctx context.Context, event *types.AuditEvent) error

	// Utility
	Ping(ctx context.Context) error
	Close()
}
