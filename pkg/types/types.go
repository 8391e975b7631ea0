package types

import (
	"time"

	"github.com/google/uuid"
)

// Role defines what a user is allowed to do service-wide
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// User represents an account that can own and access workspaces
type User struct {
	ID        uuid.UUID
	Email     string // unique, compared case-insensitively
	Role      Role
	Active    bool
	CreatedAt time.Time
}

// Principal is the authenticated identity an operation runs as. It is
// resolved by the identity collaborator before the core is invoked.
type Principal struct {
	UserID uuid.UUID
	Role   Role
	Active bool
}

// IsAdmin reports whether the principal carries the admin role
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Visibility defines who may read a workspace
type Visibility string

const (
	VisibilityPrivate Visibility = "PRIVATE"
	VisibilityOrgRead Visibility = "ORG_READ"
	VisibilityShared  Visibility = "SHARED"
)

// Workspace is the tenant-isolating container of documents and the unit of
// authorization
type Workspace struct {
	ID          uuid.UUID
	Name        string
	Description string
	OwnerUserID uuid.UUID
	Visibility  Visibility
	// FTSLanguage selects the full-text search configuration for the
	// sparse retrieval channel. Validated against the configured allowlist.
	FTSLanguage string
	ArchivedAt  *time.Time
	CreatedAt   time.Time
}

// Archived reports whether the workspace has been archived
func (w *Workspace) Archived() bool {
	return w.ArchivedAt != nil
}

// ACLEntry grants a user read access to a SHARED workspace
type ACLEntry struct {
	WorkspaceID uuid.UUID
	UserID      uuid.UUID
	AccessLevel AccessLevel
	CreatedAt   time.Time
}

// AccessLevel is the access granted by an ACL entry
type AccessLevel string

const (
	AccessLevelRead AccessLevel = "READ"
)

// DocumentStatus represents the lifecycle state of a document
type DocumentStatus string

const (
	DocumentStatusPending    DocumentStatus = "PENDING"
	DocumentStatusProcessing DocumentStatus = "PROCESSING"
	DocumentStatusReady      DocumentStatus = "READY"
	DocumentStatusFailed     DocumentStatus = "FAILED"
)

// Document represents an uploaded or ingested source of chunks
type Document struct {
	ID               uuid.UUID
	WorkspaceID      uuid.UUID
	Title            string
	Source           string
	MimeType         string
	StorageKey       string
	Status           DocumentStatus
	ErrorMessage     string
	Tags             []string
	ContentHash      string
	Metadata         map[string]string
	UploadedByUserID uuid.UUID
	CreatedAt        time.Time
	DeletedAt        *time.Time
}

// Deleted reports whether the document has been soft-deleted
func (d *Document) Deleted() bool {
	return d.DeletedAt != nil
}

// EmbeddingDim is the fixed dimension of chunk embeddings
const EmbeddingDim = 768

// Chunk is a bounded fragment of a document's text plus its embedding; the
// unit of retrieval
type Chunk struct {
	ID         uuid.UUID
	DocumentID uuid.UUID
	ChunkIndex int
	Content    string
	Embedding  []float32
	Metadata   map[string]string
	CreatedAt  time.Time
}

// ScoredChunk is a retrieval result: a chunk with its fused score, parent
// document metadata, and the channel(s) that produced it
type ScoredChunk struct {
	ChunkID           uuid.UUID
	DocumentID        uuid.UUID
	DocumentTitle     string
	DocumentCreatedAt time.Time
	WorkspaceID       uuid.UUID
	ChunkIndex        int
	Content           string
	Score             float64
	Source            RetrievalSource
}

// RetrievalSource identifies which retrieval channel(s) produced a result
type RetrievalSource string

const (
	RetrievalSourceDense  RetrievalSource = "dense"
	RetrievalSourceSparse RetrievalSource = "sparse"
	RetrievalSourceBoth   RetrievalSource = "both"
)

// AuditEvent is one append-only row per mutating operation
type AuditEvent struct {
	ID        uuid.UUID
	Actor     uuid.UUID
	Action    string
	TargetID  uuid.UUID
	Metadata  map[string]string
	CreatedAt time.Time
}

// Audit actions recorded by the registry, lifecycle manager, and generator
const (
	AuditWorkspaceCreate    = "workspace.create"
	AuditWorkspaceUpdate    = "workspace.update"
	AuditWorkspaceArchive   = "workspace.archive"
	AuditWorkspaceUnarchive = "workspace.unarchive"
	AuditWorkspacePublish   = "workspace.publish"
	AuditWorkspaceShare     = "workspace.share"
	AuditDocumentCreate     = "document.create"
	AuditDocumentReprocess  = "document.reprocess"
	AuditDocumentDelete     = "document.delete"
	AuditDocumentTransition = "document.transition"
	AuditAnswerGenerated    = "answer.generated"
)

// IngestJob is the queue payload carried from the API to the worker
type IngestJob struct {
	DocumentID  uuid.UUID `json:"document_id"`
	WorkspaceID uuid.UUID `json:"workspace_id"`
	Attempt     int       `json:"attempt"`
}

// Citation references a chunk that contributed to an answer's context
type Citation struct {
	ChunkID       uuid.UUID `json:"chunk_id"`
	DocumentID    uuid.UUID `json:"document_id"`
	DocumentTitle string    `json:"document_title"`
	ChunkIndex    int       `json:"chunk_index"`
	Score         float64   `json:"score"`
}
