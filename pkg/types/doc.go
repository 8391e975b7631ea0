/*
Package types defines the core data structures shared across Quill packages.

The ownership graph is a tree: a Workspace exclusively owns its Documents and
a Document exclusively owns its Chunks. ACL entries are weak cross-references
from workspaces to users, never embedded in the Workspace value. All
relationships are expressed as UUID foreign keys, not back-pointers.

Document lifecycle:

	PENDING ──► PROCESSING ──► READY
	                │            │
	                ▼            │ reprocess
	              FAILED ◄───────┘

Only the ingestion worker transitions PENDING to PROCESSING and onward; the
API re-enters PENDING exclusively through an explicit reprocess. Soft delete
sets DeletedAt and forbids further transitions.
*/
package types
