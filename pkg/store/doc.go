/*
Package store provides persistent state management for Quill.

All state lives in PostgreSQL: users, workspaces and their ACLs, documents,
chunk embeddings (pgvector), and the append-only audit log. Schema changes
ship as embedded goose migrations applied by the migrate subcommand.

	┌───────────────────────────────┐
	│            Store              │
	│  users / workspaces / acl     │
	│  documents / chunks / audit   │
	└──────────────┬────────────────┘
	               │ pgxpool
	        ┌──────┴───────┐
	        │  PostgreSQL  │
	        │  + pgvector  │
	        └──────────────┘

Both retrieval channels live here too: DenseSearch (cosine over HNSW) and
SparseSearch (full text search with a per-workspace language configuration).
Tenant isolation is enforced in every query by filtering on workspace_id at
the documents join.
*/
package store
