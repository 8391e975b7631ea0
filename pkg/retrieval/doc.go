/*
Package retrieval implements hybrid search over a workspace's chunks.

	         query
	           │
	   ┌───────┴────────┐
	   ▼                ▼
	 dense            sparse
	 (pgvector)       (postgres fts)
	   └───────┬────────┘
	           ▼
	   reciprocal rank fusion
	           ▼
	        rerank
	           ▼
	     context builder

The dense channel is required; the sparse channel degrades to dense-only on
failure. Fusion ties break deterministically on (document id, chunk index).
*/
package retrieval
