// Package document manages the document lifecycle inside a workspace:
// admission with content-hash deduplication, reprocessing, and soft
// deletion. The state machine PENDING -> PROCESSING -> READY|FAILED is
// driven from here and from the ingestion workers.
package document
