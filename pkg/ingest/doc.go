/*
Package ingest implements the document processing pipeline.

	queue ─▶ claim ─▶ fetch ─▶ extract ─▶ chunk ─▶ embed ─▶ persist
	           │                                              │
	           └── compare-and-set on PENDING                 └── atomic, READY

Workers claim a document with a compare-and-set from PENDING to PROCESSING,
so a job observed by two workers runs once. A document deleted while its job
is in flight aborts the job and leaves no chunks behind. Failures mark the
document FAILED with an operator-safe message and keep the service running.
*/
package ingest
