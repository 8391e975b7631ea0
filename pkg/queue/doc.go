// Package queue provides the ingestion job queue backed by a Redis list.
// The API enqueues one job per admitted document; worker goroutines block
// on Dequeue and process jobs in FIFO order.
package queue
