// Package objstore stores raw document payloads in S3 or any S3-compatible
// backend. Keys are opaque; callers derive them from workspace and document
// ids. A memory-backed store covers tests and single-node local runs.
package objstore
