// Package llm wraps the chat completion provider behind a small interface
// with buffered and streaming modes. The streaming path never retries after
// the first token.
package llm
