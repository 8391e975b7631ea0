package llm

import (
	"context"
)

// Request is one chat completion call: a system prompt plus the user turn
type Request struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// LLM generates answers. GenerateStream pushes tokens to the callback as
// they arrive; returning an error from the callback aborts the stream.
type LLM interface {
	Generate(ctx context.Context, req Request) (string, error)
	GenerateStream(ctx context.Context, req Request, onToken func(token string) error) error
	Model() string
}
