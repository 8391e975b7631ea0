package llm

import (
	"context"
	"strings"
)

// FakeLLM returns a canned answer derived from the request, split into
// word tokens when streaming. Used in tests and when FAKE_LLM is set.
type FakeLLM struct {
	// Answer overrides the generated text when non-empty
	Answer string
	// Fail makes every call return this error
	Fail error
}

var _ LLM = (*FakeLLM)(nil)

func NewFakeLLM() *FakeLLM { return &FakeLLM{} }

func (f *FakeLLM) Model() string { return "fake" }

func (f *FakeLLM) answer(req Request) string {
	if f.Answer != "" {
		return f.Answer
	}
	return "Summary of the provided context for: " + req.User
}

func (f *FakeLLM) Generate(ctx context.Context, req Request) (string, error) {
	if f.Fail != nil {
		return "", f.Fail
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return f.answer(req), nil
}

func (f *FakeLLM) GenerateStream(ctx context.Context, req Request, onToken func(string) error) error {
	if f.Fail != nil {
		return f.Fail
	}
	words := strings.Fields(f.answer(req))
	for i, w := range words {
		if err := ctx.Err(); err != nil {
			return err
		}
		token := w
		if i < len(words)-1 {
			token += " "
		}
		if err := onToken(token); err != nil {
			return err
		}
	}
	return nil
}
