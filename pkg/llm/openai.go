package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/quillback/quill/pkg/retry"
)

// OpenAIClient calls the OpenAI chat completions endpoint
type OpenAIClient struct {
	client openai.Client
	model  string
	policy retry.Policy
}

var _ LLM = (*OpenAIClient)(nil)

func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  model,
		policy: retry.DefaultPolicy(),
	}
}

// WithRetryPolicy overrides the backoff policy
func (c *OpenAIClient) WithRetryPolicy(p retry.Policy) *OpenAIClient {
	c.policy = p
	return c
}

func (c *OpenAIClient) Model() string { return c.model }

func (c *OpenAIClient) params(req Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	return params
}

func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	var answer string
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		resp, err := c.client.Chat.Completions.New(ctx, c.params(req))
		if err != nil {
			return classify(err)
		}
		if len(resp.Choices) == 0 {
			return fmt.Errorf("completion returned no choices")
		}
		answer = resp.Choices[0].Message.Content
		return nil
	})
	return answer, err
}

// GenerateStream forwards deltas to onToken as they arrive. Streams are not
// retried: once the first token is out, a retry would duplicate output.
func (c *OpenAIClient) GenerateStream(ctx context.Context, req Request, onToken func(string) error) error {
	stream := c.client.Chat.Completions.NewStreaming(ctx, c.params(req))
	defer func() { _ = stream.Close() }()

	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := onToken(delta); err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return classify(err)
	}
	return nil
}

func classify(err error) error {
	var apiErr *openai.Error
	if !errors.As(err, &apiErr) || !retry.TransientStatus(apiErr.StatusCode) {
		return err
	}
	if apiErr.StatusCode == http.StatusTooManyRequests && apiErr.Response != nil {
		if after := retry.ParseRetryAfter(apiErr.Response.Header.Get("Retry-After")); after > 0 {
			return retry.TransientAfter(err, after)
		}
	}
	return retry.Transient(err)
}
