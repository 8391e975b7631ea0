package embed

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/quillback/quill/pkg/retry"
	"github.com/quillback/quill/pkg/types"
)

// OpenAIEmbedder calls the OpenAI embeddings endpoint
type OpenAIEmbedder struct {
	client openai.Client
	model  string
	policy retry.Policy
}

var _ Embedder = (*OpenAIEmbedder)(nil)

// NewOpenAIEmbedder builds an embedder for the given model. baseURL
// overrides the endpoint for compatible providers.
func NewOpenAIEmbedder(apiKey, baseURL, model string) *OpenAIEmbedder {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIEmbedder{
		client: openai.NewClient(opts...),
		model:  model,
		policy: retry.DefaultPolicy(),
	}
}

// WithRetryPolicy overrides the backoff policy
func (e *OpenAIEmbedder) WithRetryPolicy(p retry.Policy) *OpenAIEmbedder {
	e.policy = p
	return e
}

func (e *OpenAIEmbedder) Model() string { return e.model }

func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var out [][]float32
	err := retry.Do(ctx, e.policy, func(ctx context.Context) error {
		resp, err := e.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
			Model:      e.model,
			Input:      openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
			Dimensions: openai.Int(types.EmbeddingDim),
		})
		if err != nil {
			return classify(err)
		}
		if len(resp.Data) != len(texts) {
			return fmt.Errorf("embedding count mismatch: got %d want %d", len(resp.Data), len(texts))
		}

		out = make([][]float32, len(texts))
		for _, d := range resp.Data {
			vec := make([]float32, len(d.Embedding))
			for i, v := range d.Embedding {
				vec[i] = float32(v)
			}
			out[d.Index] = vec
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// classify maps provider errors onto the retry taxonomy. A 429 carrying
// Retry-After propagates the provider's delay into the backoff.
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
