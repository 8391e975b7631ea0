package answer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/quillback/quill/pkg/config"
	"github.com/quillback/quill/pkg/errdefs"
	"github.com/quillback/quill/pkg/guardrail"
	"github.com/quillback/quill/pkg/llm"
	"github.com/quillback/quill/pkg/log"
	"github.com/quillback/quill/pkg/metrics"
	"github.com/quillback/quill/pkg/retrieval"
	"github.com/quillback/quill/pkg/store"
	"github.com/quillback/quill/pkg/types"
	"github.com/quillback/quill/pkg/workspace"
)

// maxQuestionChars bounds the question length
const maxQuestionChars = 4000

// noSourcesAnswer is returned when retrieval finds nothing usable
const noSourcesAnswer = "I could not find anything in this workspace's documents that answers the question."

// systemPrompt frames every generation call
const systemPrompt = "You answer questions strictly from the provided document excerpts."

// Ask is one answer request
type Ask struct {
	Question string
	TopK     int
}

// Result is a buffered answer with its citations
type Result struct {
	Answer  string
	Sources []types.Citation
}

// EventType tags streaming events
type EventType string

const (
	EventSources EventType = "sources"
	EventToken   EventType = "token"
	EventDone    EventType = "done"
	EventError   EventType = "error"
)

// Event is one streaming answer event. Exactly one terminal event (done or
// error) ends every stream.
type Event struct {
	Type    EventType
	Sources []types.Citation
	Token   string
	Answer  string
	Err     error
}

// Generator produces grounded answers over a workspace's documents
type Generator struct {
	store     store.Store
	registry  *workspace.Registry
	retriever *retrieval.Retriever
	llm       llm.LLM
	cfg       *config.Config
}

func NewGenerator(st store.Store, registry *workspace.Registry, retriever *retrieval.Retriever, model llm.LLM, cfg *config.Config) *Generator {
	return &Generator{store: st, registry: registry, retriever: retriever, llm: model, cfg: cfg}
}

// Search authorizes, screens, and retrieves without generation. It powers
// the query endpoint and the shared front half of both answer paths.
func (g *Generator) Search(ctx context.Context, p types.Principal, workspaceID uuid.UUID, ask Ask) ([]types.ScoredChunk, error) {
	ws, err := g.registry.AuthorizeRead(ctx, p, workspaceID)
	if err != nil {
		return nil, err
	}

	question := strings.TrimSpace(ask.Question)
	if question == "" {
		return nil, errdefs.BadRequest("query is required")
	}
	if utf8.RuneCountInString(question) > maxQuestionChars {
		return nil, errdefs.BadRequest(fmt.Sprintf("query exceeds %d characters", maxQuestionChars))
	}

	if findings := guardrail.Scan(question); len(findings) > 0 {
		metrics.InjectionFlaggedTotal.WithLabelValues("query").Inc()
		metrics.PolicyRefusalTotal.Inc()
		log.WithComponent("answer").Warn().
			Str("workspace_id", workspaceID.String()).
			Str("findings", guardrail.Describe(findings)).
			Msg("query refused by injection guard")
		return nil, errdefs.PolicyRefusal("the query contains instructions the service will not follow")
	}

	chunks, err := g.retriever.Retrieve(ctx, ws.ID, ws.FTSLanguage, question, ask.TopK)
	if err != nil {
		return nil, errdefs.UpstreamError("retrieval failed", err)
	}
	return chunks, nil
}

// prepare runs Search and builds the prompt. Shared by the buffered and
// streaming paths.
func (g *Generator) prepare(ctx context.Context, p types.Principal, workspaceID uuid.UUID, ask Ask) (string, retrieval.BuiltContext, error) {
	chunks, err := g.Search(ctx, p, workspaceID, ask)
	if err != nil {
		return "", retrieval.BuiltContext{}, err
	}
	question := strings.TrimSpace(ask.Question)

	built := retrieval.BuildContext(chunks, g.cfg.MaxContextChars)
	if len(built.Included) == 0 {
		return question, built, nil
	}

	prompt, err := renderPrompt(built.Text, question)
	if err != nil {
		return "", retrieval.BuiltContext{}, errdefs.Internal("failed to render prompt", err)
	}
	return prompt, built, nil
}

// Answer runs the buffered path: retrieve, generate, return text plus
// citations. Without usable context it returns a fixed answer and no
// sources instead of letting the model guess.
func (g *Generator) Answer(ctx context.Context, p types.Principal, workspaceID uuid.UUID, ask Ask) (*Result, error) {
	prompt, built, err := g.prepare(ctx, p, workspaceID, ask)
	if err != nil {
		return nil, err
	}

	if len(built.Included) == 0 {
		metrics.AnswerWithoutSourcesTotal.Inc()
		g.auditAnswer(ctx, p, workspaceID, 0)
		return &Result{Answer: noSourcesAnswer}, nil
	}

	text, err := g.llm.Generate(ctx, llm.Request{System: systemPrompt, User: prompt})
	if err != nil {
		return nil, upstream(err)
	}

	g.auditAnswer(ctx, p, workspaceID, len(built.Included))
	return &Result{Answer: text, Sources: citations(built.Included)}, nil
}

// AnswerStream runs the streaming path, pushing events to emit in order:
// one sources event, zero or more tokens, then exactly one done or error.
// Failures before the first event return without emitting so the transport
// can answer with a plain error response; a failing emit (client gone)
// cancels the upstream generation.
func (g *Generator) AnswerStream(ctx context.Context, p types.Principal, workspaceID uuid.UUID, ask Ask, emit func(Event) error) error {
	prompt, built, err := g.prepare(ctx, p, workspaceID, ask)
	if err != nil {
		return err
	}

	sources := citations(built.Included)
	if err := emit(Event{Type: EventSources, Sources: sources}); err != nil {
		metrics.StreamCancellationsTotal.Inc()
		return err
	}

	if len(built.Included) == 0 {
		metrics.AnswerWithoutSourcesTotal.Inc()
		if err := emit(Event{Type: EventToken, Token: noSourcesAnswer}); err != nil {
			metrics.StreamCancellationsTotal.Inc()
			return err
		}
		g.auditAnswer(ctx, p, workspaceID, 0)
		return emit(Event{Type: EventDone, Answer: noSourcesAnswer})
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var b strings.Builder
	var emitFailed bool
	streamErr := g.llm.GenerateStream(ctx, llm.Request{System: systemPrompt, User: prompt}, func(token string) error {
		b.WriteString(token)
		if err := emit(Event{Type: EventToken, Token: token}); err != nil {
			// client disconnected; stop the provider call
			emitFailed = true
			cancel()
			return err
		}
		return nil
	})
	if streamErr != nil {
		if emitFailed || errors.Is(streamErr, context.Canceled) {
			metrics.StreamCancellationsTotal.Inc()
			return streamErr
		}
		wrapped := upstream(streamErr)
		_ = emit(Event{Type: EventError, Err: wrapped})
		return wrapped
	}

	g.auditAnswer(ctx, p, workspaceID, len(sources))
	return emit(Event{Type: EventDone, Answer: b.String()})
}

func (g *Generator) auditAnswer(ctx context.Context, p types.Principal, workspaceID uuid.UUID, sources int) {
	event := &types.AuditEvent{
		Actor:    p.UserID,
		Action:   types.AuditAnswerGenerated,
		TargetID: workspaceID,
		Metadata: map[string]string{
			"prompt_version": PromptVersion,
			"sources":        fmt.Sprintf("%d", sources),
		},
	}
	if err := g.store.AppendAudit(ctx, event); err != nil {
		log.WithComponent("answer").Error().Err(err).Msg("failed to append audit event")
	}
}

func citations(chunks []types.ScoredChunk) []types.Citation {
	out := make([]types.Citation, len(chunks))
	for i, c := range chunks {
		out[i] = types.Citation{
			ChunkID:       c.ChunkID,
			DocumentID:    c.DocumentID,
			DocumentTitle: c.DocumentTitle,
			ChunkIndex:    c.ChunkIndex,
			Score:         c.Score,
		}
	}
	return out
}

// upstream classifies a provider failure into the client-facing taxonomy
func upstream(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return errdefs.UpstreamTimeout("the model provider timed out", err)
	default:
		return errdefs.UpstreamError("the model provider failed", err)
	}
}
