package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/quillback/quill/pkg/embed"
	"github.com/quillback/quill/pkg/guardrail"
	"github.com/quillback/quill/pkg/log"
	"github.com/quillback/quill/pkg/metrics"
	"github.com/quillback/quill/pkg/objstore"
	"github.com/quillback/quill/pkg/queue"
	"github.com/quillback/quill/pkg/store"
	"github.com/quillback/quill/pkg/types"
)

// defaultEmbedBatch bounds texts per provider call when unconfigured
const defaultEmbedBatch = 64

// WorkerConfig tunes the ingestion pool
type WorkerConfig struct {
	Concurrency    int
	JobTimeout     time.Duration
	MaxBodyBytes   int64
	EmbedBatchSize int
	Chunker        ChunkerConfig
}

// DefaultWorkerConfig returns production settings
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Concurrency:    4,
		JobTimeout:     10 * time.Minute,
		MaxBodyBytes:   25 << 20,
		EmbedBatchSize: defaultEmbedBatch,
		Chunker:        DefaultChunkerConfig(),
	}
}

// Worker drains the ingestion queue: claim, extract, chunk, embed, persist.
// Every state transition goes through the store's compare-and-set so two
// workers never process the same document.
type Worker struct {
	store      store.Store
	queue      queue.Queue
	objects    objstore.ObjectStore
	embedder   embed.Embedder
	extractors *ExtractorRegistry
	cfg        WorkerConfig

	wg     sync.WaitGroup
	stopCh chan struct{}
}

func NewWorker(st store.Store, q queue.Queue, objects objstore.ObjectStore, embedder embed.Embedder, extractors *ExtractorRegistry, cfg WorkerConfig) *Worker {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.EmbedBatchSize <= 0 {
		cfg.EmbedBatchSize = defaultEmbedBatch
	}
	return &Worker{
		store:      st,
		queue:      q,
		objects:    objects,
		embedder:   embedder,
		extractors: extractors,
		cfg:        cfg,
		stopCh:     make(chan struct{}),
	}
}

// Start launches the worker pool. It returns immediately; call Stop to
// drain.
func (w *Worker) Start() {
	log.WithComponent("ingest").Info().
		Int("concurrency", w.cfg.Concurrency).
		Msg("starting ingestion workers")

	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go w.loop(i)
	}
}

// Stop signals the pool and waits for in-flight jobs to finish
func (w *Worker) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	log.WithComponent("ingest").Info().Msg("ingestion workers stopped")
}

func (w *Worker) loop(id int) {
	defer w.wg.Done()
	logger := log.WithComponent("ingest").With().Int("worker", id).Logger()

	for {
		select {
		case <-w.stopCh:
			return
		default:
		}

		job, err := w.queue.Dequeue(context.Background(), 2*time.Second)
		if err != nil {
			if !errors.Is(err, queue.ErrEmpty) {
				logger.Error().Err(err).Msg("failed to dequeue job")
				time.Sleep(time.Second)
			}
			continue
		}

		w.Process(context.Background(), job)
	}
}

// Process runs one ingestion job end to end. Failures mark the document
// FAILED with an operator-safe message; a document deleted mid-flight
// aborts quietly.
func (w *Worker) Process(ctx context.Context, job *types.IngestJob) {
	ctx, cancel := context.WithTimeout(ctx, w.cfg.JobTimeout)
	defer cancel()

	logger := log.WithDocumentID(job.DocumentID.String()).With().
		Str("component", "ingest").
		Str("workspace_id", job.WorkspaceID.String()).
		Logger()

	claimed, err := w.store.ClaimDocument(ctx, job.DocumentID)
	if err != nil {
		logger.Error().Err(err).Msg("failed to claim document")
		return
	}
	if !claimed {
		logger.Debug().Msg("document not claimable, skipping")
		return
	}

	timer := metrics.NewTimer()
	if err := w.run(ctx, job, logger); err != nil {
		metrics.IngestFailuresTotal.Inc()
		logger.Error().Err(err).Msg("ingestion failed")
		failCtx, failCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer failCancel()
		if ferr := w.store.FailDocument(failCtx, job.DocumentID, publicFailure(err)); ferr != nil {
			logger.Error().Err(ferr).Msg("failed to record document failure")
		}
		return
	}
	timer.ObserveDuration(metrics.IngestDuration)
}

func (w *Worker) run(ctx context.Context, job *types.IngestJob, logger zerolog.Logger) error {
	doc, err := w.store.GetDocument(ctx, job.WorkspaceID, job.DocumentID)
	if err != nil {
		return fmt.Errorf("failed to load document: %w", err)
	}

	body, err := w.objects.Get(ctx, doc.StorageKey)
	if err != nil {
		return fmt.Errorf("failed to fetch document payload: %w", err)
	}
	defer func() { _ = body.Close() }()

	text, err := w.extractors.Extract(doc.MimeType, io.LimitReader(body, w.cfg.MaxBodyBytes+1))
	if err != nil {
		return err
	}
	if int64(len(text)) > w.cfg.MaxBodyBytes {
		return fmt.Errorf("document exceeds the size limit")
	}

	metadata := map[string]string{}
	if findings := guardrail.Scan(text); len(findings) > 0 {
		metrics.InjectionFlaggedTotal.WithLabelValues("document").Inc()
		metadata["injection_flagged"] = guardrail.Describe(findings)
		logger.Warn().Str("findings", guardrail.Describe(findings)).
			Msg("injection markers found in document content")
	}

	pieces := Split(text, w.cfg.Chunker)
	if len(pieces) == 0 {
		logger.Info().Msg("document has no extractable content")
		metadata["note"] = "no extractable content"
		return w.store.PersistChunks(ctx, doc.ID, nil, metadata)
	}

	chunks := make([]*types.Chunk, 0, len(pieces))
	for start := 0; start < len(pieces); start += w.cfg.EmbedBatchSize {
		end := start + w.cfg.EmbedBatchSize
		if end > len(pieces) {
			end = len(pieces)
		}
		batch := pieces[start:end]

		vectors, err := w.embedder.EmbedBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("failed to embed chunk batch: %w", err)
		}

		// Bail out between batches if the document was deleted mid-flight
		cur, err := w.store.GetDocument(ctx, job.WorkspaceID, doc.ID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return w.abortDeleted(ctx, doc.ID, logger)
			}
			return err
		}
		if cur.Deleted() {
			return w.abortDeleted(ctx, doc.ID, logger)
		}

		for i, content := range batch {
			chunks = append(chunks, &types.Chunk{
				ID:         uuid.New(),
				DocumentID: doc.ID,
				ChunkIndex: start + i,
				Content:    content,
				Embedding:  vectors[i],
			})
		}
	}

	if err := w.store.PersistChunks(ctx, doc.ID, chunks, metadata); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return w.abortDeleted(ctx, doc.ID, logger)
		}
		return fmt.Errorf("failed to persist chunks: %w", err)
	}

	metrics.ChunksPersistedTotal.Add(float64(len(chunks)))
	logger.Info().Int("chunks", len(chunks)).Msg("document ingested")
	return nil
}

// abortDeleted closes out a document soft-deleted mid-processing: partial
// chunks are purged and the row is marked FAILED with reason "deleted" so
// it never lingers in PROCESSING.
func (w *Worker) abortDeleted(ctx context.Context, id uuid.UUID, logger zerolog.Logger) error {
	logger.Info().Msg("document deleted during ingestion, aborting")
	if err := w.store.DeleteChunks(ctx, id); err != nil {
		return err
	}
	return w.store.FailDocument(ctx, id, "deleted")
}

// publicFailure reduces an internal error to a message safe to show in the
// document's error field.
func publicFailure(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "processing timed out"
	case errors.Is(err, context.Canceled):
		return "processing was interrupted"
	}
	msg := err.Error()
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}
