package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/quillback/quill/pkg/answer"
	"github.com/quillback/quill/pkg/api"
	"github.com/quillback/quill/pkg/config"
	"github.com/quillback/quill/pkg/document"
	"github.com/quillback/quill/pkg/embed"
	"github.com/quillback/quill/pkg/ingest"
	"github.com/quillback/quill/pkg/llm"
	"github.com/quillback/quill/pkg/log"
	"github.com/quillback/quill/pkg/metrics"
	"github.com/quillback/quill/pkg/objstore"
	"github.com/quillback/quill/pkg/queue"
	"github.com/quillback/quill/pkg/retrieval"
	"github.com/quillback/quill/pkg/retry"
	"github.com/quillback/quill/pkg/store"
	"github.com/quillback/quill/pkg/types"
	"github.com/quillback/quill/pkg/workspace"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the Quill HTTP API",
	Long: `Run the HTTP API: workspace management, document admission, and
question answering. Document processing itself happens in the worker
process; the API only enqueues ingestion jobs.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		initLogging(cfg)
		metrics.SetVersion(Version)

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		b, err := openBackends(ctx, cfg)
		if err != nil {
			return err
		}
		defer b.Close()

		registry := workspace.NewRegistry(b.Store, cfg)
		documents := document.NewLifecycle(b.Store, b.Objects, b.Queue, registry, b.Extractors, cfg)
		generator := answer.NewGenerator(b.Store, registry, b.Retriever, b.LLM, cfg)
		srv := api.NewServer(registry, documents, generator, b.Store, cfg)

		go watchStats(ctx, b.Queue, b.Store)

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		log.WithComponent("main").Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

// backends holds the shared infrastructure both processes need
type backends struct {
	Store      *store.PGStore
	Queue      *queue.RedisQueue
	Objects    objstore.ObjectStore
	Embedder   embed.Embedder
	LLM        llm.LLM
	Retriever  *retrieval.Retriever
	Extractors *ingest.ExtractorRegistry
}

func (b *backends) Close() {
	if b.Queue != nil {
		_ = b.Queue.Close()
	}
	if b.Store != nil {
		b.Store.Close()
	}
}

func openBackends(ctx context.Context, cfg *config.Config) (*backends, error) {
	st, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	metrics.UpdateComponent("postgres", true, "")

	q, err := queue.NewRedisQueue(ctx, cfg.RedisURL)
	if err != nil {
		st.Close()
		return nil, err
	}
	metrics.UpdateComponent("redis", true, "")

	objects, err := objstore.NewS3Store(ctx, objstore.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		Endpoint:        cfg.S3Endpoint,
		AccessKeyID:     cfg.S3AccessKey,
		SecretAccessKey: cfg.S3SecretKey,
		ForcePathStyle:  cfg.S3Endpoint != "",
	})
	if err != nil {
		_ = q.Close()
		st.Close()
		return nil, err
	}

	embedder := buildEmbedder(cfg)
	model := buildLLM(cfg)
	retriever := retrieval.NewRetrieverWithOptions(st, embedder, buildReranker(cfg, embedder), retrieval.Options{
		Hybrid: cfg.EnableHybrid,
		RRFK:   cfg.RRFK,
	})

	return &backends{
		Store:      st,
		Queue:      q,
		Objects:    objects,
		Embedder:   embedder,
		LLM:        model,
		Retriever:  retriever,
		Extractors: ingest.NewExtractorRegistry(),
	}, nil
}

// buildEmbedder assembles the provider chain: cache on the outside so the
// rate limit and breaker only see misses.
func buildEmbedder(cfg *config.Config) embed.Embedder {
	if cfg.FakeEmbeddings {
		log.WithComponent("main").Warn().Msg("using fake embeddings")
		return embed.NewFakeEmbedder()
	}
	burst := int(cfg.EmbeddingRatePerSec)
	if burst < 1 {
		burst = 1
	}
	var e embed.Embedder = embed.NewOpenAIEmbedder(cfg.EmbeddingProviderKey, cfg.EmbeddingBaseURL, cfg.EmbeddingModel).
		WithRetryPolicy(retryPolicy(cfg))
	e = embed.NewGuardedEmbedder(e, cfg.EmbeddingRatePerSec, burst)
	return embed.NewCachedEmbedder(e, cfg.EmbeddingCacheSize, cfg.EmbeddingCacheTTL)
}

func buildLLM(cfg *config.Config) llm.LLM {
	if cfg.FakeLLM {
		log.WithComponent("main").Warn().Msg("using fake llm")
		return llm.NewFakeLLM()
	}
	return llm.NewOpenAIClient(cfg.LLMProviderKey, cfg.LLMBaseURL, cfg.LLMModel).
		WithRetryPolicy(retryPolicy(cfg))
}

func retryPolicy(cfg *config.Config) retry.Policy {
	return retry.Policy{
		MaxAttempts: cfg.RetryMaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
	}
}

func buildReranker(cfg *config.Config, embedder embed.Embedder) retrieval.Reranker {
	switch cfg.RerankMode {
	case config.RerankDisabled:
		return retrieval.NopReranker{}
	case config.RerankModel:
		return retrieval.NewModelReranker(retrieval.NewEmbeddingScorer(embedder))
	default:
		return retrieval.HeuristicReranker{}
	}
}

// watchStats keeps the queue depth and document gauges and the redis health
// component current.
func watchStats(ctx context.Context, q *queue.RedisQueue, st store.Store) {
	statuses := []types.DocumentStatus{
		types.DocumentStatusPending,
		types.DocumentStatusProcessing,
		types.DocumentStatusReady,
		types.DocumentStatusFailed,
	}
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		depth, err := q.Depth(ctx)
		if err != nil {
			metrics.UpdateComponent("redis", false, err.Error())
		} else {
			metrics.UpdateComponent("redis", true, "")
			metrics.QueueDepth.Set(float64(depth))
		}
		counts, err := st.CountDocumentsByStatus(ctx)
		if err != nil {
			log.WithComponent("main").Warn().Err(err).Msg("document stats query failed")
			continue
		}
		for _, s := range statuses {
			metrics.DocumentsTotal.WithLabelValues(string(s)).Set(float64(counts[s]))
		}
	}
}

func initLogging(cfg *config.Config) {
	log.Init(log.Config{
		Level:      log.Level(os.Getenv("LOG_LEVEL")),
		JSONOutput: cfg.Production(),
	})
}
