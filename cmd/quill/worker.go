package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/quillback/quill/pkg/config"
	"github.com/quillback/quill/pkg/ingest"
	"github.com/quillback/quill/pkg/log"
	"github.com/quillback/quill/pkg/metrics"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the ingestion worker pool",
	Long: `Run the ingestion worker pool. Workers drain the Redis queue and
process documents end to end: fetch the stored payload, extract text,
chunk, embed, and persist. Multiple worker processes can run side by
side; the claim step guarantees each document is processed once.`,
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

		w := ingest.NewWorker(b.Store, b.Queue, b.Objects, b.Embedder, b.Extractors, ingest.WorkerConfig{
			Concurrency:    cfg.WorkerConcurrency,
			JobTimeout:     cfg.JobTimeout,
			MaxBodyBytes:   cfg.MaxUploadBytes,
			EmbedBatchSize: cfg.EmbeddingBatchSize,
			Chunker:        ingest.DefaultChunkerConfig(),
		})
		w.Start()

		<-ctx.Done()
		log.WithComponent("main").Info().Msg("draining workers")
		w.Stop()
		return nil
	},
}
