/*
Package log provides structured logging for Quill using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers and configurable log levels. All logs include
timestamps and support filtering by severity level for production debugging.

Context helpers attach the identifiers that matter when tracing a request or
an ingestion job across processes:

	logger := log.WithDocumentID(docID).With().Str("component", "ingest").Logger()
	logger.Info().Int("chunks", n).Msg("document processed")

Initialize once at startup:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
	})

Every 5xx surfaced to a client carries an error_id that is also logged, so a
single grep connects a problem response to its full server-side context.
*/
package log
