package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/reachhk/reachbot-go/internal/embedder"
	"github.com/reachhk/reachbot-go/internal/ingestion"
	"github.com/reachhk/reachbot-go/internal/logging"
	"github.com/reachhk/reachbot-go/internal/source"
)

// NewIngestCmd constructs the `reachbot ingest` command, which embeds the
// platform's source tables into the Qdrant vector store.
func NewIngestCmd() *cobra.Command {
	var dbPath string
	var tables []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Build the knowledge base from the platform database",
		Long: `Read the platform's source tables, render each row into a sentence,
embed it, and upsert the result into the Qdrant vector store.

Documents are keyed by the source row's primary key, so re-running updates
existing entries in place. A row that fails to embed is skipped and the
sweep continues.

Required environment variables:
  HF_API_TOKEN         Hugging Face API token for the embedding model
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: documents)
  SOURCE_DB            SQLite path of the platform database

Examples:
  reachbot ingest --db ./platform.db
  reachbot ingest --db ./platform.db --table campaigns --table regions`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()

			if dbPath == "" {
				dbPath = getEnvOrDefault("SOURCE_DB", "")
			}
			if dbPath == "" {
				return fmt.Errorf("ingest: --db or SOURCE_DB is required")
			}

			if err := embedder.ValidateForRAG(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised",
				slog.String("provider", getEnvOrDefault("EMBEDDING_PROVIDER", "hf")))

			reader, err := source.Open(dbPath)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer reader.Close()

			store, err := buildVectorStore(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer store.Close()

			job, err := ingestion.NewJob(reader, emb, store, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			if len(tables) == 0 {
				tables = ingestion.DefaultTables
			}
			log.Info("starting ingestion", slog.Int("tables", len(tables)))

			summary, err := job.Run(ctx, tables)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			for _, ts := range summary.Tables {
				log.Info("table summary",
					slog.String("table", ts.Table),
					slog.Int("processed", ts.Processed),
					slog.Int("skipped", ts.Skipped),
				)
			}
			log.Info("ingestion complete",
				slog.Int("processed", summary.Processed()),
				slog.Int("skipped", summary.Skipped()),
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite path of the platform database (or SOURCE_DB)")
	cmd.Flags().StringArrayVarP(&tables, "table", "t", nil, "Source table to sweep (repeatable; default: all)")

	return cmd
}
