package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/reachhk/reachbot-go/internal/rag"
	"github.com/reachhk/reachbot-go/internal/source"
)

// TableSummary reports the outcome of one table's sweep.
type TableSummary struct {
	// Table is the source table name.
	Table string
	// Processed is the number of rows embedded and upserted.
	Processed int
	// Skipped is the number of rows dropped after a per-row failure.
	Skipped int
}

// Summary reports the outcome of a full ingestion run.
type Summary struct {
	// Tables holds one entry per swept table, in sweep order.
	Tables []TableSummary
}

// Processed returns the total number of rows upserted across all tables.
func (s *Summary) Processed() int {
	total := 0
	for _, t := range s.Tables {
		total += t.Processed
	}
	return total
}

// Skipped returns the total number of rows dropped across all tables.
func (s *Summary) Skipped() int {
	total := 0
	for _, t := range s.Tables {
		total += t.Skipped
	}
	return total
}

// Job orchestrates the read → format → embed → upsert flow.
type Job struct {
	// reader lists rows from the source tables.
	reader source.Reader
	// embedder converts the formatted sentences into vectors.
	embedder rag.Embedder
	// store persists the embedded documents.
	store rag.VectorStore
	// log is the structured logger.
	log *slog.Logger
}

// NewJob constructs a Job from the provided dependencies.
func NewJob(reader source.Reader, embedder rag.Embedder, store rag.VectorStore, log *slog.Logger) (*Job, error) {
	if reader == nil {
		return nil, fmt.Errorf("ingestion: reader must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Job{reader: reader, embedder: embedder, store: store, log: log}, nil
}

// Run sweeps the given tables in order. A row that fails to embed or upsert
// is logged and skipped; the sweep continues with the next row, so one bad
// row never aborts the run. A table that fails to list aborts the run,
// since that points at the database rather than a single record.
//
// Documents are keyed by the source row's primary key, so a re-run updates
// existing entries in place instead of duplicating them.
func (j *Job) Run(ctx context.Context, tables []string) (*Summary, error) {
	if len(tables) == 0 {
		tables = DefaultTables
	}

	summary := &Summary{}
	for _, table := range tables {
		ts, err := j.runTable(ctx, table)
		if err != nil {
			return summary, err
		}
		summary.Tables = append(summary.Tables, ts)
	}
	return summary, nil
}

// runTable sweeps a single table.
func (j *Job) runTable(ctx context.Context, table string) (TableSummary, error) {
	ts := TableSummary{Table: table}

	records, err := j.reader.Rows(ctx, table)
	if err != nil {
		return ts, fmt.Errorf("ingestion: listing %s: %w", table, err)
	}
	j.log.Info("ingestion: sweeping table",
		slog.String("table", table), slog.Int("rows", len(records)))

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return ts, fmt.Errorf("ingestion: sweep of %s interrupted: %w", table, err)
		}
		if err := j.ingestRow(ctx, table, rec); err != nil {
			ts.Skipped++
			j.log.Warn("ingestion: row skipped",
				slog.String("table", table), slog.String("id", rec.ID), slog.Any("error", err))
			continue
		}
		ts.Processed++
	}

	j.log.Info("ingestion: table done",
		slog.String("table", table), slog.Int("processed", ts.Processed), slog.Int("skipped", ts.Skipped))
	return ts, nil
}

// ingestRow formats, embeds, and upserts a single row.
func (j *Job) ingestRow(ctx context.Context, table string, rec source.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("row has no id")
	}

	content := FormatRow(table, rec)

	embedding, err := j.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embedding: %w", err)
	}

	doc := rag.Document{
		ID:      rec.ID,
		Content: content,
		Metadata: map[string]string{
			"source_table": table,
			"source_id":    rec.ID,
		},
	}
	if err := j.store.Upsert(ctx, []rag.Document{doc}, [][]float32{embedding}); err != nil {
		return fmt.Errorf("upserting: %w", err)
	}
	return nil
}
