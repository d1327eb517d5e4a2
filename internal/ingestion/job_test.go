package ingestion

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/reachhk/reachbot-go/internal/rag"
	"github.com/reachhk/reachbot-go/internal/source"
)

// fakeReader implements source.Reader over an in-memory table map.
type fakeReader struct {
	tables map[string][]source.Record
	err    error
}

func (f *fakeReader) Rows(_ context.Context, table string) ([]source.Record, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.tables[table], nil
}

func (f *fakeReader) Close() error { return nil }

// fakeEmbedder implements rag.Embedder and can fail on chosen inputs.
type fakeEmbedder struct {
	// failOn makes Embed fail when the input contains this substring.
	failOn string
	calls  int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.failOn != "" && strings.Contains(text, f.failOn) {
		return nil, errors.New("embedder down")
	}
	return []float32{0.1, 0.2}, nil
}

// fakeStore implements rag.VectorStore and records upserted documents by ID.
type fakeStore struct {
	docs    map[string]rag.Document
	upserts int
	err     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]rag.Document)}
}

func (f *fakeStore) Upsert(_ context.Context, docs []rag.Document, embeddings [][]float32) error {
	f.upserts++
	if f.err != nil {
		return f.err
	}
	if len(docs) != len(embeddings) {
		return errors.New("docs and embeddings length mismatch")
	}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return nil
}

func (f *fakeStore) Search(context.Context, []float32, float32, int) ([]rag.Document, error) {
	return nil, nil
}

func (f *fakeStore) Delete(context.Context, []string) error { return nil }

func (f *fakeStore) Close() error { return nil }

func regionsTable() map[string][]source.Record {
	return map[string][]source.Record{
		"regions": {
			{ID: "r-1", Fields: map[string]string{"id": "r-1", "name": "Region X", "country": "HK", "goal_cents": "500000"}},
			{ID: "r-2", Fields: map[string]string{"id": "r-2", "name": "Region Y", "country": "SG", "goal_cents": "250000"}},
		},
	}
}

func Test_Run_UpsertsEveryRow(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	job, err := NewJob(&fakeReader{tables: regionsTable()}, &fakeEmbedder{}, store, nil)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	summary, err := job.Run(context.Background(), []string{"regions"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Processed() != 2 || summary.Skipped() != 0 {
		t.Fatalf("want 2 processed / 0 skipped, got %d / %d", summary.Processed(), summary.Skipped())
	}

	doc, ok := store.docs["r-1"]
	if !ok {
		t.Fatal("document must be keyed by the source row id")
	}
	if doc.Metadata["source_table"] != "regions" || doc.Metadata["source_id"] != "r-1" {
		t.Errorf("want provenance metadata, got %v", doc.Metadata)
	}
	if doc.Content != "This is the Region X region in country HK. The fundraising goal is 5000 cents." {
		t.Errorf("unexpected content %q", doc.Content)
	}
}

func Test_Run_IsIdempotent(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	job, err := NewJob(&fakeReader{tables: regionsTable()}, &fakeEmbedder{}, store, nil)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := job.Run(context.Background(), []string{"regions"}); err != nil {
			t.Fatalf("run %d: %v", i, err)
		}
	}
	if len(store.docs) != 2 {
		t.Fatalf("re-run must update in place, want 2 documents, got %d", len(store.docs))
	}
}

func Test_Run_RowFailureIsIsolated(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	// "Region X" fails to embed; "Region Y" must still land.
	job, err := NewJob(&fakeReader{tables: regionsTable()}, &fakeEmbedder{failOn: "Region X"}, store, nil)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	summary, err := job.Run(context.Background(), []string{"regions"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Processed() != 1 || summary.Skipped() != 1 {
		t.Fatalf("want 1 processed / 1 skipped, got %d / %d", summary.Processed(), summary.Skipped())
	}
	if _, ok := store.docs["r-2"]; !ok {
		t.Error("the healthy row must still be upserted")
	}
}

func Test_Run_RowWithoutIDIsSkipped(t *testing.T) {
	t.Parallel()

	tables := map[string][]source.Record{
		"post": {
			{ID: "", Fields: map[string]string{"author": "x", "description": "y"}},
			{ID: "p-1", Fields: map[string]string{"id": "p-1", "author": "a", "description": "b"}},
		},
	}
	store := newFakeStore()
	job, err := NewJob(&fakeReader{tables: tables}, &fakeEmbedder{}, store, nil)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	summary, err := job.Run(context.Background(), []string{"post"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.Processed() != 1 || summary.Skipped() != 1 {
		t.Fatalf("want 1 processed / 1 skipped, got %d / %d", summary.Processed(), summary.Skipped())
	}
}

func Test_Run_TableListingFailureAborts(t *testing.T) {
	t.Parallel()

	job, err := NewJob(&fakeReader{err: errors.New("db locked")}, &fakeEmbedder{}, newFakeStore(), nil)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	if _, err := job.Run(context.Background(), []string{"regions"}); err == nil {
		t.Fatal("listing failure must abort the run")
	}
}

func Test_Run_DefaultsToFullSweep(t *testing.T) {
	t.Parallel()

	reader := &fakeReader{tables: map[string][]source.Record{}}
	job, err := NewJob(reader, &fakeEmbedder{}, newFakeStore(), nil)
	if err != nil {
		t.Fatalf("new job: %v", err)
	}

	summary, err := job.Run(context.Background(), nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(summary.Tables) != len(DefaultTables) {
		t.Fatalf("want %d table summaries, got %d", len(DefaultTables), len(summary.Tables))
	}
}
