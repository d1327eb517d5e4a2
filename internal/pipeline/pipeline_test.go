package pipeline

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/reachhk/reachbot-go/internal/answer"
	"github.com/reachhk/reachbot-go/internal/qa"
	"github.com/reachhk/reachbot-go/internal/rag"
)

// fakeRetriever implements rag.Retriever for tests.
type fakeRetriever struct {
	docs []rag.Document
	err  error
	// calls records every query passed to Retrieve.
	calls []string
}

func (f *fakeRetriever) Retrieve(_ context.Context, query string) ([]rag.Document, error) {
	f.calls = append(f.calls, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.docs, nil
}

// fakeComposer implements Composer for tests.
type fakeComposer struct {
	text string
	err  error
	// gotQuery and gotDocs capture the last call.
	gotQuery string
	gotDocs  []rag.Document
	calls    int
}

func (f *fakeComposer) Compose(_ context.Context, query string, docs []rag.Document) (string, error) {
	f.calls++
	f.gotQuery = query
	f.gotDocs = docs
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

// newTestPipeline wires a Pipeline with a fresh metrics registry so tests
// never collide on duplicate registration.
func newTestPipeline(t *testing.T, r rag.Retriever, c Composer) *Pipeline {
	t.Helper()
	p, err := New(&Config{
		Retriever: r,
		Composer:  c,
		Registry:  prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	return p
}

func Test_Answer_EmptyQueryIsValidationError(t *testing.T) {
	t.Parallel()

	ret := &fakeRetriever{}
	p := newTestPipeline(t, ret, &fakeComposer{})

	for _, q := range []string{"", "   ", "\n\t"} {
		_, err := p.Answer(context.Background(), q)
		if KindOf(err) != KindValidation {
			t.Errorf("query %q: want KindValidation, got %v", q, err)
		}
	}
	if len(ret.calls) != 0 {
		t.Errorf("retriever must not run for invalid input, got %d calls", len(ret.calls))
	}
}

func Test_Answer_NormalizesBeforeRetrievalAndComposition(t *testing.T) {
	t.Parallel()

	ret := &fakeRetriever{docs: []rag.Document{{ID: "a", Content: "x"}}}
	comp := &fakeComposer{text: "ok"}
	p := newTestPipeline(t, ret, comp)

	if _, err := p.Answer(context.Background(), "  CAMPAIGNS \n"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if len(ret.calls) != 1 || ret.calls[0] != "campaigns" {
		t.Errorf("retriever must see the sanitized query, got %v", ret.calls)
	}
	if comp.gotQuery != "campaigns" {
		t.Errorf("composer must see the same sanitized query, got %q", comp.gotQuery)
	}
}

func Test_Answer_EmbeddingFailureIsUpstreamUnavailable(t *testing.T) {
	t.Parallel()

	ret := &fakeRetriever{err: fmt.Errorf("rag: embedding query: %w", rag.ErrEmbeddingUnavailable)}
	comp := &fakeComposer{}
	p := newTestPipeline(t, ret, comp)

	_, err := p.Answer(context.Background(), "anything")
	if KindOf(err) != KindUpstreamUnavailable {
		t.Fatalf("want KindUpstreamUnavailable, got %v", err)
	}
	if comp.calls != 0 {
		t.Error("composer must not run after an embedding failure")
	}
}

func Test_Answer_SearchFailureIsRetrievalUnavailable(t *testing.T) {
	t.Parallel()

	ret := &fakeRetriever{err: fmt.Errorf("rag: similarity search: %w", rag.ErrRetrievalFailed)}
	p := newTestPipeline(t, ret, &fakeComposer{})

	_, err := p.Answer(context.Background(), "anything")
	if KindOf(err) != KindRetrievalUnavailable {
		t.Fatalf("want KindRetrievalUnavailable, got %v", err)
	}
}

func Test_Answer_UnknownRetrieveFailureIsRetrievalUnavailable(t *testing.T) {
	t.Parallel()

	// No sentinel wrapped at all: the catch-all accounts it against retrieval
	// rather than misattributing it to the embedding upstream.
	ret := &fakeRetriever{err: fmt.Errorf("context deadline exceeded")}
	p := newTestPipeline(t, ret, &fakeComposer{})

	_, err := p.Answer(context.Background(), "anything")
	if KindOf(err) != KindRetrievalUnavailable {
		t.Fatalf("want KindRetrievalUnavailable, got %v", err)
	}
	if KindOf(err) == KindUpstreamUnavailable {
		t.Fatal("a sentinel-free error must never map to the embedding upstream")
	}
}

func Test_Answer_ComposerFailureIsCompositionError(t *testing.T) {
	t.Parallel()

	ret := &fakeRetriever{docs: []rag.Document{{ID: "a", Content: "x"}}}
	comp := &fakeComposer{err: fmt.Errorf("qa: HTTP 500")}
	p := newTestPipeline(t, ret, comp)

	got, err := p.Answer(context.Background(), "anything")
	if KindOf(err) != KindComposition {
		t.Fatalf("want KindComposition, got %v", err)
	}
	if got != "" {
		t.Errorf("partial text must be discarded, got %q", got)
	}
}

func Test_Answer_ResultIsTrimmed(t *testing.T) {
	t.Parallel()

	ret := &fakeRetriever{docs: []rag.Document{{ID: "a", Content: "x"}}}
	comp := &fakeComposer{text: "  the answer \n"}
	p := newTestPipeline(t, ret, comp)

	got, err := p.Answer(context.Background(), "anything")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if got != "the answer" {
		t.Fatalf("want trimmed answer, got %q", got)
	}
}

// Test_Answer_CardinalityRouting drives the pipeline with the real composer
// and mocked retrieval results of size 0, 1, and 3 to check every branch.
func Test_Answer_CardinalityRouting(t *testing.T) {
	t.Parallel()

	newComposer := func(t *testing.T, res qa.Result) Composer {
		t.Helper()
		c, err := answer.New(&answer.Config{Extractor: extractorFunc(func() (qa.Result, error) { return res, nil })})
		if err != nil {
			t.Fatalf("new composer: %v", err)
		}
		return c
	}

	t.Run("zero results route to the fallback message", func(t *testing.T) {
		t.Parallel()
		p := newTestPipeline(t, &fakeRetriever{}, newComposer(t, qa.Result{}))

		got, err := p.Answer(context.Background(), "asdkjasd")
		if err != nil {
			t.Fatalf("answer: %v", err)
		}
		if got != answer.FallbackMessage {
			t.Fatalf("want the fixed fallback message verbatim, got %q", got)
		}
	})

	t.Run("one result routes to extractive QA", func(t *testing.T) {
		t.Parallel()
		ret := &fakeRetriever{docs: []rag.Document{
			{ID: "r1", Content: "This is the Region X region. The fundraising goal is 5000 cents.", Score: 0.8},
		}}
		p := newTestPipeline(t, ret, newComposer(t, qa.Result{Answer: "5000", Score: 0.95}))

		got, err := p.Answer(context.Background(), "What is the goal of Region X?")
		if err != nil {
			t.Fatalf("answer: %v", err)
		}
		if got != "5000" {
			t.Fatalf("want the extracted span, got %q", got)
		}
	})

	t.Run("three results route to the bulleted list", func(t *testing.T) {
		t.Parallel()
		ret := &fakeRetriever{docs: []rag.Document{
			{ID: "c1", Content: "Campaign A.", Score: 0.9},
			{ID: "c2", Content: "Campaign B.", Score: 0.8},
			{ID: "c3", Content: "Campaign C.", Score: 0.7},
		}}
		p := newTestPipeline(t, ret, newComposer(t, qa.Result{}))

		got, err := p.Answer(context.Background(), "campaigns")
		if err != nil {
			t.Fatalf("answer: %v", err)
		}
		if want := "Here's what I found about our campaigns:"; len(got) < len(want) || got[:len(want)] != want {
			t.Errorf("want the campaign intro first, got %q", got)
		}
	})
}

// extractorFunc adapts a closure to the answer.Extractor interface.
type extractorFunc func() (qa.Result, error)

func (f extractorFunc) Extract(context.Context, string, string) (qa.Result, error) { return f() }
