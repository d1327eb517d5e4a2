package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/reachhk/reachbot-go/internal/rag"
)

// newHFTestServer returns an httptest server that responds to every request
// with the given status and raw body, and an HFEmbedder pointed at it.
// The last request body received is written into gotBody.
func newHFTestServer(t *testing.T, status int, body string, gotBody *string) *HFEmbedder {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if gotBody != nil {
			b, _ := io.ReadAll(r.Body)
			*gotBody = string(b)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return NewHFEmbedder(&HFConfig{
		Endpoint: srv.URL,
		Model:    "sentence-transformers/all-MiniLM-L6-v2",
		Token:    "test-token",
	})
}

func Test_HFEmbedder_FlatArrayResponse(t *testing.T) {
	t.Parallel()

	e := newHFTestServer(t, http.StatusOK, `[0.1, 0.2, 0.3]`, nil)

	vec, err := e.Embed(context.Background(), "campaigns")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Fatalf("want [0.1 0.2 0.3], got %v", vec)
	}
}

func Test_HFEmbedder_NestedArrayResponse(t *testing.T) {
	t.Parallel()

	e := newHFTestServer(t, http.StatusOK, `[[0.4, 0.5]]`, nil)

	vec, err := e.Embed(context.Background(), "campaigns")
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if len(vec) != 2 || vec[1] != 0.5 {
		t.Fatalf("want [0.4 0.5], got %v", vec)
	}
}

func Test_HFEmbedder_MalformedShapes(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
	}{
		{"object", `{"error": "model loading"}`},
		{"empty array", `[]`},
		{"deep nesting", `[[[0.1]]]`},
		{"two outer elements", `[[0.1],[0.2]]`},
		{"string", `"oops"`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			e := newHFTestServer(t, http.StatusOK, tc.body, nil)

			_, err := e.Embed(context.Background(), "anything")
			if !errors.Is(err, rag.ErrEmbeddingUnavailable) {
				t.Fatalf("body %q: want ErrEmbeddingUnavailable, got %v", tc.body, err)
			}
		})
	}
}

func Test_HFEmbedder_Non2xxIsUnavailable(t *testing.T) {
	t.Parallel()

	e := newHFTestServer(t, http.StatusTooManyRequests, `{"error":"rate limited"}`, nil)

	_, err := e.Embed(context.Background(), "anything")
	if !errors.Is(err, rag.ErrEmbeddingUnavailable) {
		t.Fatalf("want ErrEmbeddingUnavailable, got %v", err)
	}
}

// Test_HFEmbedder_BadEndpointIsUnavailable covers the request-construction
// failure path: even errors raised before any network I/O must carry the
// sentinel, so the pipeline attributes them to the embedding upstream.
func Test_HFEmbedder_BadEndpointIsUnavailable(t *testing.T) {
	t.Parallel()

	e := NewHFEmbedder(&HFConfig{
		Endpoint: "http://bad host\x7f", // invalid URL, NewRequest fails
		Model:    "sentence-transformers/all-MiniLM-L6-v2",
	})

	_, err := e.Embed(context.Background(), "anything")
	if !errors.Is(err, rag.ErrEmbeddingUnavailable) {
		t.Fatalf("want ErrEmbeddingUnavailable, got %v", err)
	}
}

func Test_HFEmbedder_UnreachableIsUnavailable(t *testing.T) {
	t.Parallel()

	e := NewHFEmbedder(&HFConfig{
		Endpoint: "http://127.0.0.1:1", // nothing listens here
		Model:    "sentence-transformers/all-MiniLM-L6-v2",
	})

	_, err := e.Embed(context.Background(), "anything")
	if !errors.Is(err, rag.ErrEmbeddingUnavailable) {
		t.Fatalf("want ErrEmbeddingUnavailable, got %v", err)
	}
}

// Test_HFEmbedder_WireFormat verifies the request body carries the sanitized
// input and the wait_for_model option the Inference API expects.
func Test_HFEmbedder_WireFormat(t *testing.T) {
	t.Parallel()

	var gotBody string
	e := newHFTestServer(t, http.StatusOK, `[0.1]`, &gotBody)

	if _, err := e.Embed(context.Background(), "what is the goal of region x?"); err != nil {
		t.Fatalf("embed: %v", err)
	}

	var req struct {
		Inputs  string `json:"inputs"`
		Options struct {
			WaitForModel bool `json:"wait_for_model"`
		} `json:"options"`
	}
	if err := json.Unmarshal([]byte(gotBody), &req); err != nil {
		t.Fatalf("request body is not JSON: %v", err)
	}
	if req.Inputs != "what is the goal of region x?" {
		t.Errorf("inputs: got %q", req.Inputs)
	}
	if !req.Options.WaitForModel {
		t.Error("wait_for_model must be true")
	}
}

// Test_HFEmbedder_TruncationIsDeterministic verifies that inputs longer than
// the truncation budget are cut to the same prefix on repeated calls.
func Test_HFEmbedder_TruncationIsDeterministic(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("donation ", 2000) // ~18000 chars

	var first, second string
	e1 := newHFTestServer(t, http.StatusOK, `[0.1]`, &first)
	if _, err := e1.Embed(context.Background(), long); err != nil {
		t.Fatalf("first embed: %v", err)
	}
	e2 := newHFTestServer(t, http.StatusOK, `[0.1]`, &second)
	if _, err := e2.Embed(context.Background(), long); err != nil {
		t.Fatalf("second embed: %v", err)
	}

	if first != second {
		t.Fatal("truncated request bodies differ between identical calls")
	}

	var req struct {
		Inputs string `json:"inputs"`
	}
	if err := json.Unmarshal([]byte(first), &req); err != nil {
		t.Fatalf("request body is not JSON: %v", err)
	}
	if len(req.Inputs) != DefaultTruncateChars {
		t.Errorf("input length: want %d, got %d", DefaultTruncateChars, len(req.Inputs))
	}
	if !strings.HasPrefix(long, req.Inputs) {
		t.Error("truncation must be prefix-based")
	}
}

func Test_Truncate_ShortInputUnchanged(t *testing.T) {
	t.Parallel()

	if got := truncate("short", 100); got != "short" {
		t.Errorf("want unchanged input, got %q", got)
	}
	if got := truncate("abcdef", 3); got != "abc" {
		t.Errorf("want 3-byte prefix, got %q", got)
	}
}

func Test_Truncate_NeverSplitsARune(t *testing.T) {
	t.Parallel()

	// "é" is two bytes, so a 4-byte budget lands mid-rune and must back off
	// to the previous boundary instead of emitting an invalid prefix.
	in := "aéé"
	got := truncate(in, 4)
	if got != "aé" {
		t.Errorf("want backoff to the rune boundary, got %q", got)
	}
	if !utf8.ValidString(got) {
		t.Errorf("truncated prefix must be valid UTF-8, got %q", got)
	}

	// A budget that lands exactly on a boundary is used in full.
	if got := truncate(in, 3); got != "aé" {
		t.Errorf("want the full 3-byte prefix, got %q", got)
	}
}
