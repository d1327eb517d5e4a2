// Package answer implements the answer composition strategies of the bot:
// list formatting for broad queries, extractive (or generative) answering
// for a single matching document, and the fixed no-match fallback.
// The strategy is selected purely by result-set cardinality — the composer
// never re-filters or re-ranks what the retriever returned.
package answer

import (
	"context"
	"fmt"
	"strings"

	"github.com/reachhk/reachbot-go/internal/qa"
	"github.com/reachhk/reachbot-go/internal/rag"
)

// FallbackMessage is returned verbatim when retrieval finds nothing above
// the similarity threshold. A terminal success, not an error — the bot
// refuses to fabricate an answer from nothing.
const FallbackMessage = "I'm sorry, I couldn't find any specific information about that in my knowledge base. Could you try rephrasing your question?"

// noPreciseAnswer is used in generative mode when the model returns nothing;
// extractive mode prefers showing the raw context over this apology.
const noPreciseAnswer = "Based on the information I found, I'm not able to answer that question precisely. Could you try rephrasing?"

// DefaultListTopN is the number of documents rendered in the list branch
// when no explicit value is configured.
const DefaultListTopN = 3

// Mode selects the single-result answering strategy.
type Mode string

const (
	// ModeExtractive answers with a span extracted from the matching
	// document, falling back to the raw document text when the model
	// finds no span. This is the default.
	ModeExtractive Mode = "extractive"
	// ModeGenerative answers by prompting a generation model constrained
	// to the matching document.
	ModeGenerative Mode = "generative"
)

// Extractor is the extractive QA capability used by the single-result branch.
// *qa.Client satisfies it; tests inject a fake.
type Extractor interface {
	// Extract returns the answer span for question found in contextText.
	Extract(ctx context.Context, question, contextText string) (qa.Result, error)
}

// Generator is the generative answering capability used in ModeGenerative.
type Generator interface {
	// Generate answers question using only contextText.
	Generate(ctx context.Context, question, contextText string) (string, error)
}

// topicIntro pairs a query keyword with the intro sentence used for the
// list branch. Matching is first-match-wins in declaration order — an
// ambiguous query resolves to whichever keyword is tested first. This is a
// deliberate simplification; a real intent classifier could replace the scan
// behind the same interface without touching the rest of the pipeline.
type topicIntro struct {
	// keyword is matched as a substring of the normalized query.
	keyword string
	// intro is the sentence placed before the bulleted list.
	intro string
}

// topicIntros is the ordered keyword → intro table for the list branch.
var topicIntros = []topicIntro{
	{"campaign", "Here's what I found about our campaigns:"},
	{"champion", "Here's what I found about our community champions:"},
	{"donor", "Here's what I found about our donors and donations:"},
	{"post", "Here's what I found in our community posts:"},
	{"leaderboard", "Here's what the leaderboard currently shows:"},
	{"region", "Here's what I found about our regions:"},
}

// Composer builds the final answer text from the retrieved documents.
type Composer struct {
	// extractor answers single-result queries in ModeExtractive.
	extractor Extractor
	// generator answers single-result queries in ModeGenerative.
	generator Generator
	// mode selects the single-result strategy.
	mode Mode
	// listTopN is the number of documents rendered in the list branch.
	listTopN int
}

// Config holds the settings for constructing a Composer.
type Config struct {
	// Extractor is required in ModeExtractive.
	Extractor Extractor
	// Generator is required in ModeGenerative.
	Generator Generator
	// Mode selects the single-result strategy. Defaults to ModeExtractive.
	Mode Mode
	// ListTopN caps the list branch length. Defaults to DefaultListTopN.
	ListTopN int
}

// New constructs a Composer, validating that the capability matching the
// selected mode is present.
func New(cfg *Config) (*Composer, error) {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeExtractive
	}
	switch mode {
	case ModeExtractive:
		if cfg.Extractor == nil {
			return nil, fmt.Errorf("answer: extractive mode requires an extractor")
		}
	case ModeGenerative:
		if cfg.Generator == nil {
			return nil, fmt.Errorf("answer: generative mode requires a generator")
		}
	default:
		return nil, fmt.Errorf("answer: unknown mode %q", mode)
	}

	listTopN := cfg.ListTopN
	if listTopN <= 0 {
		listTopN = DefaultListTopN
	}

	return &Composer{
		extractor: cfg.Extractor,
		generator: cfg.Generator,
		mode:      mode,
		listTopN:  listTopN,
	}, nil
}

// Compose builds the answer for query from docs. The branch is chosen by
// len(docs) alone, evaluated after the store-side threshold filter:
//
//	0 docs  → FallbackMessage
//	1 doc   → extractive QA (or generation) over that document
//	≥2 docs → topic intro + bulleted top-N contents in store order
//
// query must already be normalized (trimmed, lower-cased) — the same text
// that was embedded, so the keyword scan and retrieval cannot disagree.
func (c *Composer) Compose(ctx context.Context, query string, docs []rag.Document) (string, error) {
	switch {
	case len(docs) == 0:
		return FallbackMessage, nil
	case len(docs) == 1:
		return c.composeSingle(ctx, query, docs[0])
	default:
		return c.composeList(query, docs), nil
	}
}

// composeSingle answers from exactly one matching document.
func (c *Composer) composeSingle(ctx context.Context, query string, doc rag.Document) (string, error) {
	if c.mode == ModeGenerative {
		text, err := c.generator.Generate(ctx, query, doc.Content)
		if err != nil {
			return "", fmt.Errorf("answer: generate: %w", err)
		}
		if text == "" {
			return noPreciseAnswer, nil
		}
		return text, nil
	}

	res, err := c.extractor.Extract(ctx, query, doc.Content)
	if err != nil {
		return "", fmt.Errorf("answer: extract: %w", err)
	}
	if res.Answer == "" {
		// Prefer showing the unfiltered document over showing nothing.
		return doc.Content, nil
	}
	return res.Answer, nil
}

// composeList renders the top-N documents as a bulleted list under a topic
// intro. Store order is preserved — no client-side re-ranking.
func (c *Composer) composeList(query string, docs []rag.Document) string {
	if len(docs) > c.listTopN {
		docs = docs[:c.listTopN]
	}

	lines := make([]string, 0, len(docs))
	for _, doc := range docs {
		lines = append(lines, "• "+doc.Content)
	}

	return introFor(query) + "\n\n" + strings.Join(lines, "\n")
}

// introFor scans query for the first matching topic keyword and returns its
// intro sentence, or the generic intro when nothing matches.
func introFor(query string) string {
	for _, t := range topicIntros {
		if strings.Contains(query, t.keyword) {
			return t.intro
		}
	}
	return fmt.Sprintf("Here are the top results I found for %q:", query)
}
