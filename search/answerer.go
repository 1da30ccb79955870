package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
)

const defaultMaxContextDocuments = 5

// Answerer answers single-shot questions against the retrieval index.
// It is stateless: no conversation is created or mutated.
type Answerer struct {
	searcher     *Searcher
	chatter      ai.Chatter
	systemPrompt string
	maxContext   int
	logger       *slog.Logger
}

// AnswererOption configures an Answerer.
type AnswererOption func(*Answerer) error

// WithMaxContextDocuments caps how many retrieved documents seed the prompt.
func WithMaxContextDocuments(max int) AnswererOption {
	return func(a *Answerer) error {
		if max > 0 {
			a.maxContext = max
		}
		return nil
	}
}

// WithAnswererLogger sets a custom logger.
// Default is slog.Default().
func WithAnswererLogger(logger *slog.Logger) AnswererOption {
	return func(a *Answerer) error {
		if logger == nil {
			logger = slog.Default()
		}
		a.logger = logger
		return nil
	}
}

// NewAnswerer creates an answerer seeded with the given system prompt.
func NewAnswerer(searcher *Searcher, chatter ai.Chatter, systemPrompt string, opts ...AnswererOption) (*Answerer, error) {
	if searcher == nil {
		return nil, ErrSearcherRequired
	}
	if chatter == nil {
		return nil, ErrChatterRequired
	}

	a := &Answerer{
		searcher:     searcher,
		chatter:      chatter,
		systemPrompt: systemPrompt,
		maxContext:   defaultMaxContextDocuments,
		logger:       slog.Default().With("component", "answerer"),
	}

	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}

	return a, nil
}

// Answer retrieves context for the question and synthesizes an answer.
//
// The citation list is always empty: the retrieval service does not surface
// individual sources back through this path. Dependency failures propagate
// to the caller; nothing is retried here.
func (a *Answerer) Answer(ctx context.Context, question string) (*core.AnswerResult, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	matches, err := a.searcher.FindSimilar(ctx, question, a.maxContext)
	if err != nil {
		return nil, err
	}

	answer, err := a.chatter.Chat(ctx, a.systemPrompt, []ai.Turn{
		{FromUser: true, Content: BuildQuestionPrompt(question, matches)},
	})
	if err != nil {
		a.logger.Error("error generating answer", "err", err)
		return nil, err
	}

	return &core.AnswerResult{
		DataPoints: []string{},
		Answer:     answer,
		Thoughts:   "",
	}, nil
}

// BuildQuestionPrompt renders a question together with retrieved context
// into a single user prompt. With no matches the context section states
// that nothing relevant was found, which steers the model toward a
// "don't know" style answer.
func BuildQuestionPrompt(question string, matches []*core.SearchResult) string {
	var sb strings.Builder

	sb.WriteString("Context:\n")
	if len(matches) == 0 {
		sb.WriteString("(no relevant documents found)\n")
	}
	for _, match := range matches {
		fmt.Fprintf(&sb, "[Source: %s]\n%s\n\n", match.Document.Path, match.Document.Content)
	}

	sb.WriteString("\nQuestion: ")
	sb.WriteString(question)
	return sb.String()
}
