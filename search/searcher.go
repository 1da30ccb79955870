package search

import (
	"context"
	"log/slog"
	"slices"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
)

const (
	// Minimum cosine similarity for a semantic hit.
	defaultMinSimilarity = 0.60

	// Score boost for documents containing every query word verbatim.
	verbatimBoost = 0.3
)

// Searcher provides semantic search over the retrieval index.
type Searcher struct {
	documents storage.DocumentRepository
	embedder  ai.Embedder
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(documents storage.DocumentRepository, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if documents == nil {
		return nil, ErrDocumentRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		documents: documents,
		embedder:  embedder,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// FindSimilar searches for documents similar to the query.
// Returns up to maxHits results, ranked by relevance score.
func (s *Searcher) FindSimilar(ctx context.Context, query string, maxHits int) ([]*core.SearchResult, error) {
	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}

	matches, err := s.documents.FindSimilar(ctx, embedding, defaultMinSimilarity, maxHits)
	if err != nil {
		s.logger.Error("error querying for similar documents", "err", err)
		return nil, err
	}

	// Boost documents that contain every query word verbatim
	boosted := false
	for _, match := range matches {
		if containsAllQueryWords(match.Document.Content, query) {
			match.Score += verbatimBoost
			boosted = true
		}
	}
	if boosted {
		slices.SortFunc(matches, func(a, b *core.SearchResult) int {
			if a.Score > b.Score {
				return -1
			}
			if a.Score < b.Score {
				return 1
			}
			return 0
		})
	}

	return matches, nil
}
