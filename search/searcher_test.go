package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/poiesic/docqa/ai/mock"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
	"github.com/poiesic/docqa/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptEmbedder returns unit vectors from a fixed text-to-vector table so
// similarity scores in tests are exact.
func scriptEmbedder(vectors map[string][]float32) *mock.MockEmbedder {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		if v, ok := vectors[text]; ok {
			return v, nil
		}
		return nil, fmt.Errorf("no scripted vector for %q", text)
	}
	return embedder
}

func newTestSearcher(t *testing.T, embedder *mock.MockEmbedder) (*Searcher, storage.DocumentRepository) {
	t.Helper()

	docRepo, convRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		convRepo.Close()
		docRepo.Close()
		backend.Close()
	})

	searcher, err := NewSearcher(docRepo, embedder)
	require.NoError(t, err)

	return searcher, docRepo
}

func indexDocument(t *testing.T, docs storage.DocumentRepository, path, content string, vector []float32) {
	t.Helper()

	_, err := docs.UpsertDocument(context.Background(), &core.Document{
		Path:    path,
		Content: content,
		Vector:  vector,
	})
	require.NoError(t, err)
}

func TestNewSearcher_Validation(t *testing.T) {
	docRepo, convRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		convRepo.Close()
		docRepo.Close()
		backend.Close()
	})

	_, err = NewSearcher(nil, mock.NewMockEmbedder())
	assert.Equal(t, ErrDocumentRepositoryRequired, err)

	_, err = NewSearcher(docRepo, nil)
	assert.Equal(t, ErrEmbedderRequired, err)
}

func TestFindSimilar_EmptyIndex(t *testing.T) {
	embedder := scriptEmbedder(map[string][]float32{
		"anything at all": {1, 0, 0},
	})
	searcher, _ := newTestSearcher(t, embedder)

	results, err := searcher.FindSimilar(context.Background(), "anything at all", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestFindSimilar_RanksByScore(t *testing.T) {
	lighthouse := "lighthouse keeper logged passing ships"
	orchard := "apple orchard pruning schedule"
	query := "who logged passing ships"

	embedder := scriptEmbedder(map[string][]float32{query: {1, 0, 0}})
	searcher, docs := newTestSearcher(t, embedder)

	indexDocument(t, docs, "lighthouse.txt", lighthouse, []float32{0.95, 0.05, 0})
	indexDocument(t, docs, "orchard.txt", orchard, []float32{0, 1, 0})

	results, err := searcher.FindSimilar(context.Background(), query, 5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "lighthouse.txt", results[0].Document.Path)
}

func TestFindSimilar_Limit(t *testing.T) {
	query := "shared topic"
	embedder := scriptEmbedder(map[string][]float32{query: {1, 0, 0}})
	searcher, docs := newTestSearcher(t, embedder)

	indexDocument(t, docs, "a.txt", "alpha", []float32{0.9, 0, 0})
	indexDocument(t, docs, "b.txt", "beta", []float32{0.8, 0, 0})
	indexDocument(t, docs, "c.txt", "gamma", []float32{0.7, 0, 0})

	results, err := searcher.FindSimilar(context.Background(), query, 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 2)
}

func TestFindSimilar_VerbatimBoost(t *testing.T) {
	// Both documents score identically on cosine similarity; only one
	// contains every query word, so the boost decides the order.
	query := "lighthouse keeper"
	embedder := scriptEmbedder(map[string][]float32{query: {1, 0, 0}})
	searcher, docs := newTestSearcher(t, embedder)

	indexDocument(t, docs, "keeper.txt", "the lighthouse keeper logged ships", []float32{0.7, 0, 0})
	indexDocument(t, docs, "tower.txt", "the tall tower on the cliff", []float32{0.7, 0, 0})

	results, err := searcher.FindSimilar(context.Background(), query, 5)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "keeper.txt", results[0].Document.Path)
	assert.Greater(t, results[0].Score, results[1].Score)
}

func TestContainsAllQueryWords(t *testing.T) {
	tests := []struct {
		name     string
		document string
		query    string
		want     bool
	}{
		{"all words present", "the lighthouse keeper logged ships", "lighthouse keeper", true},
		{"missing word", "the lighthouse stands tall", "lighthouse keeper", false},
		{"stop words ignored", "keeper of lamps", "the keeper", true},
		{"punctuation trimmed", "ships, boats, and barges.", "Ships boats", true},
		{"only stop words", "anything", "the a an", false},
		{"empty query", "anything", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, containsAllQueryWords(tt.document, tt.query))
		})
	}
}
