package badger

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
)

// DocumentRepository implements storage.DocumentRepository for BadgerDB.
type DocumentRepository struct {
	backend *Backend
}

var _ storage.DocumentRepository = (*DocumentRepository)(nil)

// NewDocumentRepository creates a new DocumentRepository.
func NewDocumentRepository(backend *Backend) (*DocumentRepository, error) {
	return &DocumentRepository{backend: backend}, nil
}

// Close releases repository resources.
func (r *DocumentRepository) Close() error {
	return nil
}

// UpsertDocument writes a document keyed by the ID derived from its path.
// Re-ingesting the same path overwrites the existing record, which keeps
// redelivered ingestion jobs idempotent.
func (r *DocumentRepository) UpsertDocument(ctx context.Context, document *core.Document) (*core.Document, error) {
	if err := core.ValidateDocument(document); err != nil {
		return nil, err
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		document.Id = core.IDFromContent(document.Path)

		key := makeDocumentKey(document.Id)
		old, err := r.readDocument(tx, key)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if old != nil {
			document.InsertedAt = old.InsertedAt
		} else {
			document.InsertedAt = now
		}
		document.UpdatedAt = now

		value := storage.MarshalDocument(document)
		if err := tx.Set(key, value); err != nil {
			return err
		}

		// Path lookup index
		pathKey := makeDocumentPathKey(document.Path)
		if err := tx.Set(pathKey, storage.MarshalID(document.Id)); err != nil {
			return err
		}

		return tx.Commit()
	}, true)

	return document, err
}

// GetDocument retrieves a single document by ID.
func (r *DocumentRepository) GetDocument(ctx context.Context, id core.ID) (*core.Document, error) {
	var result *core.Document
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeDocumentKey(id)
		var err error
		result, err = r.readDocument(tx, key)
		if err != nil {
			return err
		}
		if result == nil {
			return storage.ErrNotFound
		}
		return nil
	}, false)
	return result, err
}

// GetDocumentByPath retrieves a document by its storage path.
func (r *DocumentRepository) GetDocumentByPath(ctx context.Context, path string) (*core.Document, error) {
	return r.GetDocument(ctx, core.IDFromContent(path))
}

// ListDocumentPaths returns the storage paths of all indexed documents.
func (r *DocumentRepository) ListDocumentPaths(ctx context.Context) ([]string, error) {
	var paths []string
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := []byte(documentPathPrefix + ":")
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			key := string(iter.Item().Key())
			paths = append(paths, strings.TrimPrefix(key, string(prefix)))
		}
		return nil
	}, false)
	return paths, err
}

// FindSimilar finds documents similar to the given vector.
func (r *DocumentRepository) FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error) {
	var results []*core.SearchResult

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			item := iter.Item()

			var document *core.Document
			err := item.Value(func(val []byte) error {
				var err error
				document, err = storage.UnmarshalDocument(val)
				return err
			})
			if err != nil {
				return err
			}
			if document == nil {
				continue
			}

			// Skip documents the embedding worker hasn't reached yet
			if len(document.Vector) == 0 {
				continue
			}

			// Cosine similarity (dot product for normalized vectors)
			similarity := dotProduct(vector, document.Vector)

			if similarity >= minSimilarity {
				results = append(results, &core.SearchResult{
					Document: document,
					Score:    similarity,
				})
			}
		}

		return nil
	}, false)

	if err != nil {
		return nil, err
	}

	// Sort by similarity descending
	slices.SortFunc(results, func(a, b *core.SearchResult) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// readDocument reads a document at the given key, returning nil if absent.
func (r *DocumentRepository) readDocument(tx *badger.Txn, key []byte) (*core.Document, error) {
	item, err := tx.Get(key)
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var document *core.Document
	err = item.Value(func(val []byte) error {
		var err error
		document, err = storage.UnmarshalDocument(val)
		return err
	})
	return document, err
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
