package storage

import (
	"context"
	"io"
	"time"

	"github.com/poiesic/docqa/core"
)

// BlobStore provides durable, key-addressable storage for uploaded files.
// Implementations must be thread-safe and guarantee that a successful Write
// means the bytes are durably stored before the call returns.
type BlobStore interface {
	// Write stores the bytes read from r under the given file name and
	// returns the storage path the content was written to, along with the
	// number of bytes written. Writing the same name again overwrites the
	// previous content.
	Write(ctx context.Context, name string, r io.Reader) (path string, n int64, err error)

	// Read returns the full content stored at path.
	// Returns ErrNotFound if nothing is stored there.
	Read(ctx context.Context, path string) ([]byte, error)

	// Exists reports whether content is stored at path.
	Exists(ctx context.Context, path string) (bool, error)
}

// DocumentRepository provides operations for the retrieval index.
// Implementations must be thread-safe and support concurrent access.
type DocumentRepository interface {
	// UpsertDocument writes a document keyed by the ID derived from its
	// path. Writing the same path again overwrites the existing record
	// rather than creating a duplicate.
	// Sets InsertedAt on first write and UpdatedAt on every write.
	UpsertDocument(ctx context.Context, document *core.Document) (*core.Document, error)

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// GetDocumentByPath retrieves a document by its storage path.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocumentByPath(ctx context.Context, path string) (*core.Document, error)

	// ListDocumentPaths returns the storage paths of all indexed documents.
	ListDocumentPaths(ctx context.Context) ([]string, error)

	// FindSimilar finds documents similar to the given vector.
	// Returns documents with similarity >= minSimilarity, up to limit
	// results, ordered by similarity score (highest first).
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error)

	// Close closes the repository and releases resources.
	Close() error
}

// ConversationRepository provides operations for conversation state.
// Messages are append-only; a message write is atomic and a read of the
// message sequence is always prefix-consistent.
type ConversationRepository interface {
	// CreateConversation stores a conversation under its client-supplied
	// id. Creating an id that already exists replaces its instructions and
	// clears any previously appended messages.
	CreateConversation(ctx context.Context, conversation *core.Conversation) (*core.Conversation, error)

	// GetConversation retrieves a conversation by id.
	// Returns ErrNotFound if the conversation doesn't exist.
	GetConversation(ctx context.Context, id string) (*core.Conversation, error)

	// AppendMessages appends one or more messages to a conversation.
	// Sets InsertedAt if not already set. Returns ErrNotFound if the
	// conversation doesn't exist.
	AppendMessages(ctx context.Context, id string, messages ...*core.Message) ([]*core.Message, error)

	// GetMessages retrieves all messages of a conversation in
	// chronological order. Returns ErrNotFound if the conversation
	// doesn't exist.
	GetMessages(ctx context.Context, id string) ([]*core.Message, error)

	// LatestMessage returns the message with the greatest timestamp at or
	// before upTo. A zero upTo means no bound. Returns ErrNotFound if the
	// conversation doesn't exist and ErrNoMessages if it has no messages
	// within the bound.
	LatestMessage(ctx context.Context, id string, upTo time.Time) (*core.Message, error)

	// Close closes the repository and releases resources.
	Close() error
}
