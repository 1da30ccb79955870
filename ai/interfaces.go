package ai

import "context"

// Embedder generates vector embeddings from text for semantic similarity search.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	// The returned vector represents the semantic meaning of the text.
	// Returns an error if the embedding generation fails.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in a batch.
	// Batch processing is more efficient than calling EmbedText multiple times.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error if any embedding generation fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Turn is a single conversational turn passed to a Chatter.
type Turn struct {
	// FromUser is true for human turns and false for assistant turns.
	FromUser bool

	// Content is the text of the turn.
	Content string
}

// Chatter generates assistant replies from an instruction prompt and a
// sequence of conversation turns.
// Implementations must be thread-safe for concurrent use.
type Chatter interface {
	// Chat generates a reply to the final user turn, seeded with the
	// given system instructions. Earlier turns provide context.
	// Returns an error if generation fails; no retries are performed.
	Chat(ctx context.Context, instructions string, turns []Turn) (string, error)
}

// AIProvider aggregates AI services for convenient initialization and lifecycle management.
// A provider creates and manages Embedder and Chatter instances, ensuring
// they share configuration and resources appropriately.
type AIProvider interface {
	// Embedder returns the text embedding service.
	// The returned Embedder is safe for concurrent use.
	Embedder() Embedder

	// Chatter returns the reply generation service.
	// The returned Chatter is safe for concurrent use.
	Chatter() Chatter

	// Close releases resources held by the provider and its services.
	// After Close is called, the provider and its services should not be used.
	Close() error
}
