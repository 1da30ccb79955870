package core

//go:generate go run ../cmd/musgen

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// Document IDs are derived from the storage path so that re-ingesting the
// same file always addresses the same record.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Role identifies the author of a conversation message.
type Role int

const (
	// RoleUser represents the human side of a conversation.
	RoleUser Role = iota + 1
	// RoleAssistant represents the AI side of a conversation.
	RoleAssistant
)

// Document is a file that has been embedded and indexed for semantic search.
// It is owned by the retrieval index and keyed by the ID derived from Path,
// so re-ingesting the same path overwrites instead of duplicating.
type Document struct {
	Id         ID
	Path       string    // Storage path the content was read from
	Content    string    // Raw text of the file
	Vector     []float32 // Embedding vector (populated by the embedding worker)
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// Conversation is a named, ordered sequence of messages sharing one set of
// instructions. The identifier is supplied by the client.
type Conversation struct {
	Id           string
	Instructions string
	CreatedAt    time.Time
}

// Message is a single turn in a conversation. Messages are append-only and
// totally ordered by Timestamp; insertion order equals chronological order.
type Message struct {
	Role       Role
	Content    string
	Timestamp  time.Time // When the message was produced
	InsertedAt time.Time // When the record was inserted into the database
}

// IngestionJob is a queued instruction to embed a previously uploaded file.
// Jobs are delivered at least once; the worker must be idempotent.
type IngestionJob struct {
	Id         string // UUID assigned at enqueue time
	FileName   string // Storage path of the uploaded file
	EnqueuedAt time.Time
	Attempts   int // Delivery attempts so far, maintained by the queue
}

// AnswerResult is the transient response shape for question answering.
// It is never persisted as its own entity outside a Message.
type AnswerResult struct {
	DataPoints []string // Supporting citations (currently always empty)
	Answer     string
	Thoughts   string // Optional reasoning trace
}

// SearchResult is a retrieval hit with its relevance score.
type SearchResult struct {
	Document *Document
	Score    float32
}
