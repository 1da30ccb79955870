package badger

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/poiesic/docqa/core"
)

// Key prefixes for different data types
const (
	documentPrefix     = "docrec"
	documentPathPrefix = "docpat"
	conversationPrefix = "convrec"
	messagePrefix      = "convmsg"
	messageIDSeq       = "convmsgseq"
)

// makeDocumentKey generates a key for a document by ID.
func makeDocumentKey(id core.ID) []byte {
	return []byte(fmt.Sprintf("%s:%d", documentPrefix, id))
}

// makeDocumentPathKey generates a key for the path lookup index.
func makeDocumentPathKey(path string) []byte {
	return []byte(fmt.Sprintf("%s:%s", documentPathPrefix, path))
}

// makeConversationKey generates a key for a conversation by id.
func makeConversationKey(id string) []byte {
	return []byte(fmt.Sprintf("%s:%s", conversationPrefix, id))
}

// makeMessagePrefix generates the key prefix covering all messages of a
// conversation.
func makeMessagePrefix(conversationID string) []byte {
	return []byte(fmt.Sprintf("%s:%s:", messagePrefix, conversationID))
}

// makeMessageKey generates a composite key for a message.
// Format: prefix:conversationID:timestamp:seq
// Timestamp and sequence are written in BigEndian order so lexicographic
// sort equals chronological order, with the sequence breaking ties in
// insertion order.
func makeMessageKey(conversationID string, timestamp time.Time, seq uint64) []byte {
	prefixBytes := makeMessagePrefix(conversationID)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 16 // 8 bytes for timestamp + 8 bytes for seq
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	offset += 8
	binary.BigEndian.PutUint64(buf[offset:], seq)
	return buf
}

// makePartialMessageKey generates a partial key for timestamp-bounded scans.
// Format: prefix:conversationID:timestamp
func makePartialMessageKey(conversationID string, timestamp time.Time) []byte {
	prefixBytes := makeMessagePrefix(conversationID)
	prefixSize := len(prefixBytes)
	totalSize := prefixSize + 8 // 8 bytes for timestamp
	buf := make([]byte, totalSize)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint64(buf[offset:], uint64(timestamp.UnixMicro()))
	return buf
}
