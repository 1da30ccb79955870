package badger

import (
	"bytes"
	"context"
	"math"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/storage"
)

// ConversationRepository implements storage.ConversationRepository for BadgerDB.
type ConversationRepository struct {
	backend *Backend
	idSeq   *badger.Sequence
}

var _ storage.ConversationRepository = (*ConversationRepository)(nil)

// NewConversationRepository creates a new ConversationRepository.
func NewConversationRepository(backend *Backend) (*ConversationRepository, error) {
	idSeq, err := backend.GetSequence(messageIDSeq)
	if err != nil {
		return nil, err
	}

	return &ConversationRepository{
		backend: backend,
		idSeq:   idSeq,
	}, nil
}

// Close releases the message sequence.
func (r *ConversationRepository) Close() error {
	return r.idSeq.Release()
}

// CreateConversation stores a conversation under its client-supplied id.
// Creating an existing id replaces its instructions and clears any
// previously appended messages.
func (r *ConversationRepository) CreateConversation(ctx context.Context, conversation *core.Conversation) (*core.Conversation, error) {
	if conversation.Id == "" {
		return nil, core.ErrEmptyConversationID
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		conversation.CreatedAt = time.Now().UTC()

		if err := r.deleteMessages(tx, conversation.Id); err != nil {
			return err
		}

		key := makeConversationKey(conversation.Id)
		value := storage.MarshalConversation(conversation)
		if err := tx.Set(key, value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)

	return conversation, err
}

// GetConversation retrieves a conversation by id.
func (r *ConversationRepository) GetConversation(ctx context.Context, id string) (*core.Conversation, error) {
	var result *core.Conversation
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		result, err = r.readConversation(tx, id)
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

// AppendMessages appends one or more messages to a conversation.
// Each message is stored under a composite timestamp key, so a single
// append is atomic and reads observe a prefix-consistent sequence.
func (r *ConversationRepository) AppendMessages(ctx context.Context, id string, messages ...*core.Message) ([]*core.Message, error) {
	for _, message := range messages {
		if err := core.ValidateMessage(message); err != nil {
			return nil, err
		}
	}

	err := r.backend.WithTx(func(tx *badger.Txn) error {
		conversation, err := r.readConversation(tx, id)
		if err != nil {
			return err
		}
		if conversation == nil {
			return storage.ErrNotFound
		}

		for _, message := range messages {
			seq, err := r.idSeq.Next()
			if err != nil {
				return err
			}

			message.InsertedAt = time.Now().UTC()

			key := makeMessageKey(id, message.Timestamp, seq)
			value := storage.MarshalMessage(message)
			if err := tx.Set(key, value); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)

	return messages, err
}

// GetMessages retrieves all messages of a conversation in chronological order.
func (r *ConversationRepository) GetMessages(ctx context.Context, id string) ([]*core.Message, error) {
	var results []*core.Message
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		conversation, err := r.readConversation(tx, id)
		if err != nil {
			return err
		}
		if conversation == nil {
			return storage.ErrNotFound
		}

		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeMessagePrefix(id)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var message *core.Message
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				message, err = storage.UnmarshalMessage(val)
				return err
			}); err != nil {
				return err
			}
			if message != nil {
				results = append(results, message)
			}
		}
		return nil
	}, false)

	return results, err
}

// LatestMessage returns the message with the greatest timestamp at or before
// upTo. A zero upTo means no bound.
func (r *ConversationRepository) LatestMessage(ctx context.Context, id string, upTo time.Time) (*core.Message, error) {
	bound := upTo
	if bound.IsZero() {
		bound = time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC)
	}

	var result *core.Message
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		conversation, err := r.readConversation(tx, id)
		if err != nil {
			return err
		}
		if conversation == nil {
			return storage.ErrNotFound
		}

		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Seek to the greatest possible key within the bound, then walk
		// backwards; the first key still inside the prefix wins.
		startKey := makeMessageKey(id, bound, math.MaxUint64)
		prefix := makeMessagePrefix(id)

		iter.Seek(startKey)
		if !iter.Valid() || !bytes.HasPrefix(iter.Item().Key(), prefix) {
			return storage.ErrNoMessages
		}

		return iter.Item().Value(func(val []byte) error {
			var err error
			result, err = storage.UnmarshalMessage(val)
			return err
		})
	}, false)

	return result, err
}

// readConversation reads a conversation record, returning nil if absent.
func (r *ConversationRepository) readConversation(tx *badger.Txn, id string) (*core.Conversation, error) {
	item, err := tx.Get(makeConversationKey(id))
	if err != nil {
		if err == badger.ErrKeyNotFound {
			return nil, nil
		}
		return nil, err
	}

	var conversation *core.Conversation
	err = item.Value(func(val []byte) error {
		var err error
		conversation, err = storage.UnmarshalConversation(val)
		return err
	})
	return conversation, err
}

// deleteMessages removes every message of a conversation within tx.
func (r *ConversationRepository) deleteMessages(tx *badger.Txn, id string) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = makeMessagePrefix(id)
	opts.PrefetchValues = false
	iter := tx.NewIterator(opts)
	defer iter.Close()

	var keys [][]byte
	for iter.Rewind(); iter.Valid(); iter.Next() {
		keys = append(keys, iter.Item().KeyCopy(nil))
	}
	for _, key := range keys {
		if err := tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}
