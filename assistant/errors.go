package assistant

import "errors"

var (
	// ErrConversationRepositoryRequired is returned when a conversation repository is not provided.
	ErrConversationRepositoryRequired = errors.New("conversation repository required")

	// ErrSearcherRequired is returned when a searcher is not provided.
	ErrSearcherRequired = errors.New("searcher required")

	// ErrChatterRequired is returned when a chatter is not provided.
	ErrChatterRequired = errors.New("chatter required")

	// ErrEmptyPrompt is returned when a posted body contains no question.
	ErrEmptyPrompt = errors.New("empty prompt")
)
