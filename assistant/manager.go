package assistant

import (
	"context"
	"encoding/json"
	"log/slog"
	"runtime"
	"strings"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/search"
	"github.com/poiesic/docqa/storage"
)

// DefaultInstructions seed every created conversation.
const DefaultInstructions = `Don't make assumptions about what values to plug into functions.
Ask for clarification if a user request is ambiguous.`

const defaultContextDocuments = 5

// Manager owns the conversation lifecycle: it creates conversations,
// appends user turns, triggers asynchronous reply generation, and serves
// the latest conversation state.
//
// Post is fire-and-continue: it returns once the user message is appended,
// before the assistant reply exists. State is therefore an inherently racy
// poll operation; callers retry until a new message appears.
type Manager struct {
	conversations storage.ConversationRepository
	searcher      *search.Searcher
	chatter       ai.Chatter
	instructions  string
	pool          *ants.Pool
	maxContext    int
	logger        *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager) error

// WithInstructions overrides the instructions given to new conversations.
func WithInstructions(instructions string) Option {
	return func(m *Manager) error {
		if instructions != "" {
			m.instructions = instructions
		}
		return nil
	}
}

// WithPoolSize sets the worker pool size for reply generation.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(m *Manager) error {
		if size < 1 {
			size = 1
		}
		if m.pool != nil {
			m.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		m.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger
		return nil
	}
}

// NewManager creates a conversation manager.
func NewManager(conversations storage.ConversationRepository, searcher *search.Searcher, chatter ai.Chatter, opts ...Option) (*Manager, error) {
	if conversations == nil {
		return nil, ErrConversationRepositoryRequired
	}
	if searcher == nil {
		return nil, ErrSearcherRequired
	}
	if chatter == nil {
		return nil, ErrChatterRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		conversations: conversations,
		searcher:      searcher,
		chatter:       chatter,
		instructions:  DefaultInstructions,
		pool:          pool,
		maxContext:    defaultContextDocuments,
		logger:        slog.Default().With("component", "assistant"),
	}

	for _, opt := range opts {
		if optErr := opt(m); optErr != nil {
			m.pool.Release()
			return nil, optErr
		}
	}

	return m, nil
}

// Release releases the reply worker pool.
// The manager should not be used after calling Release.
func (m *Manager) Release() {
	m.pool.Release()
}

// Create establishes a conversation under the client-supplied id with the
// configured instructions. No existence check is performed: recreating an
// id replaces its instructions and clears its history.
func (m *Manager) Create(ctx context.Context, id string) (*core.Conversation, error) {
	conversation := &core.Conversation{
		Id:           id,
		Instructions: m.instructions,
	}
	return m.conversations.CreateConversation(ctx, conversation)
}

// Post appends a user turn and schedules asynchronous reply generation.
// It returns as soon as the user message is durably appended; the assistant
// reply is appended later by a pool worker. Reply generation errors are
// logged, never surfaced to the poster.
//
// The conversation must already exist; posting to an unknown id returns
// storage.ErrNotFound.
func (m *Manager) Post(ctx context.Context, id string, body []byte) (string, error) {
	question := ExtractQuestion(body)
	if question == "" {
		return "", ErrEmptyPrompt
	}

	message := &core.Message{
		Role:      core.RoleUser,
		Content:   question,
		Timestamp: time.Now().UTC(),
	}
	if _, err := m.conversations.AppendMessages(ctx, id, message); err != nil {
		return "", err
	}

	submitErr := m.pool.Submit(func() {
		m.generateReply(context.Background(), id)
	})
	if submitErr != nil {
		// The user turn is already persisted; the reply simply never
		// lands and the client keeps polling.
		m.logger.Error("error scheduling reply generation", "conversation", id, "err", submitErr)
	}

	return question, nil
}

// State returns the content-bearing latest message at or before upTo.
// A zero upTo means no bound. Returns storage.ErrNoMessages while the
// conversation is empty, which callers treat as "poll again".
func (m *Manager) State(ctx context.Context, id string, upTo time.Time) (*core.Message, error) {
	return m.conversations.LatestMessage(ctx, id, upTo)
}

// generateReply produces the assistant turn for the newest user message.
func (m *Manager) generateReply(ctx context.Context, id string) {
	conversation, err := m.conversations.GetConversation(ctx, id)
	if err != nil {
		m.logger.Error("error loading conversation", "conversation", id, "err", err)
		return
	}

	messages, err := m.conversations.GetMessages(ctx, id)
	if err != nil {
		m.logger.Error("error loading messages", "conversation", id, "err", err)
		return
	}
	if len(messages) == 0 {
		return
	}

	turns := make([]ai.Turn, 0, len(messages))
	for _, message := range messages {
		turns = append(turns, ai.Turn{
			FromUser: message.Role == core.RoleUser,
			Content:  message.Content,
		})
	}

	// Retrieval-augment the newest user turn
	last := &turns[len(turns)-1]
	if last.FromUser {
		matches, err := m.searcher.FindSimilar(ctx, last.Content, m.maxContext)
		if err != nil {
			m.logger.Warn("retrieval failed, answering without context", "conversation", id, "err", err)
		} else if len(matches) > 0 {
			last.Content = search.BuildQuestionPrompt(last.Content, matches)
		}
	}

	reply, err := m.chatter.Chat(ctx, conversation.Instructions, turns)
	if err != nil {
		m.logger.Error("error generating reply", "conversation", id, "err", err)
		return
	}
	if reply == "" {
		m.logger.Warn("model returned empty reply", "conversation", id)
		return
	}

	message := &core.Message{
		Role:      core.RoleAssistant,
		Content:   reply,
		Timestamp: time.Now().UTC(),
	}
	if _, err := m.conversations.AppendMessages(ctx, id, message); err != nil {
		m.logger.Error("error appending reply", "conversation", id, "err", err)
	}
}

// ExtractQuestion pulls the question out of a raw request body.
// A body that looks like a JSON object or array is parsed and the "prompt"
// field is used; anything else (including JSON that fails to parse) is
// treated as plain text and trimmed.
func ExtractQuestion(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ""
	}

	looksJSON := (strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}")) ||
		(strings.HasPrefix(text, "[") && strings.HasSuffix(text, "]"))
	if looksJSON {
		var parsed struct {
			Prompt string `json:"prompt"`
		}
		if err := json.Unmarshal([]byte(text), &parsed); err == nil && parsed.Prompt != "" {
			return strings.TrimSpace(parsed.Prompt)
		}
	}

	return text
}
