package assistant

import (
	"context"
	"testing"
	"time"

	"github.com/poiesic/docqa/ai"
	"github.com/poiesic/docqa/ai/mock"
	"github.com/poiesic/docqa/core"
	"github.com/poiesic/docqa/search"
	"github.com/poiesic/docqa/storage"
	"github.com/poiesic/docqa/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type managerFixture struct {
	manager *Manager
	docs    storage.DocumentRepository
	convs   storage.ConversationRepository
	chatter *mock.MockChatter
}

func newManagerFixture(t *testing.T, opts ...Option) *managerFixture {
	t.Helper()

	docRepo, convRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() {
		convRepo.Close()
		docRepo.Close()
		backend.Close()
	})

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}

	searcher, err := search.NewSearcher(docRepo, embedder)
	require.NoError(t, err)

	chatter := mock.NewMockChatter()
	manager, err := NewManager(convRepo, searcher, chatter, opts...)
	require.NoError(t, err)
	t.Cleanup(manager.Release)

	return &managerFixture{manager: manager, docs: docRepo, convs: convRepo, chatter: chatter}
}

func TestNewManager_Validation(t *testing.T) {
	f := newManagerFixture(t)

	searcher, err := search.NewSearcher(f.docs, mock.NewMockEmbedder())
	require.NoError(t, err)

	_, err = NewManager(nil, searcher, mock.NewMockChatter())
	assert.Equal(t, ErrConversationRepositoryRequired, err)

	_, err = NewManager(f.convs, nil, mock.NewMockChatter())
	assert.Equal(t, ErrSearcherRequired, err)

	_, err = NewManager(f.convs, searcher, nil)
	assert.Equal(t, ErrChatterRequired, err)
}

func TestCreate(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	conversation, err := f.manager.Create(ctx, "assistant-1")
	require.NoError(t, err)
	assert.Equal(t, "assistant-1", conversation.Id)
	assert.Equal(t, DefaultInstructions, conversation.Instructions)
}

func TestCreate_CustomInstructions(t *testing.T) {
	f := newManagerFixture(t, WithInstructions("Answer in haiku."))
	ctx := context.Background()

	conversation, err := f.manager.Create(ctx, "assistant-1")
	require.NoError(t, err)
	assert.Equal(t, "Answer in haiku.", conversation.Instructions)
}

func TestPostAndPoll(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	_, err := f.manager.Create(ctx, "assistant-1")
	require.NoError(t, err)

	question, err := f.manager.Post(ctx, "assistant-1", []byte("what is the lighthouse?"))
	require.NoError(t, err)
	assert.Equal(t, "what is the lighthouse?", question)

	// The reply lands asynchronously; poll like a client would
	require.Eventually(t, func() bool {
		message, err := f.manager.State(ctx, "assistant-1", time.Time{})
		return err == nil && message.Role == core.RoleAssistant
	}, 5*time.Second, 10*time.Millisecond)

	message, err := f.manager.State(ctx, "assistant-1", time.Time{})
	require.NoError(t, err)
	assert.Equal(t, "reply to: what is the lighthouse?", message.Content)
}

func TestPost_RetrievalAugmentsPrompt(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	// Indexed with the same vector the embedder returns for every text,
	// so retrieval always hits it
	_, err := f.docs.UpsertDocument(ctx, &core.Document{
		Path:    "lighthouse.txt",
		Content: "the keeper lived alone",
		Vector:  []float32{1, 0, 0},
	})
	require.NoError(t, err)

	prompts := make(chan string, 1)
	f.chatter.ChatFunc = func(ctx context.Context, instructions string, turns []ai.Turn) (string, error) {
		prompts <- turns[len(turns)-1].Content
		return "an answer", nil
	}

	_, err = f.manager.Create(ctx, "assistant-1")
	require.NoError(t, err)
	_, err = f.manager.Post(ctx, "assistant-1", []byte("who kept the lighthouse?"))
	require.NoError(t, err)

	select {
	case prompt := <-prompts:
		assert.Contains(t, prompt, "[Source: lighthouse.txt]")
		assert.Contains(t, prompt, "the keeper lived alone")
		assert.Contains(t, prompt, "Question: who kept the lighthouse?")
	case <-time.After(5 * time.Second):
		t.Fatal("reply generation never ran")
	}
}

func TestPost_UnknownConversation(t *testing.T) {
	f := newManagerFixture(t)

	_, err := f.manager.Post(context.Background(), "absent", []byte("hello"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPost_EmptyBody(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	_, err := f.manager.Create(ctx, "assistant-1")
	require.NoError(t, err)

	_, err = f.manager.Post(ctx, "assistant-1", []byte("   "))
	assert.ErrorIs(t, err, ErrEmptyPrompt)
}

func TestState_EmptyConversation(t *testing.T) {
	f := newManagerFixture(t)
	ctx := context.Background()

	_, err := f.manager.Create(ctx, "assistant-1")
	require.NoError(t, err)

	_, err = f.manager.State(ctx, "assistant-1", time.Time{})
	assert.ErrorIs(t, err, storage.ErrNoMessages)
}

func TestExtractQuestion(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"json object prompt", `{"prompt": "what is this?"}`, "what is this?"},
		{"json prompt trimmed", `{"prompt": "  spaced  "}`, "spaced"},
		{"json without prompt falls back to raw", `{"question": "ignored"}`, `{"question": "ignored"}`},
		{"malformed json falls back to raw", `{"prompt": broken`, `{"prompt": broken`},
		{"plain text", "just a question", "just a question"},
		{"plain text trimmed", "  padded  \n", "padded"},
		{"empty", "", ""},
		{"whitespace only", "   \n\t", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractQuestion([]byte(tt.body)))
		})
	}
}
