package mock

import (
	"context"
	"fmt"

	"github.com/poiesic/docqa/ai"
)

// MockChatter is a test double for ai.Chatter.
// It allows custom behavior injection via a function field.
type MockChatter struct {
	// ChatFunc is called by Chat if set.
	// If nil, uses default echo behavior.
	ChatFunc func(ctx context.Context, instructions string, turns []ai.Turn) (string, error)

	callCount int
}

// NewMockChatter creates a mock chatter with default echo behavior.
func NewMockChatter() *MockChatter {
	return &MockChatter{}
}

// Chat returns a scripted reply if ChatFunc is set, otherwise echoes the
// final user turn in a recognizable shape.
func (m *MockChatter) Chat(ctx context.Context, instructions string, turns []ai.Turn) (string, error) {
	m.callCount++

	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, instructions, turns)
	}

	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].FromUser {
			return fmt.Sprintf("reply to: %s", turns[i].Content), nil
		}
	}
	return "reply", nil
}

// CallCount returns the number of times Chat was called.
func (m *MockChatter) CallCount() int {
	return m.callCount
}

// Reset clears the call count.
func (m *MockChatter) Reset() {
	m.callCount = 0
	m.ChatFunc = nil
}
