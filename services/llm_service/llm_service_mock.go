package llm_service

import (
	"context"
	"sync"
)

type MockChatService struct {
	ChatFunc func(ctx context.Context, messages []Message) (string, error)

	mu    sync.Mutex
	calls [][]Message
}

func (m *MockChatService) Chat(ctx context.Context, messages []Message) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, messages)
	m.mu.Unlock()

	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, messages)
	}
	return "mock response", nil
}

// Calls returns the message lists passed to Chat so far.
func (m *MockChatService) Calls() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]Message(nil), m.calls...)
}
