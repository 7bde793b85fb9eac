package llm

import (
	"context"
	"fmt"
)

// MockClient echoes the latest user turn. Used for local runs without a
// provider key.
type MockClient struct{}

func NewMockClient() *MockClient {
	return &MockClient{}
}

func (m *MockClient) Name() string {
	return "mock"
}

func (m *MockClient) Close() error {
	return nil
}

func (m *MockClient) Generate(ctx context.Context, turns []Turn) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(turns) == 0 {
		return "", fmt.Errorf("mock: no turns")
	}
	last := turns[len(turns)-1]
	return fmt.Sprintf("Echo (%d prior turns): %s", len(turns)-1, last.Content), nil
}
