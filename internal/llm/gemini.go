package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type GeminiClient struct {
	client    *genai.Client
	modelName string
	maxTokens int32
}

func NewGeminiClient(ctx context.Context, apiKey, modelName string, maxTokens int) (*GeminiClient, error) {
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &GeminiClient{client: cl, modelName: modelName, maxTokens: int32(maxTokens)}, nil
}

func (g *GeminiClient) Name() string {
	return "gemini"
}

func (g *GeminiClient) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Generate replays all but the last turn as chat history and sends the
// last one.
func (g *GeminiClient) Generate(ctx context.Context, turns []Turn) (string, error) {
	if len(turns) == 0 {
		return "", fmt.Errorf("gemini: no turns to send")
	}

	m := g.client.GenerativeModel(g.modelName)
	if g.maxTokens > 0 {
		m.SetMaxOutputTokens(g.maxTokens)
	}

	cs := m.StartChat()
	cs.History = geminiHistory(turns[:len(turns)-1])

	resp, err := cs.SendMessage(ctx, genai.Text(turns[len(turns)-1].Content))
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini returned no candidates")
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	return b.String(), nil
}

func geminiHistory(turns []Turn) []*genai.Content {
	history := make([]*genai.Content, 0, len(turns))
	for _, t := range turns {
		role := "user"
		if t.Role == RoleAssistant {
			role = "model"
		}
		history = append(history, &genai.Content{
			Role:  role,
			Parts: []genai.Part{genai.Text(t.Content)},
		})
	}
	return history
}
