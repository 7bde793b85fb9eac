package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HuggingFaceClient talks to the OpenAI-compatible chat completions endpoint
// exposed by the Hugging Face inference router.
type HuggingFaceClient struct {
	baseURL    string
	token      string
	model      string
	maxTokens  int
	httpClient *http.Client
}

func NewHuggingFaceClient(baseURL, token, model string, maxTokens int, timeout time.Duration) *HuggingFaceClient {
	return &HuggingFaceClient{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		token:     token,
		model:     model,
		maxTokens: maxTokens,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type chatCompletionRequest struct {
	Model     string `json:"model"`
	Messages  []Turn `json:"messages"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *HuggingFaceClient) Name() string {
	return "huggingface"
}

func (c *HuggingFaceClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *HuggingFaceClient) Generate(ctx context.Context, turns []Turn) (string, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model:     c.model,
		Messages:  turns,
		MaxTokens: c.maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("huggingface returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("huggingface returned no choices")
	}

	return out.Choices[0].Message.Content, nil
}
