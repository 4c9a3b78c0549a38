package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/amirphl/Kitsune-CRM/config"
)

// CompletionService produces model-generated text for the AI-assisted
// endpoints. Callers always carry a deterministic fallback, so failures
// here are never fatal.
type CompletionService interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// CompletionServiceImpl implements CompletionService against a
// chat-completions style HTTP API
type CompletionServiceImpl struct {
	config *config.AIConfig
	client *http.Client
}

type completionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string              `json:"model"`
	Messages    []completionMessage `json:"messages"`
	Temperature float64             `json:"temperature"`
}

type completionResponse struct {
	Choices []struct {
		Message completionMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// NewCompletionService creates a new completion service instance
func NewCompletionService(cfg *config.AIConfig) CompletionService {
	return &CompletionServiceImpl{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// Complete sends the prompt pair and returns the first choice's content
func (s *CompletionServiceImpl) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	request := completionRequest{
		Model: s.config.Model,
		Messages: []completionMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Temperature: s.config.Temperature,
	}

	requestBody, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	url := fmt.Sprintf("https://%s/v1/chat/completions", s.config.ProviderDomain)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send completion request: %w", err)
	}
	defer resp.Body.Close()

	var result completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}

	if result.Error != nil {
		return "", fmt.Errorf("completion provider error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("completion response carried no choices")
	}

	return result.Choices[0].Message.Content, nil
}

// MockCompletionService implements CompletionService for testing
type MockCompletionService struct {
	Responses []string
	Err       error
	Prompts   []string

	next int
}

// NewMockCompletionService creates a new mock completion service
func NewMockCompletionService(responses ...string) *MockCompletionService {
	return &MockCompletionService{Responses: responses}
}

// Complete replays the scripted responses in order
func (m *MockCompletionService) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	m.Prompts = append(m.Prompts, userPrompt)

	if m.Err != nil {
		return "", m.Err
	}
	if m.next >= len(m.Responses) {
		return "", fmt.Errorf("mock completion exhausted after %d responses", len(m.Responses))
	}

	out := m.Responses[m.next]
	m.next++
	return out, nil
}
