package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	anthropicAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicAPIVersion = "2023-06-01"
)

// AnthropicChatModel implements ports.ChatModel against Anthropic's Messages API.
// It is an alternative synthesis backend to OllamaChatModel, selected by
// config.ChatModelConfig.Provider == "anthropic".
type AnthropicChatModel struct {
	apiKey      string
	model       string
	maxTokens   int
	temperature float64
	client      *http.Client
}

// NewAnthropicChatModel creates a ChatModel backed by the Anthropic API.
func NewAnthropicChatModel(apiKey, model string, maxTokens int, temperature float64, timeout time.Duration) *AnthropicChatModel {
	return &AnthropicChatModel{
		apiKey:      apiKey,
		model:       model,
		maxTokens:   maxTokens,
		temperature: temperature,
		client:      &http.Client{Timeout: timeout},
	}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type anthropicError struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate performs a single-turn completion.
func (m *AnthropicChatModel) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if m.apiKey == "" {
		return "", &ErrProviderUnavailable{Provider: "anthropic", Reason: "no API key configured"}
	}

	reqBody := anthropicRequest{
		Model:       m.model,
		MaxTokens:   m.maxTokens,
		Temperature: m.temperature,
		System:      systemPrompt,
		Messages:    []anthropicMessage{{Role: "user", Content: userPrompt}},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, anthropicAPIURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", m.apiKey)
	req.Header.Set("anthropic-version", anthropicAPIVersion)

	resp, err := m.client.Do(req)
	if err != nil {
		return "", &ErrProviderUnavailable{Provider: "anthropic", Reason: err.Error()}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr anthropicError
		if err := json.Unmarshal(bodyBytes, &apiErr); err == nil && apiErr.Error.Message != "" {
			if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
				return "", &ErrProviderUnavailable{Provider: "anthropic", Reason: apiErr.Error.Message}
			}
			return "", fmt.Errorf("anthropic API error: %s - %s", apiErr.Error.Type, apiErr.Error.Message)
		}
		return "", fmt.Errorf("anthropic returned status %d: %s", resp.StatusCode, truncate(string(bodyBytes), 500))
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return "", fmt.Errorf("decode anthropic response: %w", err)
	}
	if len(parsed.Content) == 0 {
		return "", fmt.Errorf("empty response from anthropic")
	}

	return parsed.Content[0].Text, nil
}
