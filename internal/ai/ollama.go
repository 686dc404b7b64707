package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	ollamaapi "github.com/ollama/ollama/api"
	"github.com/rs/zerolog"

	"github.com/SKNETWORKS-FAMILY-AICAMP/traffic-accident-advisor/internal/observability"
)

// OllamaChatModel implements ports.ChatModel against a local Ollama server's
// /api/chat endpoint.
type OllamaChatModel struct {
	endpoint    string
	model       string
	temperature float64
	maxTokens   int
	client      *http.Client
	logger      zerolog.Logger
}

// NewOllamaChatModel creates a ChatModel backed by Ollama.
func NewOllamaChatModel(endpoint, model string, temperature float64, maxTokens int, timeout time.Duration) *OllamaChatModel {
	return &OllamaChatModel{
		endpoint:    endpoint,
		model:       model,
		temperature: temperature,
		maxTokens:   maxTokens,
		client:      &http.Client{Timeout: timeout},
		logger:      observability.Logger("ai.ollama_chat"),
	}
}

type ollamaChatRequest struct {
	Model    string                 `json:"model"`
	Messages []ollamaChatMessage    `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResponse struct {
	Message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"message"`
	Done bool `json:"done"`
}

// Generate performs a single non-streaming chat completion.
func (m *OllamaChatModel) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	reqBody := ollamaChatRequest{
		Model: m.model,
		Messages: []ollamaChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
		Stream: false,
		Options: map[string]interface{}{
			"temperature": m.temperature,
			"num_predict": m.maxTokens,
		},
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := m.client.Do(req)
	if err != nil {
		return "", &ErrProviderUnavailable{Provider: "ollama", Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("ollama chat returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var chatResp ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}

	m.logger.Debug().
		Str("model", m.model).
		Dur("duration", time.Since(start)).
		Int("response_len", len(chatResp.Message.Content)).
		Msg("synthesis call completed")

	return chatResp.Message.Content, nil
}

// OllamaEmbedder implements ports.Embedder using the ollama/ollama Go client.
type OllamaEmbedder struct {
	client    *ollamaapi.Client
	model     string
	dimension int
	batchSize int
	logger    zerolog.Logger
	mu        sync.RWMutex
	ready     bool
}

// NewOllamaEmbedder creates an Embedder backed by Ollama.
func NewOllamaEmbedder(endpoint, model string, dimension, batchSize int) (*OllamaEmbedder, error) {
	ollamaURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama endpoint: %w", err)
	}

	return &OllamaEmbedder{
		client:    ollamaapi.NewClient(ollamaURL, http.DefaultClient),
		model:     model,
		dimension: dimension,
		batchSize: batchSize,
		logger:    observability.Logger("ai.ollama_embed"),
	}, nil
}

// Dimension returns the embedding vector size.
func (e *OllamaEmbedder) Dimension() int {
	return e.dimension
}

func (e *OllamaEmbedder) ensureModel(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ready {
		return nil
	}

	if _, err := e.client.Show(ctx, &ollamaapi.ShowRequest{Model: e.model}); err == nil {
		e.ready = true
		return nil
	}

	e.logger.Info().Str("model", e.model).Msg("pulling embedding model")
	pullReq := &ollamaapi.PullRequest{Model: e.model}
	if err := e.client.Pull(ctx, pullReq, func(ollamaapi.ProgressResponse) error { return nil }); err != nil {
		return fmt.Errorf("pull embedding model %s: %w", e.model, err)
	}

	e.ready = true
	return nil
}

// Embed embeds a single text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return vecs[0], nil
}

// EmbedBatch embeds multiple texts, bounded by the configured batch size.
func (e *OllamaEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	if err := e.ensureModel(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	results := make([][]float32, len(texts))
	errs := make([]error, len(texts))

	var wg sync.WaitGroup
	sem := make(chan struct{}, e.batchSize)

	for i, text := range texts {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, txt string) {
			defer wg.Done()
			defer func() { <-sem }()

			vec, err := e.embedSingle(ctx, txt)
			if err != nil {
				errs[idx] = err
				return
			}
			results[idx] = vec
		}(i, text)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("embedding failed for text %d: %w", i, err)
		}
	}

	e.logger.Debug().Int("count", len(texts)).Dur("duration", time.Since(start)).Msg("batch embedding completed")
	return results, nil
}

func (e *OllamaEmbedder) embedSingle(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embed(ctx, &ollamaapi.EmbedRequest{Model: e.model, Input: text})
	if err != nil {
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embedding response")
	}

	vec := make([]float32, len(resp.Embeddings[0]))
	for i, v := range resp.Embeddings[0] {
		vec[i] = float32(v)
	}
	return vec, nil
}
