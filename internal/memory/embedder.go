// Package memory provides scoped semantic memory over an embedding model
// and a vector store.
package memory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radbot/radbot/internal/common/logger"
)

// Embedder turns text into a fixed-dimension vector. Embeddings are
// deterministic for a given model and input.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// OllamaEmbedder calls the local Ollama /api/embeddings endpoint.
//
// Requests are serialized: Ollama's llama runner aborts when it receives
// concurrent embedding requests.
type OllamaEmbedder struct {
	baseURL    string
	model      string
	dimension  int
	maxRetries int
	client     *http.Client
	logger     *logger.Logger

	mu sync.Mutex
}

// NewOllamaEmbedder creates an embedder against the given Ollama base URL.
func NewOllamaEmbedder(baseURL, model string, dimension int, log *logger.Logger) *OllamaEmbedder {
	return &OllamaEmbedder{
		baseURL:    baseURL,
		model:      model,
		dimension:  dimension,
		maxRetries: 3,
		client:     &http.Client{Timeout: 30 * time.Second},
		logger:     log,
	}
}

type embedRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type embedResponse struct {
	Embedding []float32 `json:"embedding"`
}

// Embed returns the embedding vector for text.
func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	body, err := json.Marshal(embedRequest{Model: e.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	var resp *http.Response
	for attempt := 0; attempt < e.maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			e.baseURL+"/api/embeddings", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("build embed request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err = e.client.Do(req)
		if err == nil {
			break
		}
		e.logger.Debug("embedding request retry",
			zap.Int("attempt", attempt+1), zap.Error(err))
		if attempt < e.maxRetries-1 {
			select {
			case <-time.After(time.Duration(attempt+1) * time.Second):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		return nil, fmt.Errorf("embed request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("ollama embeddings returned status %d: %s", resp.StatusCode, string(detail))
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(parsed.Embedding) == 0 {
		return nil, fmt.Errorf("received empty embedding from ollama")
	}
	return parsed.Embedding, nil
}

// Dimension returns the configured vector dimension.
func (e *OllamaEmbedder) Dimension() int {
	return e.dimension
}
