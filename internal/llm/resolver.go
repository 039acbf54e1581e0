package llm

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/radbot/radbot/internal/common/logger"
)

// Model reference prefixes that route to the local Ollama endpoint.
var ollamaPrefixes = []string{"ollama_chat/", "ollama/"}

const (
	defaultMaxAttempts = 3
	backoffBase        = 500 * time.Millisecond
	backoffCap         = 5 * time.Second
)

// Settings are the connection parameters model clients are built from. They
// come from the runtime config plane so hot reloads take effect.
type Settings struct {
	OllamaBaseURL   string
	ProviderBaseURL string
	APIKey          string
}

// SettingsSource returns the current settings. Called on every cache miss.
type SettingsSource func() Settings

// Resolver maps model references to clients, caps concurrent model calls,
// and retries transient provider failures with jittered backoff.
type Resolver struct {
	source      SettingsSource
	sem         *semaphore.Weighted
	maxAttempts int
	logger      *logger.Logger

	mu      sync.Mutex
	clients map[string]ModelClient
}

// NewResolver creates a resolver with the given concurrency cap.
func NewResolver(source SettingsSource, maxConcurrent int, log *logger.Logger) *Resolver {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Resolver{
		source:      source,
		sem:         semaphore.NewWeighted(int64(maxConcurrent)),
		maxAttempts: defaultMaxAttempts,
		logger:      log,
		clients:     make(map[string]ModelClient),
	}
}

// Resolve returns the client for a model reference, building and caching it
// on first use. ollama_chat/ and ollama/ prefixes route to the local Ollama
// endpoint; everything else goes to the hosted OpenAI-compatible provider.
func (r *Resolver) Resolve(modelRef string) ModelClient {
	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[modelRef]; ok {
		return client
	}

	settings := r.source()
	var client ModelClient
	if name, ok := stripOllamaPrefix(modelRef); ok {
		client = NewOllamaClient(settings.OllamaBaseURL, name)
	} else {
		client = NewOpenAIClient(settings.ProviderBaseURL, modelRef, settings.APIKey)
	}
	r.clients[modelRef] = client
	return client
}

// InvalidateCache drops all cached clients. Wired to config.changed.agent so
// the next call re-reads base URLs and the API key.
func (r *Resolver) InvalidateCache() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients = make(map[string]ModelClient)
	r.logger.Debug("model client cache invalidated")
}

// Generate resolves the model and calls it under the concurrency cap,
// retrying transient failures. The returned error is the last attempt's when
// all retries are exhausted.
func (r *Resolver) Generate(ctx context.Context, modelRef string, messages []Message, tools []ToolDefinition) (*Reply, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer r.sem.Release(1)

	client := r.Resolve(modelRef)

	var lastErr error
	for attempt := 0; attempt < r.maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(backoff(attempt)):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		reply, err := client.Generate(ctx, messages, tools)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Warn("model call failed",
			zap.String("model", modelRef),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return nil, fmt.Errorf("model %s unavailable after %d attempts: %w", modelRef, r.maxAttempts, lastErr)
}

func stripOllamaPrefix(modelRef string) (string, bool) {
	for _, prefix := range ollamaPrefixes {
		if strings.HasPrefix(modelRef, prefix) {
			return strings.TrimPrefix(modelRef, prefix), true
		}
	}
	return modelRef, false
}

// backoff returns the jittered exponential delay before the given attempt.
func backoff(attempt int) time.Duration {
	d := backoffBase << (attempt - 1)
	if d > backoffCap {
		d = backoffCap
	}
	return d/2 + time.Duration(rand.Int63n(int64(d/2)+1))
}
