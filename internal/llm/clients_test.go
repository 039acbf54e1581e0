package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOllamaClientGenerate(t *testing.T) {
	var gotRequest ollamaRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))

		_ = json.NewEncoder(w).Encode(ollamaResponse{
			Message: ollamaMessage{
				Role:    "assistant",
				Content: "checking the weather",
				ToolCalls: []ollamaToolCall{{
					Function: ollamaToolCallFunction{
						Name:      "get_time",
						Arguments: map[string]any{"timezone": "UTC"},
					},
				}},
			},
			Done: true,
		})
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, "qwen3:14b")
	reply, err := client.Generate(context.Background(),
		[]Message{{Role: RoleUser, Content: "what time is it"}},
		[]ToolDefinition{{Name: "get_time", Description: "current time", Parameters: map[string]any{"type": "object"}}},
	)
	require.NoError(t, err)

	assert.Equal(t, "qwen3:14b", gotRequest.Model)
	assert.False(t, gotRequest.Stream)
	require.Len(t, gotRequest.Tools, 1)
	assert.Equal(t, "function", gotRequest.Tools[0].Type)

	assert.Equal(t, "checking the weather", reply.Text)
	require.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, "get_time", reply.ToolCalls[0].Name)
	assert.Equal(t, "UTC", reply.ToolCalls[0].Arguments["timezone"])
}

func TestOllamaClientErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(ollamaResponse{Error: "model not found"})
	}))
	defer server.Close()

	client := NewOllamaClient(server.URL, "nope")
	_, err := client.Generate(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not found")
}

func TestOpenAIClientGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "gpt-4o-mini", req.Model)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "memory_search", "arguments": "{\"query\":\"wifi\"}"}
					}]
				},
				"finish_reason": "tool_calls"
			}]
		}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL+"/v1", "gpt-4o-mini", "sk-test")
	reply, err := client.Generate(context.Background(),
		[]Message{{Role: RoleUser, Content: "find the wifi password"}}, nil)
	require.NoError(t, err)

	require.Len(t, reply.ToolCalls, 1)
	assert.Equal(t, "call_1", reply.ToolCalls[0].ID)
	assert.Equal(t, "memory_search", reply.ToolCalls[0].Name)
	assert.Equal(t, "wifi", reply.ToolCalls[0].Arguments["query"])
}

func TestOpenAIClientMalformedArgumentsBecomeEmptyMap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{
				"message": {
					"role": "assistant",
					"content": "",
					"tool_calls": [{
						"id": "call_1",
						"type": "function",
						"function": {"name": "get_time", "arguments": "{broken"}
					}]
				},
				"finish_reason": "tool_calls"
			}]
		}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL, "gpt-4o-mini", "")
	reply, err := client.Generate(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, reply.ToolCalls, 1)
	assert.NotNil(t, reply.ToolCalls[0].Arguments)
	assert.Empty(t, reply.ToolCalls[0].Arguments)
}

func TestOpenAIClientAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limited", "type": "rate_limit"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(server.URL, "gpt-4o-mini", "sk")
	_, err := client.Generate(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
