package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radbot/radbot/internal/common/logger"
)

func newTestRegistry() *Registry {
	return NewRegistry(logger.Default())
}

func echoTool() *Descriptor {
	return &Descriptor{
		Name:        "echo",
		Description: "echoes its input",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"text":  map[string]any{"type": "string"},
				"count": map[string]any{"type": "integer"},
			},
			"required": []string{"text"},
		},
		Invoke: func(ctx context.Context, args map[string]any, ic *InvocationContext) Result {
			return OK(map[string]any{"text": args["text"]})
		},
	}
}

func TestInvokeSuccess(t *testing.T) {
	r := newTestRegistry()
	r.Register(echoTool())

	res := r.Invoke(context.Background(), "echo",
		map[string]any{"text": "hi"}, &InvocationContext{}, time.Second)
	require.False(t, res.IsError())
	assert.Equal(t, "hi", res["text"])
}

func TestInvokeUnknownTool(t *testing.T) {
	r := newTestRegistry()

	res := r.Invoke(context.Background(), "nope", nil, &InvocationContext{}, time.Second)
	require.True(t, res.IsError())
	assert.Equal(t, KindToolError, res["kind"])
}

func TestInvokeValidatesArguments(t *testing.T) {
	r := newTestRegistry()
	r.Register(echoTool())

	res := r.Invoke(context.Background(), "echo", map[string]any{}, &InvocationContext{}, time.Second)
	require.True(t, res.IsError())
	assert.Contains(t, res["message"], "text")

	res = r.Invoke(context.Background(), "echo",
		map[string]any{"text": "hi", "count": "three"}, &InvocationContext{}, time.Second)
	require.True(t, res.IsError())
	assert.Contains(t, res["message"], "count")
}

func TestInvokeTimeout(t *testing.T) {
	r := newTestRegistry()
	r.Register(&Descriptor{
		Name: "slow",
		Invoke: func(ctx context.Context, args map[string]any, ic *InvocationContext) Result {
			select {
			case <-time.After(5 * time.Second):
				return OK(nil)
			case <-ctx.Done():
				return Fail(KindToolError, "interrupted")
			}
		},
	})

	res := r.Invoke(context.Background(), "slow", nil, &InvocationContext{}, 20*time.Millisecond)
	require.True(t, res.IsError())
	assert.Equal(t, KindToolTimeout, res["kind"])
}

func TestInvokeRecoversPanic(t *testing.T) {
	r := newTestRegistry()
	r.Register(&Descriptor{
		Name: "boom",
		Invoke: func(ctx context.Context, args map[string]any, ic *InvocationContext) Result {
			panic("kaboom")
		},
	})

	res := r.Invoke(context.Background(), "boom", nil, &InvocationContext{}, time.Second)
	require.True(t, res.IsError())
	assert.Contains(t, res["message"], "panicked")
}

func TestDefinitionsPreserveOrderAndSkipUnknown(t *testing.T) {
	r := newTestRegistry()
	RegisterBuiltins(r)

	defs := r.Definitions([]string{"get_time", "memory_search", "missing"})
	require.Len(t, defs, 2)
	assert.Equal(t, "get_time", defs[0].Name)
	assert.Equal(t, "memory_search", defs[1].Name)
}

func TestSerializeTruncatesOversizedResults(t *testing.T) {
	big := OK(map[string]any{"blob": strings.Repeat("x", maxResultBytes*2)})

	out := Serialize(big)
	assert.Less(t, len(out), maxResultBytes*2)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, true, decoded["truncated"])
}
