package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radbot/radbot/internal/common/logger"
	"github.com/radbot/radbot/internal/llm"
)

// maxResultBytes caps the serialized result fed back to the model.
// Full results still flow through events untouched.
const maxResultBytes = 8 * 1024

// Registry holds the tool descriptors and invokes them with a timeout.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Descriptor
	logger *logger.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logger.Logger) *Registry {
	return &Registry{tools: make(map[string]*Descriptor), logger: log}
}

// Register adds a descriptor. Re-registering a name replaces it.
func (r *Registry) Register(d *Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[d.Name] = d
}

// Get returns the descriptor for a name, if registered.
func (r *Registry) Get(name string) (*Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.tools[name]
	return d, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns model-facing definitions for the named tools,
// preserving the requested order. Unknown names are skipped.
func (r *Registry) Definitions(names []string) []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]llm.ToolDefinition, 0, len(names))
	for _, name := range names {
		d, ok := r.tools[name]
		if !ok {
			continue
		}
		defs = append(defs, llm.ToolDefinition{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.Parameters,
		})
	}
	return defs
}

// Invoke runs one tool call with the given timeout. It never returns an
// error to the caller: every failure mode becomes an error Result so the
// model sees it and can recover.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any, ic *InvocationContext, timeout time.Duration) Result {
	d, ok := r.Get(name)
	if !ok {
		return Fail(KindToolError, "unknown tool %q", name)
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := validateArgs(d.Parameters, args); err != nil {
		return Fail(KindToolError, "invalid arguments for %s: %v", name, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("tool panicked",
					zap.String("tool", name), zap.Any("panic", rec))
				done <- Fail(KindToolError, "tool %s panicked", name)
			}
		}()
		done <- d.Invoke(callCtx, args, ic)
	}()

	select {
	case res := <-done:
		return res
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return Fail(KindToolError, "tool %s canceled", name)
		}
		return Fail(KindToolTimeout, "tool %s exceeded %s", name, timeout)
	}
}

// Serialize renders a result as compact JSON for the model turn,
// truncating oversized payloads.
func Serialize(res Result) string {
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Sprintf(`{"status":"error","kind":%q,"message":"unserializable result"}`, KindToolError)
	}
	if len(data) <= maxResultBytes {
		return string(data)
	}
	trimmed := Result{
		"status":    res["status"],
		"truncated": true,
		"preview":   string(data[:maxResultBytes]),
	}
	if kind, ok := res["kind"]; ok {
		trimmed["kind"] = kind
	}
	data, _ = json.Marshal(trimmed)
	return string(data)
}
