// Package tools holds the declarative tool registry the agent runtime
// invokes on behalf of the model.
package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/radbot/radbot/internal/configstore"
	"github.com/radbot/radbot/internal/memory"
	"github.com/radbot/radbot/internal/todo"
)

// Error kinds reported inside tool results.
const (
	KindToolError         = "tool-error"
	KindToolTimeout       = "tool-timeout"
	KindCredentialMissing = "credential-missing"
	KindVectorError       = "vector-error"
)

// Result is the uniform tool result payload: {status: success|error, ...}.
type Result map[string]any

// OK builds a success result with extra fields.
func OK(fields map[string]any) Result {
	r := Result{"status": "success"}
	for k, v := range fields {
		r[k] = v
	}
	return r
}

// Fail builds an error result of the given kind.
func Fail(kind, format string, args ...any) Result {
	return Result{
		"status":  "error",
		"kind":    kind,
		"message": fmt.Sprintf(format, args...),
	}
}

// IsError reports whether a result carries an error status.
func (r Result) IsError() bool {
	return r["status"] == "error"
}

// MemoryAPI is the slice of the memory service tools use.
type MemoryAPI interface {
	Search(ctx context.Context, query, scope string, k int) ([]memory.Item, error)
	Store(ctx context.Context, text, sourceAgent, memoryType string) (string, error)
}

// CredentialSource reveals secrets by name.
type CredentialSource interface {
	Reveal(ctx context.Context, name string) (string, error)
}

// RevealCredential looks up a secret for a tool call. A missing store or a
// failed lookup both surface as a credential-missing result so the model can
// tell the user which secret to configure. The second return is nil on
// success.
func RevealCredential(ctx context.Context, ic *InvocationContext, name string) (string, Result) {
	if ic.Credentials == nil {
		return "", Fail(KindCredentialMissing, "credential store is not configured")
	}
	value, err := ic.Credentials.Reveal(ctx, name)
	if err != nil {
		return "", Fail(KindCredentialMissing, "credential %q is not available: %v", name, err)
	}
	return value, nil
}

// TodoAPI is the slice of the todo service tools use.
type TodoAPI interface {
	AddTask(ctx context.Context, req *todo.CreateTaskRequest) (*todo.Task, error)
	ListTasks(ctx context.Context, projectID string, includeDone bool) ([]*todo.Task, error)
	AddReminder(ctx context.Context, req *todo.CreateReminderRequest) (*todo.Reminder, error)
}

// InvocationContext is handed to every invoker for the duration of one call.
// Invokers must not retain it.
type InvocationContext struct {
	SessionID   string
	AgentName   string
	MemoryScope string
	Memory      MemoryAPI
	Todo        TodoAPI
	Config      *configstore.Snapshot
	Credentials CredentialSource
	Now         func() time.Time
}

// Invoker executes one tool call.
type Invoker func(ctx context.Context, args map[string]any, ic *InvocationContext) Result

// Descriptor declares one tool: its schema and its invoker.
type Descriptor struct {
	Name        string
	Description string
	// Parameters is a JSON-schema object: {"type":"object","properties":...}.
	Parameters map[string]any
	Invoke     Invoker
}
