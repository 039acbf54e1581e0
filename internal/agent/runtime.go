package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radbot/radbot/internal/common/logger"
	"github.com/radbot/radbot/internal/configstore"
	"github.com/radbot/radbot/internal/llm"
	"github.com/radbot/radbot/internal/memory"
	"github.com/radbot/radbot/internal/tools"
)

// TransferToolName is the directive the model uses to hand control to
// another agent. It is injected into every agent's tool catalog by the
// runtime and never registered as an ordinary tool.
const TransferToolName = "transfer_to_agent"

// Origin of a trigger.
const (
	OriginChat      = "chat"
	OriginScheduler = "scheduler"
	OriginWebhook   = "webhook"
)

// TriggerEnvelope is one request to run the agent tree.
type TriggerEnvelope struct {
	SessionID    string
	Prompt       string
	Origin       string
	InitialAgent string
}

// RunResult is the terminal state of a trigger.
type RunResult struct {
	FinalText   string
	AgentName   string
	Aborted     bool
	AbortReason string
}

// Generator is the model-call surface the runtime depends on.
type Generator interface {
	Generate(ctx context.Context, modelRef string, messages []llm.Message, tools []llm.ToolDefinition) (*llm.Reply, error)
}

// SnapshotSource returns the current config snapshot.
type SnapshotSource func() *configstore.Snapshot

// Runtime executes triggers turn by turn, interpreting tool calls and
// transfer directives.
type Runtime struct {
	registry    *tools.Registry
	generator   Generator
	snapshot    SnapshotSource
	memory      tools.MemoryAPI
	todo        tools.TodoAPI
	credentials tools.CredentialSource
	logger      *logger.Logger

	mu    sync.RWMutex
	specs map[string]*Spec
}

// NewRuntime creates a runtime over the given agent specs.
func NewRuntime(
	specs map[string]*Spec,
	registry *tools.Registry,
	generator Generator,
	snapshot SnapshotSource,
	mem tools.MemoryAPI,
	td tools.TodoAPI,
	creds tools.CredentialSource,
	log *logger.Logger,
) *Runtime {
	return &Runtime{
		registry:    registry,
		generator:   generator,
		snapshot:    snapshot,
		memory:      mem,
		todo:        td,
		credentials: creds,
		logger:      log,
		specs:       specs,
	}
}

// ReloadSpecs swaps the agent set. Wired to config.changed.agent.
func (r *Runtime) ReloadSpecs(specs map[string]*Spec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.specs = specs
}

// Spec returns the agent spec for a name.
func (r *Runtime) Spec(name string) (*Spec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.specs[name]
	return s, ok
}

// Run executes one trigger to completion or abort. History is the prior
// conversation for the session; events stream to emit in order.
func (r *Runtime) Run(ctx context.Context, env TriggerEnvelope, history []llm.Message, emit EmitFunc) *RunResult {
	snap := r.snapshot()
	defaultModel := snap.String("agent", "default_model", "ollama_chat/qwen3:14b")
	maxTurns := snap.Int("agent", "max_turns", 12)
	budget := time.Duration(snap.Int("agent", "trigger_budget", 300)) * time.Second
	toolTimeout := time.Duration(snap.Int("agent", "tool_timeout", 30)) * time.Second

	activeName := env.InitialAgent
	if activeName == "" {
		activeName = RootAgentName
	}
	active, ok := r.Spec(activeName)
	if !ok {
		return &RunResult{AgentName: activeName, Aborted: true,
			AbortReason: fmt.Sprintf("unknown agent %q", activeName)}
	}

	runCtx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	convo := make([]llm.Message, 0, len(history)+8)
	convo = append(convo, history...)
	convo = append(convo, llm.Message{Role: llm.RoleUser, Content: env.Prompt})

	send := func(eventType, agent string, data map[string]any) {
		emit(Event{Type: eventType, Agent: agent, Timestamp: time.Now().UTC(), Data: data})
	}

	lastText := ""
	for turn := 0; turn < maxTurns; turn++ {
		send(EventTurnStarted, active.Name, nil)

		modelRef := active.ModelReference
		if modelRef == "" {
			modelRef = defaultModel
		}

		messages := make([]llm.Message, 0, len(convo)+1)
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: active.Instructions})
		messages = append(messages, convo...)

		defs := r.registry.Definitions(active.ToolNames)
		defs = append(defs, transferToolDefinition())

		reply, err := r.generator.Generate(runCtx, modelRef, messages, defs)
		if err != nil {
			reason := "model"
			if runCtx.Err() != nil && ctx.Err() == nil {
				reason = "budget"
			}
			r.logger.Warn("trigger aborted",
				zap.String("session_id", env.SessionID),
				zap.String("agent", active.Name),
				zap.String("reason", reason),
				zap.Error(err))
			send(EventTurnAborted, active.Name, map[string]any{"reason": reason})
			return &RunResult{FinalText: lastText, AgentName: active.Name,
				Aborted: true, AbortReason: reason}
		}

		convo = append(convo, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   reply.Text,
			ToolCalls: reply.ToolCalls,
		})
		if reply.Text != "" {
			lastText = reply.Text
			send(EventModelResponse, active.Name, map[string]any{"text": reply.Text})
		}

		if len(reply.ToolCalls) == 0 {
			send(EventAssistantFinal, active.Name, map[string]any{"text": reply.Text})
			send(EventTurnCompleted, active.Name, nil)
			return &RunResult{FinalText: reply.Text, AgentName: active.Name}
		}

		ic := &tools.InvocationContext{
			SessionID:   env.SessionID,
			AgentName:   active.Name,
			MemoryScope: memoryScope(active),
			Memory:      r.memory,
			Todo:        r.todo,
			Config:      snap,
			Credentials: r.credentials,
		}

		for _, call := range reply.ToolCalls {
			if call.Name == TransferToolName {
				next, done := r.handleTransfer(active, call, &convo, send)
				if done {
					send(EventTurnCompleted, active.Name, nil)
					return &RunResult{FinalText: lastText, AgentName: active.Name}
				}
				active = next
				ic.AgentName = active.Name
				ic.MemoryScope = memoryScope(active)
				continue
			}

			send(EventToolCall, active.Name, map[string]any{
				"name": call.Name, "args": call.Arguments,
			})
			result := r.registry.Invoke(runCtx, call.Name, call.Arguments, ic, toolTimeout)
			serialized := tools.Serialize(result)
			send(EventToolResult, active.Name, map[string]any{
				"name":   call.Name,
				"status": result["status"],
				"result": result,
			})
			convo = append(convo, llm.Message{
				Role:       llm.RoleTool,
				Content:    serialized,
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
		}
	}

	send(EventTurnAborted, active.Name, map[string]any{"reason": "max_turns"})
	return &RunResult{FinalText: lastText, AgentName: active.Name,
		Aborted: true, AbortReason: "max_turns"}
}

// handleTransfer validates a transfer directive. On a legal transfer it
// returns the target spec; on an illegal one it reports done=true so the
// caller concludes the trigger with the current agent.
func (r *Runtime) handleTransfer(active *Spec, call llm.ToolCall, convo *[]llm.Message, send func(string, string, map[string]any)) (*Spec, bool) {
	target, _ := call.Arguments["agent_name"].(string)

	next, exists := r.Spec(target)
	if !exists || !active.CanTransferTo(target) {
		send(EventIllegalTransfer, active.Name, map[string]any{
			"from": active.Name, "to": target,
		})
		*convo = append(*convo, llm.Message{
			Role:       llm.RoleTool,
			Content:    tools.Serialize(tools.Fail("illegal-transfer", "cannot transfer from %s to %q", active.Name, target)),
			ToolCallID: call.ID,
			ToolName:   TransferToolName,
		})
		return active, true
	}

	send(EventAgentTransferred, active.Name, map[string]any{
		"from": active.Name, "to": target,
	})
	*convo = append(*convo, llm.Message{
		Role:       llm.RoleTool,
		Content:    tools.Serialize(tools.OK(map[string]any{"active_agent": target})),
		ToolCallID: call.ID,
		ToolName:   TransferToolName,
	})
	return next, false
}

func memoryScope(s *Spec) string {
	if s.MemoryScope == "" {
		return memory.ScopeGlobal
	}
	return s.MemoryScope
}

func transferToolDefinition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Name:        TransferToolName,
		Description: "Hand the conversation to another agent. Subsequent turns use that agent's instructions and tools.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"agent_name": map[string]any{
					"type":        "string",
					"description": "Name of the agent to transfer to",
				},
			},
			"required": []string{"agent_name"},
		},
	}
}
