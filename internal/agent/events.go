package agent

import "time"

// Event types emitted during a trigger run, in production order.
const (
	EventTurnStarted      = "turn_started"
	EventModelResponse    = "model_response"
	EventToolCall         = "tool_call"
	EventToolResult       = "tool_result"
	EventAgentTransferred = "agent_transferred"
	EventIllegalTransfer  = "illegal-transfer"
	EventAssistantFinal   = "assistant_final"
	EventTurnCompleted    = "turn_completed"
	EventTurnAborted      = "turn_aborted"
)

// Event is one step of a trigger run. Events within a trigger are totally
// ordered; ordering across triggers comes only from persistence.
type Event struct {
	Type      string         `json:"type"`
	Agent     string         `json:"agent,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// EmitFunc receives run events synchronously and must not block.
type EmitFunc func(Event)
