// Package agent runs triggers through a tree of specialist agents, each
// bound to a model, an instruction, and a tool subset.
package agent

import (
	"fmt"

	"github.com/radbot/radbot/internal/configstore"
	"github.com/radbot/radbot/internal/memory"
)

// RootAgentName is the orchestrator every trigger starts at unless it
// names another agent, and the one any specialist may return to.
const RootAgentName = "root"

// Spec is the static definition of one agent.
type Spec struct {
	Name           string   `json:"name"`
	Instructions   string   `json:"instructions"`
	ModelReference string   `json:"model_reference,omitempty"`
	ToolNames      []string `json:"tool_names,omitempty"`
	MemoryScope    string   `json:"memory_scope,omitempty"`
	SubAgentNames  []string `json:"sub_agent_names,omitempty"`
}

// CanTransferTo reports whether a transfer from this agent to target is
// legal: any declared sub-agent, or back up to the root.
func (s *Spec) CanTransferTo(target string) bool {
	if target == RootAgentName && s.Name != RootAgentName {
		return true
	}
	for _, name := range s.SubAgentNames {
		if name == target {
			return true
		}
	}
	return false
}

// DefaultSpecs returns the built-in agent tree. The runtime config plane
// can override individual fields per agent but not remove agents.
func DefaultSpecs() []*Spec {
	return []*Spec{
		{
			Name: RootAgentName,
			Instructions: "You are the orchestrator of a personal assistant. Answer simple " +
				"questions yourself. For multi-step planning hand off to planner, for " +
				"research and lookups to research, for smart-home matters to home, and " +
				"for drafting messages to comms. Use transfer_to_agent to hand off.",
			ToolNames:     []string{"get_time", "memory_search", "memory_store"},
			MemoryScope:   memory.ScopeGlobal,
			SubAgentNames: []string{"planner", "research", "home", "comms"},
		},
		{
			Name: "planner",
			Instructions: "You break goals into concrete tasks and track them. Prefer " +
				"creating todos and reminders over producing prose plans. Transfer back " +
				"to root when the plan is recorded.",
			ToolNames:   []string{"get_time", "todo_add", "todo_list", "reminder_set", "memory_search"},
			MemoryScope: "planner",
		},
		{
			Name: "research",
			Instructions: "You answer factual questions. Consult memory before answering " +
				"and store durable findings. Transfer back to root once the question is " +
				"answered.",
			ToolNames:   []string{"memory_search", "memory_store", "get_time"},
			MemoryScope: "research",
		},
		{
			Name: "home",
			Instructions: "You handle household and smart-home requests. State clearly " +
				"when a device integration is not configured instead of guessing.",
			ToolNames:   []string{"get_time", "memory_search", "reminder_set"},
			MemoryScope: "home",
		},
		{
			Name: "comms",
			Instructions: "You draft messages, emails, and summaries in the user's voice. " +
				"Check memory for tone preferences before drafting.",
			ToolNames:   []string{"memory_search", "memory_store", "get_time", "send_notification"},
			MemoryScope: "comms",
		},
	}
}

// LoadSpecs builds the agent set: defaults overlaid with any per-agent
// overrides from the agent config section's "agents" list.
func LoadSpecs(snap *configstore.Snapshot) (map[string]*Spec, error) {
	specs := make(map[string]*Spec)
	for _, s := range DefaultSpecs() {
		specs[s.Name] = s
	}

	section := snap.Section("agent")
	if section == nil {
		return specs, nil
	}
	overrides, ok := section["agents"].([]any)
	if !ok {
		return specs, nil
	}

	for _, raw := range overrides {
		entry, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		name, _ := entry["name"].(string)
		if name == "" {
			return nil, fmt.Errorf("agent override without a name")
		}
		spec, ok := specs[name]
		if !ok {
			spec = &Spec{Name: name}
			specs[name] = spec
		}
		if v, ok := entry["instructions"].(string); ok && v != "" {
			spec.Instructions = v
		}
		if v, ok := entry["model_reference"].(string); ok {
			spec.ModelReference = v
		}
		if v, ok := entry["memory_scope"].(string); ok {
			spec.MemoryScope = v
		}
		if v, ok := entry["tool_names"].([]any); ok {
			spec.ToolNames = toStrings(v)
		}
		if v, ok := entry["sub_agent_names"].([]any); ok {
			spec.SubAgentNames = toStrings(v)
		}
	}

	if _, ok := specs[RootAgentName]; !ok {
		return nil, fmt.Errorf("agent set has no %s agent", RootAgentName)
	}
	return specs, nil
}

func toStrings(values []any) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
