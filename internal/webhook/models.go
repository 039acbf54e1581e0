// Package webhook accepts authenticated HTTP pushes and turns them into
// agent triggers via payload-templated prompts.
package webhook

import "time"

// Definition is one configured webhook endpoint, reachable at
// POST /webhooks/trigger/{path_suffix}.
type Definition struct {
	ID              string     `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"`
	PathSuffix      string     `json:"path_suffix" db:"path_suffix"`
	PromptTemplate  string     `json:"prompt_template" db:"prompt_template"`
	Secret          string     `json:"secret,omitempty" db:"secret"`
	SessionID       string     `json:"session_id,omitempty" db:"session_id"`
	Enabled         bool       `json:"enabled" db:"enabled"`
	TriggerCount    int64      `json:"trigger_count" db:"trigger_count"`
	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty" db:"last_triggered_at"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
}

// CreateDefinitionRequest is the request body for creating a webhook.
type CreateDefinitionRequest struct {
	Name           string `json:"name"`
	PathSuffix     string `json:"path_suffix"`
	PromptTemplate string `json:"prompt_template"`
	Secret         string `json:"secret,omitempty"`
	SessionID      string `json:"session_id,omitempty"`
}

// UpdateDefinitionRequest is the request body for updating a webhook.
type UpdateDefinitionRequest struct {
	Name           *string `json:"name,omitempty"`
	PathSuffix     *string `json:"path_suffix,omitempty"`
	PromptTemplate *string `json:"prompt_template,omitempty"`
	Secret         *string `json:"secret,omitempty"`
	SessionID      *string `json:"session_id,omitempty"`
	Enabled        *bool   `json:"enabled,omitempty"`
}
