package configstore

import "github.com/radbot/radbot/internal/common/config"

// BootLayer projects the boot file config into the runtime plane's file
// layer. Keys here use the snake_case names the DB layer and admin API use,
// so a DB row can override any individual field.
func BootLayer(cfg *config.Config) map[string]map[string]any {
	return map[string]map[string]any{
		"agent": {
			"default_model":              cfg.Agent.DefaultModel,
			"ollama_base_url":            cfg.Agent.OllamaBaseURL,
			"provider_base_url":          cfg.Agent.ProviderBaseURL,
			"max_turns":                  cfg.Agent.MaxTurns,
			"trigger_budget":             cfg.Agent.TriggerBudget,
			"tool_timeout":               cfg.Agent.ToolTimeout,
			"max_concurrent_model_calls": cfg.Agent.MaxConcurrentModelCalls,
		},
		"memory": {
			"qdrant_host":     cfg.Memory.QdrantHost,
			"qdrant_port":     cfg.Memory.QdrantPort,
			"collection":      cfg.Memory.Collection,
			"embed_model":     cfg.Memory.EmbedModel,
			"embed_dimension": cfg.Memory.EmbedDimension,
		},
		"scheduler": {
			"max_concurrent_jobs": cfg.Scheduler.MaxConcurrentJobs,
			"default_timezone":    cfg.Scheduler.DefaultTimezone,
			"default_session":     cfg.Scheduler.DefaultSession,
		},
		"webhook": {
			"max_body_bytes": cfg.Webhook.MaxBodyBytes,
		},
		"integrations": {},
	}
}
