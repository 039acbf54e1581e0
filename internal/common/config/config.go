// Package config loads the boot configuration for radbot.
// Only three fields are required in the file: database connection parameters,
// the credential encryption key, and the admin bearer token. Everything else
// has defaults and can be overridden per section through the DB-backed
// resolver at runtime.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all boot configuration sections.
type Config struct {
	Server        ServerConfig    `mapstructure:"server"`
	Database      DatabaseConfig  `mapstructure:"database"`
	NATS          NATSConfig      `mapstructure:"nats"`
	Logging       LoggingConfig   `mapstructure:"logging"`
	Agent         AgentConfig     `mapstructure:"agent"`
	Memory        MemoryConfig    `mapstructure:"memory"`
	Scheduler     SchedulerConfig `mapstructure:"scheduler"`
	Webhook       WebhookConfig   `mapstructure:"webhook"`
	CredentialKey string          `mapstructure:"credentialKey"`
	AdminToken    string          `mapstructure:"adminToken"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"readTimeout"`  // seconds
	WriteTimeout int    `mapstructure:"writeTimeout"` // seconds
}

// DatabaseConfig holds relational database connection configuration.
// When Driver is "sqlite" only Path is used; otherwise a PostgreSQL
// connection is opened from the remaining fields.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // postgres, sqlite
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbName"`
	SSLMode  string `mapstructure:"sslMode"`
	MaxConns int    `mapstructure:"maxConns"`
	MinConns int    `mapstructure:"minConns"`
	Path     string `mapstructure:"path"` // sqlite file path
}

// NATSConfig holds NATS messaging configuration. An empty URL selects the
// in-memory event bus.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// AgentConfig holds agent runtime configuration.
type AgentConfig struct {
	// DefaultModel is the model reference used by agents without an
	// explicit override. References starting with "ollama_chat/" or
	// "ollama/" route to the local Ollama endpoint.
	DefaultModel string `mapstructure:"defaultModel"`

	// OllamaBaseURL is the base URL of the local Ollama server.
	OllamaBaseURL string `mapstructure:"ollamaBaseUrl"`

	// ProviderBaseURL is the base URL of the hosted, OpenAI-compatible
	// provider used for non-ollama model references.
	ProviderBaseURL string `mapstructure:"providerBaseUrl"`

	// MaxTurns bounds the number of model calls per trigger.
	MaxTurns int `mapstructure:"maxTurns"`

	// TriggerBudget is the wall-clock budget per trigger, in seconds.
	TriggerBudget int `mapstructure:"triggerBudget"`

	// ToolTimeout bounds a single tool invocation, in seconds.
	ToolTimeout int `mapstructure:"toolTimeout"`

	// MaxConcurrentModelCalls caps in-flight model requests.
	MaxConcurrentModelCalls int `mapstructure:"maxConcurrentModelCalls"`
}

// MemoryConfig holds semantic memory configuration.
type MemoryConfig struct {
	QdrantHost     string `mapstructure:"qdrantHost"`
	QdrantPort     int    `mapstructure:"qdrantPort"`
	QdrantAPIKey   string `mapstructure:"qdrantApiKey"`
	Collection     string `mapstructure:"collection"`
	EmbedModel     string `mapstructure:"embedModel"`
	EmbedDimension int    `mapstructure:"embedDimension"`
}

// SchedulerConfig holds scheduler engine configuration.
type SchedulerConfig struct {
	MaxConcurrentJobs int    `mapstructure:"maxConcurrentJobs"`
	DefaultTimezone   string `mapstructure:"defaultTimezone"`
	DefaultSession    string `mapstructure:"defaultSession"`
}

// WebhookConfig holds webhook receiver configuration.
type WebhookConfig struct {
	MaxBodyBytes int64 `mapstructure:"maxBodyBytes"`
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// TriggerBudgetDuration returns the per-trigger budget as a time.Duration.
func (a *AgentConfig) TriggerBudgetDuration() time.Duration {
	return time.Duration(a.TriggerBudget) * time.Second
}

// ToolTimeoutDuration returns the per-tool timeout as a time.Duration.
func (a *AgentConfig) ToolTimeoutDuration() time.Duration {
	return time.Duration(a.ToolTimeout) * time.Second
}

// DSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 30)

	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "radbot")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbName", "radbot")
	v.SetDefault("database.sslMode", "disable")
	v.SetDefault("database.maxConns", 25)
	v.SetDefault("database.minConns", 5)
	v.SetDefault("database.path", "./radbot.db")

	v.SetDefault("nats.url", "")
	v.SetDefault("nats.clientId", "radbot")
	v.SetDefault("nats.maxReconnects", 10)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "")
	v.SetDefault("logging.outputPath", "stdout")

	v.SetDefault("agent.defaultModel", "ollama_chat/qwen3:14b")
	v.SetDefault("agent.ollamaBaseUrl", "http://localhost:11434")
	v.SetDefault("agent.providerBaseUrl", "https://api.openai.com/v1")
	v.SetDefault("agent.maxTurns", 12)
	v.SetDefault("agent.triggerBudget", 300)
	v.SetDefault("agent.toolTimeout", 30)
	v.SetDefault("agent.maxConcurrentModelCalls", 4)

	v.SetDefault("memory.qdrantHost", "localhost")
	v.SetDefault("memory.qdrantPort", 6334)
	v.SetDefault("memory.collection", "radbot_memory")
	v.SetDefault("memory.embedModel", "nomic-embed-text")
	v.SetDefault("memory.embedDimension", 768)

	v.SetDefault("scheduler.maxConcurrentJobs", 4)
	v.SetDefault("scheduler.defaultTimezone", "UTC")
	v.SetDefault("scheduler.defaultSession", "scheduler-default")

	v.SetDefault("webhook.maxBodyBytes", int64(64*1024))
}

// Load reads configuration from environment variables, the config file, and
// defaults. Environment variables use the RADBOT_ prefix. RADBOT_CONFIG_PATH
// overrides the search path; RADBOT_ENV selects a config.<env>.yaml variant
// when one exists.
func Load() (*Config, error) {
	return LoadWithPath(os.Getenv("RADBOT_CONFIG_PATH"))
}

// LoadWithPath reads configuration from the specified path or the default
// locations (current directory, /etc/radbot/).
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("RADBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// camelCase config keys do not round-trip through AutomaticEnv, so the
	// commonly overridden ones are bound explicitly.
	_ = v.BindEnv("credentialKey", "RADBOT_CREDENTIAL_KEY")
	_ = v.BindEnv("adminToken", "RADBOT_ADMIN_TOKEN")
	_ = v.BindEnv("agent.defaultModel", "RADBOT_AGENT_DEFAULT_MODEL")
	_ = v.BindEnv("agent.ollamaBaseUrl", "RADBOT_AGENT_OLLAMA_BASE_URL")
	_ = v.BindEnv("database.path", "RADBOT_DB_PATH")

	name := "config"
	if env := os.Getenv("RADBOT_ENV"); env != "" {
		if _, err := os.Stat(fmt.Sprintf("config.%s.yaml", env)); err == nil {
			name = fmt.Sprintf("config.%s", env)
		}
	}
	v.SetConfigName(name)
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/radbot/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate checks that required fields are set and in range.
func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	switch cfg.Database.Driver {
	case "postgres":
		if cfg.Database.Host == "" {
			errs = append(errs, "database.host is required for the postgres driver")
		}
		if cfg.Database.User == "" {
			errs = append(errs, "database.user is required for the postgres driver")
		}
		if cfg.Database.DBName == "" {
			errs = append(errs, "database.dbName is required for the postgres driver")
		}
	case "sqlite":
		if cfg.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be postgres or sqlite, got %q", cfg.Database.Driver))
	}

	if cfg.CredentialKey == "" {
		errs = append(errs, "credentialKey is required")
	}
	if cfg.AdminToken == "" {
		errs = append(errs, "adminToken is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}

	if cfg.Agent.MaxTurns <= 0 {
		errs = append(errs, "agent.maxTurns must be positive")
	}
	if cfg.Scheduler.MaxConcurrentJobs <= 0 {
		errs = append(errs, "scheduler.maxConcurrentJobs must be positive")
	}
	if cfg.Webhook.MaxBodyBytes <= 0 {
		errs = append(errs, "webhook.maxBodyBytes must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}
