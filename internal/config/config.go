// Package config loads service configuration from a JSON config file at
// $XDG_CONFIG_HOME/jobtrail/config.json, with environment variables
// (JOBTRAIL_*) taking precedence. A .env file in the working directory is
// loaded first, so local setups can keep secrets out of the shell profile.
package config

import (
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	LLM       LLMConfig
	Reader    ReaderConfig
	Scheduler SchedulerConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port      int
	MCPPort   int
	AuthToken string
}

type StorageConfig struct {
	DataDir string
}

type LLMConfig struct {
	AnthropicAPIKey string
	Model           string
}

type ReaderConfig struct {
	BaseURL string
	APIKey  string
}

type SchedulerConfig struct {
	PollInterval string
}

type LogConfig struct {
	Level string
	JSON  bool
}

// PollInterval parses the scheduler poll interval, falling back to one
// minute on a malformed value.
func (c SchedulerConfig) Interval() time.Duration {
	d, err := time.ParseDuration(c.PollInterval)
	if err != nil || d <= 0 {
		return time.Minute
	}
	return d
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:    4700,
			MCPPort: 4701,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		LLM: LLMConfig{
			Model: "claude-sonnet-4-5",
		},
		Reader: ReaderConfig{
			BaseURL: "https://r.jina.ai",
		},
		Scheduler: SchedulerConfig{
			PollInterval: "1m",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from .env, the JSON backend, and environment
// variables, in ascending precedence. Secrets (API keys, auth token) come
// only from the environment. Key presence requirements are enforced by the
// commands that need them, not here; read-only CLI commands work without an
// API key.
func Load() (Config, error) {
	// Missing .env is the common case, not an error.
	_ = godotenv.Load()
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	return cfg, nil
}
