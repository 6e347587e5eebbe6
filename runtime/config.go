package runtime

import (
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/caarlos0/env/v11"

	"github.com/caravel-ai/caravel/model"
	"github.com/caravel-ai/caravel/model/anthropic"
	"github.com/caravel-ai/caravel/model/openai"
)

// Config holds runtime settings sourced from the environment.
type Config struct {
	// Provider selects the LLM adapter: "anthropic" or "openai".
	Provider string `env:"CARAVEL_PROVIDER" envDefault:"anthropic"`
	// Model overrides the adapter's default model name.
	Model string `env:"CARAVEL_MODEL"`
	// AgentDir is scanned for *.md agent definitions.
	AgentDir string `env:"CARAVEL_AGENT_DIR" envDefault:"agents"`
	// MaxToolIterations bounds tool-call rounds per agent turn.
	MaxToolIterations int `env:"CARAVEL_MAX_TOOL_ITERATIONS" envDefault:"8"`
	// BusCapacity bounds the in-memory bus tail.
	BusCapacity int `env:"CARAVEL_BUS_CAPACITY" envDefault:"1000"`
	// SessionDB, when set, switches session persistence from in-memory to a
	// SQLite database at this path.
	SessionDB string `env:"CARAVEL_SESSION_DB"`
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"CARAVEL_LOG_LEVEL" envDefault:"info"`
}

// LoadConfig reads Config from the process environment.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse runtime config: %w", err)
	}
	return &cfg, nil
}

// NewModel constructs the LLM adapter selected by cfg.
func NewModel(cfg *Config) (model.Model, error) {
	switch cfg.Provider {
	case "anthropic":
		return anthropic.New(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = anthropicsdk.Model(cfg.Model)
			}
		}), nil
	case "openai":
		return openai.New(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
		}), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", cfg.Provider)
	}
}
