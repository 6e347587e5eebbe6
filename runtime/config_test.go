package runtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Provider)
	assert.Equal(t, "agents", cfg.AgentDir)
	assert.Equal(t, 8, cfg.MaxToolIterations)
	assert.Equal(t, 1000, cfg.BusCapacity)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.SessionDB)
}

func TestLoadConfig_FromEnvironment(t *testing.T) {
	t.Setenv("CARAVEL_PROVIDER", "openai")
	t.Setenv("CARAVEL_MODEL", "gpt-4o-mini")
	t.Setenv("CARAVEL_MAX_TOOL_ITERATIONS", "12")
	t.Setenv("CARAVEL_SESSION_DB", "/tmp/caravel.db")
	t.Setenv("CARAVEL_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Model)
	assert.Equal(t, 12, cfg.MaxToolIterations)
	assert.Equal(t, "/tmp/caravel.db", cfg.SessionDB)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestNewModel_SelectsProvider(t *testing.T) {
	m, err := NewModel(&Config{Provider: "anthropic"})
	require.NoError(t, err)
	assert.Equal(t, "anthropic", m.Info().Provider)

	m, err = NewModel(&Config{Provider: "openai", Model: "gpt-4o-mini"})
	require.NoError(t, err)
	assert.Equal(t, "openai", m.Info().Provider)
	assert.Equal(t, "gpt-4o-mini", m.Info().Name)

	_, err = NewModel(&Config{Provider: "volcano"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}
