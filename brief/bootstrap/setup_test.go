package bootstrap

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/theimaginaryfoundation/casebrief/brief/config"
)

func TestLoadConfig_OverridesWin(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "casebrief.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider:\n  name: groq\n  model: llama-3.1-8b-instant\n"), 0o644))

	cfg, err := LoadConfig(path, Overrides{Provider: "ollama", Cache: "file", CacheDir: "/tmp/cb"}, func(string) string { return "" })
	require.NoError(t, err)
	assert.Equal(t, config.ProviderOllama, cfg.Provider.Name)
	assert.Equal(t, "llama3.2", cfg.Provider.Model)
	assert.Equal(t, config.CacheFile, cfg.Cache.Backend)
	assert.Equal(t, "/tmp/cb", cfg.Cache.Dir)

	cfg, err = LoadConfig(path, Overrides{Model: "mixtral"}, func(string) string { return "" })
	require.NoError(t, err)
	assert.Equal(t, config.ProviderGroq, cfg.Provider.Name)
	assert.Equal(t, "mixtral", cfg.Provider.Model)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Parallel()

	_, err := LoadConfig("", Overrides{Cache: "redis"}, func(string) string { return "" })
	require.Error(t, err)

	_, err = LoadConfig("", Overrides{Provider: "anthropic"}, func(string) string { return "" })
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn")
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "k=v")

	_, err = NewLogger(&buf, "loud")
	require.Error(t, err)
}
