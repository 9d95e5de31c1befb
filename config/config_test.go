package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "nonexistent.yaml")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderOpenAI, cfg.LLM.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, 1536, cfg.Embeddings.Dimension)
	assert.Equal(t, 6, cfg.Retrieval.MaxDocs)
	assert.Equal(t, 3000, cfg.Retrieval.ContextTokenBudget)
	assert.Equal(t, "docs", cfg.DefaultCollection)
	assert.Equal(t, "docs", cfg.DefaultMode)
	assert.False(t, cfg.Debug.ReraiseErrors)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_FILE", "nonexistent.yaml")
	t.Setenv("LLM_PROVIDER", ProviderOllama)
	t.Setenv("CHAT_MODEL", "llama3")
	t.Setenv("RETRIEVAL_MAX_DOCS", "12")
	t.Setenv("RETRIEVAL_RELEVANCE_THRESHOLD", "0.35")
	t.Setenv("TEMPERATURE", "0.7")
	t.Setenv("RERAISE_ERRORS", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ProviderOllama, cfg.LLM.Provider)
	assert.Equal(t, "llama3", cfg.LLM.Model)
	assert.Equal(t, 12, cfg.Retrieval.MaxDocs)
	assert.Equal(t, 0.35, cfg.Retrieval.RelevanceThreshold)
	assert.InDelta(t, 0.7, cfg.LLM.Temperature, 0.001)
	assert.True(t, cfg.Debug.ReraiseErrors)
}

func TestLoadMalformedEnvFallsBack(t *testing.T) {
	t.Setenv("CONFIG_FILE", "nonexistent.yaml")
	t.Setenv("RETRIEVAL_MAX_DOCS", "lots")
	t.Setenv("TEMPERATURE", "warm")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 6, cfg.Retrieval.MaxDocs)
	assert.InDelta(t, 0.4, cfg.LLM.Temperature, 0.001)
}

func TestLoadYAMLOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
llm:
  model: yaml-model
default_collection: yaml-docs
openai_api_key: yaml-key
`), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("CHAT_MODEL", "")
	t.Setenv("DEFAULT_COLLECTION", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "yaml-model", cfg.LLM.Model)
	assert.Equal(t, "yaml-docs", cfg.DefaultCollection)
	assert.Equal(t, "yaml-key", cfg.OpenAIAPIKey)
}

func TestLoadEnvWinsOverYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm:\n  model: yaml-model\n"), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("CHAT_MODEL", "env-model")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "env-model", cfg.LLM.Model)
}

func TestLoadMalformedYAMLIsAnError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("llm: [not a mapping"), 0o600))

	t.Setenv("CONFIG_FILE", path)
	_, err := Load()
	assert.Error(t, err)
}
