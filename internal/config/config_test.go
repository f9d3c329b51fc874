package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("API_KEY", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.Port)
	assert.Equal(t, 5, cfg.MaxSearchResults)
	assert.Equal(t, 500, cfg.MaxTokensResponse)
	assert.Equal(t, 0.3, cfg.Temperature)
	assert.Equal(t, 4000, cfg.MaxContextLength)
	assert.Equal(t, "economic_documents", cfg.QdrantCollection)
	assert.Equal(t, filepath.Join("data", "documents.json"), cfg.DocumentsPath())
	assert.False(t, cfg.LLMConfigured())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9001")
	t.Setenv("DEBUG", "true")
	t.Setenv("TEMPERATURE", "0.7")
	t.Setenv("USE_RERANKING", "1")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("API_KEY", "")
	t.Setenv("LLM_TIMEOUT_MS", "1500")
	t.Setenv("VECTOR_BACKEND", "MEMORY")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Port)
	assert.True(t, cfg.Debug)
	assert.Equal(t, 0.7, cfg.Temperature)
	assert.True(t, cfg.UseReranking)
	assert.Equal(t, "sk-test", cfg.APIKey, "API key falls back to the OpenAI key")
	assert.Equal(t, 1500*time.Millisecond, cfg.LLMTimeout)
	assert.Equal(t, "memory", cfg.VectorBackend)
	assert.True(t, cfg.LLMConfigured())
}

func TestLoadYAMLFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 7000\nmax_search_results: 3\nllm_timeout: 5s\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("MAX_SEARCH_RESULTS", "8")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 7000, cfg.Port)
	assert.Equal(t, 8, cfg.MaxSearchResults)
	assert.Equal(t, 5*time.Second, cfg.LLMTimeout)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.VectorBackend = "pgvector"
	cfg.EmbeddingProvider = "word2vec"
	cfg.Temperature = 3
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PGVECTOR_DSN")
	assert.Contains(t, err.Error(), "word2vec")
	assert.Contains(t, err.Error(), "TEMPERATURE")
}
