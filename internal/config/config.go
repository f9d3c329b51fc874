// Package config provides configuration for the economic chatbot.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the service configuration.
type Config struct {
	// Server settings
	Host  string `yaml:"host"`
	Port  int    `yaml:"port"`
	Debug bool   `yaml:"debug"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Storage
	DataDir         string `yaml:"data_dir"`
	SeedExampleData bool   `yaml:"seed_example_data"`

	// LLM settings
	OpenAIAPIKey    string        `yaml:"openai_api_key"`
	OpenAIBaseURL   string        `yaml:"openai_base_url"`
	ChatModel       string        `yaml:"chat_model"`
	LLMMode         string        `yaml:"llm_mode"`
	LLMTimeout      time.Duration `yaml:"llm_timeout"`
	LLMRateLimit    float64       `yaml:"llm_rate_limit_rps"`
	ModelName       string        `yaml:"model_name"`
	APIKey          string        `yaml:"api_key"`
	MattermostToken string        `yaml:"mattermost_token"`

	// Embeddings
	EmbeddingProvider  string `yaml:"embedding_provider"`
	EmbeddingModel     string `yaml:"embedding_model"`
	// EmbeddingDimension of zero selects the native size of the provider's model.
	EmbeddingDimension int    `yaml:"embedding_dimension"`
	OllamaHost         string `yaml:"ollama_host"`

	// Vector index
	VectorBackend    string `yaml:"vector_backend"`
	QdrantURL        string `yaml:"qdrant_url"`
	QdrantAPIKey     string `yaml:"qdrant_api_key"`
	QdrantCollection string `yaml:"qdrant_collection"`
	PGVectorDSN      string `yaml:"pgvector_dsn"`

	// Retrieval and generation
	MaxSearchResults  int     `yaml:"max_search_results"`
	MaxTokensResponse int     `yaml:"max_tokens_response"`
	Temperature       float64 `yaml:"temperature"`
	MaxContextLength  int     `yaml:"max_context_length"`
	UseQueryExpansion bool    `yaml:"use_query_expansion"`
	UseReranking      bool    `yaml:"use_reranking"`
	FallbackToGeneral bool    `yaml:"fallback_to_general"`
	SessionMaxTurns   int     `yaml:"session_max_turns"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Host:               "0.0.0.0",
		Port:               8000,
		LogLevel:           "info",
		LogFormat:          "json",
		DataDir:            "data",
		SeedExampleData:    true,
		OpenAIBaseURL:      "https://api.openai.com",
		ChatModel:          "gpt-4o-mini",
		LLMMode:            "live",
		LLMTimeout:         60 * time.Second,
		LLMRateLimit:       5,
		ModelName:          "economic-chatbot",
		EmbeddingProvider:  "hashing",
		OllamaHost:         "http://localhost:11434",
		VectorBackend:      "sqlite",
		QdrantURL:          "http://localhost:6333",
		QdrantCollection:   "economic_documents",
		MaxSearchResults:   5,
		MaxTokensResponse:  500,
		Temperature:        0.3,
		MaxContextLength:   4000,
		FallbackToGeneral:  true,
		SessionMaxTurns:    5,
	}
}

// Load loads configuration from an optional YAML file (CONFIG_FILE), a .env file
// and environment variables, in increasing order of precedence.
func Load() (*Config, error) {
	// A missing .env is the normal case in containers.
	_ = godotenv.Load()

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Host = getEnv("HOST", c.Host)
	c.Port = getEnvInt("PORT", c.Port)
	c.Debug = getEnvBool("DEBUG", c.Debug)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
	c.DataDir = getEnv("DATA_DIR", c.DataDir)
	c.SeedExampleData = getEnvBool("SEED_EXAMPLE_DATA", c.SeedExampleData)

	c.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.OpenAIBaseURL)
	c.ChatModel = getEnv("OPENAI_CHAT_MODEL", c.ChatModel)
	c.LLMMode = strings.ToLower(getEnv("LLM_MODE", c.LLMMode))
	if ms := getEnvInt("LLM_TIMEOUT_MS", 0); ms > 0 {
		c.LLMTimeout = time.Duration(ms) * time.Millisecond
	}
	c.LLMRateLimit = getEnvFloat("LLM_RATE_LIMIT_RPS", c.LLMRateLimit)
	c.ModelName = getEnv("MODEL_NAME", c.ModelName)
	c.APIKey = getEnv("API_KEY", c.APIKey)
	if c.APIKey == "" {
		c.APIKey = c.OpenAIAPIKey
	}
	c.MattermostToken = getEnv("MATTERMOST_TOKEN", c.MattermostToken)

	c.EmbeddingProvider = strings.ToLower(getEnv("EMBEDDING_PROVIDER", c.EmbeddingProvider))
	c.EmbeddingModel = getEnv("EMBEDDING_MODEL", c.EmbeddingModel)
	c.EmbeddingDimension = getEnvInt("EMBEDDING_DIMENSION", c.EmbeddingDimension)
	c.OllamaHost = getEnv("OLLAMA_HOST", c.OllamaHost)

	c.VectorBackend = strings.ToLower(getEnv("VECTOR_BACKEND", c.VectorBackend))
	c.QdrantURL = getEnv("QDRANT_URL", c.QdrantURL)
	c.QdrantAPIKey = getEnv("QDRANT_API_KEY", c.QdrantAPIKey)
	c.QdrantCollection = getEnv("QDRANT_COLLECTION", c.QdrantCollection)
	c.PGVectorDSN = getEnv("PGVECTOR_DSN", c.PGVectorDSN)

	c.MaxSearchResults = getEnvInt("MAX_SEARCH_RESULTS", c.MaxSearchResults)
	c.MaxTokensResponse = getEnvInt("MAX_TOKENS_RESPONSE", c.MaxTokensResponse)
	c.Temperature = getEnvFloat("TEMPERATURE", c.Temperature)
	c.MaxContextLength = getEnvInt("MAX_CONTEXT_LENGTH", c.MaxContextLength)
	c.UseQueryExpansion = getEnvBool("USE_QUERY_EXPANSION", c.UseQueryExpansion)
	c.UseReranking = getEnvBool("USE_RERANKING", c.UseReranking)
	c.FallbackToGeneral = getEnvBool("FALLBACK_TO_GENERAL", c.FallbackToGeneral)
	c.SessionMaxTurns = getEnvInt("SESSION_MAX_TURNS", c.SessionMaxTurns)
}

// Validate rejects configurations the service cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid PORT %d", c.Port))
	}
	if c.MaxSearchResults <= 0 {
		errs = append(errs, fmt.Errorf("MAX_SEARCH_RESULTS must be positive, got %d", c.MaxSearchResults))
	}
	if c.MaxContextLength <= 0 {
		errs = append(errs, fmt.Errorf("MAX_CONTEXT_LENGTH must be positive, got %d", c.MaxContextLength))
	}
	if c.SessionMaxTurns <= 0 {
		errs = append(errs, fmt.Errorf("SESSION_MAX_TURNS must be positive, got %d", c.SessionMaxTurns))
	}
	if c.EmbeddingDimension < 0 {
		errs = append(errs, fmt.Errorf("EMBEDDING_DIMENSION must not be negative, got %d", c.EmbeddingDimension))
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		errs = append(errs, fmt.Errorf("TEMPERATURE must be within [0, 2], got %g", c.Temperature))
	}
	switch c.LLMMode {
	case "live", "mock":
	default:
		errs = append(errs, fmt.Errorf("unknown LLM_MODE %q", c.LLMMode))
	}
	switch c.EmbeddingProvider {
	case "hashing", "openai", "ollama":
	default:
		errs = append(errs, fmt.Errorf("unknown EMBEDDING_PROVIDER %q", c.EmbeddingProvider))
	}
	switch c.VectorBackend {
	case "memory", "sqlite", "qdrant":
	case "pgvector":
		if c.PGVectorDSN == "" {
			errs = append(errs, errors.New("PGVECTOR_DSN is required for the pgvector backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown VECTOR_BACKEND %q", c.VectorBackend))
	}
	return errors.Join(errs...)
}

// LLMConfigured reports whether LLM-dependent routes can be served.
func (c *Config) LLMConfigured() bool {
	return c.OpenAIAPIKey != "" || c.LLMMode == "mock"
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DocumentsPath returns the path of the document JSON file.
func (c *Config) DocumentsPath() string {
	return filepath.Join(c.DataDir, "documents.json")
}

// VectorDBPath returns the path of the sqlite vector database.
func (c *Config) VectorDBPath() string {
	return filepath.Join(c.DataDir, "vectors.db")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
