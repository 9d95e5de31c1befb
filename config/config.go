package config

import (
	"errors"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Config carries everything the services need. It is loaded once at startup and
// passed into constructors; no package reads the environment after Load returns.
type Config struct {
	LLM        LLMConfig        `yaml:"llm"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Tavily     TavilyConfig     `yaml:"tavily"`
	Debug      DebugConfig      `yaml:"debug"`

	PostgresDSN string `yaml:"postgres_dsn"`
	Neo4jURI    string `yaml:"neo4j_uri"`
	Neo4jUser   string `yaml:"neo4j_user"`
	Neo4jPass   string `yaml:"neo4j_pass"`

	OllamaHost    string `yaml:"ollama_host"`
	OpenAIAPIKey  string `yaml:"openai_api_key"`
	OpenAIBaseURL string `yaml:"openai_base_url"`

	DefaultCollection string `yaml:"default_collection"`
	DefaultMode       string `yaml:"default_mode"`
	LogLevel          string `yaml:"log_level"`
}

type LLMConfig struct {
	Provider        string  `yaml:"provider"`
	Model           string  `yaml:"model"`
	Temperature     float32 `yaml:"temperature"`
	MaxAnswerTokens int     `yaml:"max_answer_tokens"`
}

type EmbeddingsConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

type RetrievalConfig struct {
	MaxDocs            int     `yaml:"max_docs"`
	RelevanceThreshold float64 `yaml:"relevance_threshold"`
	ContextTokenBudget int     `yaml:"context_token_budget"`
	OverFetchFactor    int     `yaml:"over_fetch_factor"`
}

type TavilyConfig struct {
	APIKey      string `yaml:"api_key"`
	MaxResults  int    `yaml:"max_results"`
	SearchDepth string `yaml:"search_depth"`
}

// DebugConfig replaces the original's environment-toggled debug prints with an
// explicit, enumerated option set.
type DebugConfig struct {
	VerboseCondensePrompt bool `yaml:"verbose_condense_prompt"`
	VerboseQAPrompt       bool `yaml:"verbose_qa_prompt"`
	VerboseSimilarities   bool `yaml:"verbose_similarities"`
	PrintStandaloneQuery  bool `yaml:"print_standalone_query"`
	ReraiseErrors         bool `yaml:"reraise_errors"`
}

// Load builds the configuration from an optional config.yaml overlay plus
// environment variables; env always wins. A missing .env file is fine.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found")
	}

	cfg := Config{
		LLM: LLMConfig{
			Provider:        getEnv("LLM_PROVIDER", ProviderOpenAI),
			Model:           getEnv("CHAT_MODEL", "gpt-4o-mini"),
			Temperature:     getEnvFloat32("TEMPERATURE", 0.4),
			MaxAnswerTokens: getEnvInt("MAX_ANSWER_TOKENS", 1024),
		},
		Embeddings: EmbeddingsConfig{
			Provider:  getEnv("EMBEDDINGS_PROVIDER", ProviderOpenAI),
			Model:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimension: getEnvInt("EMBEDDING_DIMENSION", 1536),
		},
		Retrieval: RetrievalConfig{
			MaxDocs:            getEnvInt("RETRIEVAL_MAX_DOCS", 6),
			RelevanceThreshold: getEnvFloat64("RETRIEVAL_RELEVANCE_THRESHOLD", 0.2),
			ContextTokenBudget: getEnvInt("CONTEXT_TOKEN_BUDGET", 3000),
			OverFetchFactor:    getEnvInt("RETRIEVAL_OVER_FETCH_FACTOR", 3),
		},
		Tavily: TavilyConfig{
			APIKey:      getEnv("TAVILY_API_KEY", ""),
			MaxResults:  getEnvInt("TAVILY_MAX_RESULTS", 5),
			SearchDepth: getEnv("TAVILY_SEARCH_DEPTH", "advanced"),
		},
		Debug: DebugConfig{
			VerboseCondensePrompt: getEnvBool("VERBOSE_CONDENSE_PROMPT", false),
			VerboseQAPrompt:       getEnvBool("VERBOSE_QA_PROMPT", false),
			VerboseSimilarities:   getEnvBool("VERBOSE_SIMILARITIES", false),
			PrintStandaloneQuery:  getEnvBool("PRINT_STANDALONE_QUERY", false),
			ReraiseErrors:         getEnvBool("RERAISE_ERRORS", false),
		},
		PostgresDSN:       getEnv("POSTGRES_DSN", "postgres://localhost:5432/docdocgo?sslmode=disable"),
		Neo4jURI:          getEnv("NEO4J_URI", "neo4j://localhost:7687"),
		Neo4jUser:         getEnv("NEO4J_USERNAME", "neo4j"),
		Neo4jPass:         getEnv("NEO4J_PASSWORD", "password"),
		OllamaHost:        getEnv("OLLAMA_HOST", "http://localhost:11434"),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", ""),
		DefaultCollection: getEnv("DEFAULT_COLLECTION", "docs"),
		DefaultMode:       getEnv("DEFAULT_MODE", "docs"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}

	if err := applyYAMLOverlay(&cfg, getEnv("CONFIG_FILE", "config.yaml")); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// applyYAMLOverlay fills in values from a yaml file for settings the environment
// did not set explicitly.
func applyYAMLOverlay(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	var overlay Config
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return err
	}

	if cfg.OpenAIAPIKey == "" {
		cfg.OpenAIAPIKey = overlay.OpenAIAPIKey
	}
	if cfg.Tavily.APIKey == "" {
		cfg.Tavily.APIKey = overlay.Tavily.APIKey
	}
	if overlay.DefaultCollection != "" && os.Getenv("DEFAULT_COLLECTION") == "" {
		cfg.DefaultCollection = overlay.DefaultCollection
	}
	if overlay.DefaultMode != "" && os.Getenv("DEFAULT_MODE") == "" {
		cfg.DefaultMode = overlay.DefaultMode
	}
	if overlay.LLM.Model != "" && os.Getenv("CHAT_MODEL") == "" {
		cfg.LLM.Model = overlay.LLM.Model
	}
	if overlay.Embeddings.Model != "" && os.Getenv("EMBEDDING_MODEL") == "" {
		cfg.Embeddings.Model = overlay.Embeddings.Model
	}
	if overlay.Embeddings.Dimension != 0 && os.Getenv("EMBEDDING_DIMENSION") == "" {
		cfg.Embeddings.Dimension = overlay.Embeddings.Dimension
	}
	if overlay.Retrieval.ContextTokenBudget != 0 && os.Getenv("CONTEXT_TOKEN_BUDGET") == "" {
		cfg.Retrieval.ContextTokenBudget = overlay.Retrieval.ContextTokenBudget
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat32(key string, fallback float32) float32 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(parsed)
		}
	}
	return fallback
}

func getEnvFloat64(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}
