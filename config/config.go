package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderHash   = "hash"
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
)

const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

const DefaultGroqBaseURL = "https://api.groq.com/openai/v1"

type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

type LLMConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	Temperature float32       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"timeout"`
}

type ChunkingConfig struct {
	ChunkTokens         int     `yaml:"chunk_tokens"`
	MaxSentences        int     `yaml:"max_sentences"`
	SimilarityThreshold float64 `yaml:"similarity_threshold"`
	MinChunkSentences   int     `yaml:"min_chunk_sentences"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"`
}

type Config struct {
	HTTPAddr       string `yaml:"http_addr"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`

	Store       StoreConfig `yaml:"store"`
	PostgresDSN string      `yaml:"postgres_dsn"`

	GraphEnabled bool   `yaml:"graph_enabled"`
	Neo4jURI     string `yaml:"neo4j_uri"`
	Neo4jUser    string `yaml:"neo4j_user"`
	Neo4jPass    string `yaml:"neo4j_password"`

	Embeddings EmbeddingConfig `yaml:"embeddings"`
	LLM        LLMConfig       `yaml:"llm"`
	Chunking   ChunkingConfig  `yaml:"chunking"`

	OllamaHost    string `yaml:"ollama_host"`
	OpenAIAPIKey  string `yaml:"-"`
	OpenAIBaseURL string `yaml:"openai_base_url"`
	GroqAPIKey    string `yaml:"-"`
	GroqBaseURL   string `yaml:"groq_base_url"`
}

// Default returns the configuration used when neither a file nor the
// environment override a value.
func Default() Config {
	return Config{
		HTTPAddr:       ":8000",
		MaxUploadBytes: 10_000_000,
		Store:          StoreConfig{Backend: StoreMemory},
		PostgresDSN:    "postgres://localhost:5432/rag-explorer?sslmode=disable",
		Neo4jURI:       "neo4j://localhost:7687",
		Neo4jUser:      "neo4j",
		Neo4jPass:      "password",
		Embeddings: EmbeddingConfig{
			Provider:  ProviderHash,
			Model:     "hash-bow-v1",
			Dimension: 384,
		},
		LLM: LLMConfig{
			Provider:    ProviderGroq,
			Model:       "llama3-8b-8192",
			Temperature: 0.3,
			MaxTokens:   1024,
			Timeout:     60 * time.Second,
		},
		Chunking: ChunkingConfig{
			ChunkTokens:         500,
			MaxSentences:        5,
			SimilarityThreshold: 0.35,
			MinChunkSentences:   2,
		},
		OllamaHost:  "http://localhost:11434",
		GroqBaseURL: DefaultGroqBaseURL,
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// RAG_CONFIG and finally the environment. A .env file in the working directory
// is loaded first when present; variables already set win over it.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path := getEnv("RAG_CONFIG", ""); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.MaxUploadBytes = int64(getEnvInt("MAX_UPLOAD_BYTES", int(cfg.MaxUploadBytes)))

	cfg.Store.Backend = getEnv("STORE_BACKEND", cfg.Store.Backend)
	cfg.PostgresDSN = getEnv("POSTGRES_DSN", cfg.PostgresDSN)

	cfg.GraphEnabled = getEnvBool("GRAPH_ENABLED", cfg.GraphEnabled)
	cfg.Neo4jURI = getEnv("NEO4J_URI", cfg.Neo4jURI)
	cfg.Neo4jUser = getEnv("NEO4J_USERNAME", cfg.Neo4jUser)
	cfg.Neo4jPass = getEnv("NEO4J_PASSWORD", cfg.Neo4jPass)

	cfg.Embeddings.Provider = getEnv("EMBEDDING_PROVIDER", cfg.Embeddings.Provider)
	cfg.Embeddings.Model = getEnv("EMBEDDING_MODEL", cfg.Embeddings.Model)
	cfg.Embeddings.Dimension = getEnvInt("EMBEDDING_DIMENSION", cfg.Embeddings.Dimension)

	cfg.LLM.Provider = getEnv("LLM_PROVIDER", cfg.LLM.Provider)
	cfg.LLM.Model = getEnv("LLM_MODEL", getEnv("GROQ_MODEL", cfg.LLM.Model))
	cfg.LLM.MaxTokens = getEnvInt("LLM_MAX_TOKENS", cfg.LLM.MaxTokens)
	cfg.LLM.Temperature = float32(getEnvFloat("LLM_TEMPERATURE", float64(cfg.LLM.Temperature)))
	cfg.LLM.Timeout = getEnvDuration("LLM_TIMEOUT", cfg.LLM.Timeout)

	cfg.Chunking.ChunkTokens = getEnvInt("CHUNK_TOKENS", cfg.Chunking.ChunkTokens)
	cfg.Chunking.MaxSentences = getEnvInt("CHUNK_MAX_SENTENCES", cfg.Chunking.MaxSentences)
	cfg.Chunking.MinChunkSentences = getEnvInt("CHUNK_MIN_SENTENCES", cfg.Chunking.MinChunkSentences)
	cfg.Chunking.SimilarityThreshold = getEnvFloat("CHUNK_SIMILARITY_THRESHOLD", cfg.Chunking.SimilarityThreshold)

	cfg.OllamaHost = getEnv("OLLAMA_HOST", cfg.OllamaHost)
	cfg.OpenAIAPIKey = getEnv("OPENAI_API_KEY", cfg.OpenAIAPIKey)
	cfg.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", cfg.OpenAIBaseURL)
	cfg.GroqAPIKey = getEnv("GROQ_API_KEY", cfg.GroqAPIKey)
	cfg.GroqBaseURL = getEnv("GROQ_BASE_URL", cfg.GroqBaseURL)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvFloat(key string, fallback float64) float64 {
	value, err := strconv.ParseFloat(getEnv(key, ""), 64)
	if err != nil {
		return fallback
	}
	return value
}

func getEnvBool(key string, fallback bool) bool {
	value, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return value
}
