package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/fabfab/rag-explorer/config"
	"github.com/fabfab/rag-explorer/domain"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// placeholderKey is the value shipped in example .env files.
const placeholderKey = "your_groq_api_key_here"

const defaultTimeout = 60 * time.Second

type Message struct {
	Role    string
	Content string
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type Completion struct {
	Answer string `json:"answer"`
	Model  string `json:"model"`
	Usage  Usage  `json:"usage"`
}

// Client generates a completion. Every call is bounded by the client's
// timeout in addition to ctx.
type Client interface {
	Generate(ctx context.Context, messages []Message) (Completion, error)
}

type Options struct {
	Provider    string
	Model       string
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration

	OllamaHost string
	APIKey     string
	BaseURL    string
}

// NewClient picks the provider named in cfg.LLM. A hosted provider without a
// credential reports domain.ErrNotConfigured.
func NewClient(cfg config.Config) (Client, error) {
	opts := Options{
		Provider:    cfg.LLM.Provider,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
		OllamaHost:  cfg.OllamaHost,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts), nil
	case config.ProviderOpenAI:
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set: %w", domain.ErrNotConfigured)
		}
		opts.APIKey = cfg.OpenAIAPIKey
		opts.BaseURL = cfg.OpenAIBaseURL
		return NewOpenAIClient(opts), nil
	case config.ProviderGroq, "":
		if cfg.GroqAPIKey == "" || cfg.GroqAPIKey == placeholderKey {
			return nil, fmt.Errorf("groq provider selected but GROQ_API_KEY not set: %w", domain.ErrNotConfigured)
		}
		opts.APIKey = cfg.GroqAPIKey
		opts.BaseURL = cfg.GroqBaseURL
		if opts.BaseURL == "" {
			opts.BaseURL = config.DefaultGroqBaseURL
		}
		return NewOpenAIClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return context.WithTimeout(ctx, timeout)
}
