package llm

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/nkwachiabel/docdocgo-core/config"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

// Settings controls one generation call. Callers copy and tweak it per call; a
// condensation call, for instance, forces Temperature to zero.
type Settings struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

type Client interface {
	Generate(ctx context.Context, messages []Message, settings Settings) (string, error)
}

// StreamClient is an optional capability. Implementations invoke fn once per
// generated fragment, in generation order, and return the aggregate text. A
// non-nil error from fn stops the stream.
type StreamClient interface {
	Client
	GenerateStream(ctx context.Context, messages []Message, settings Settings, fn func(string) error) (string, error)
}

type Options struct {
	Provider string

	OllamaHost    string
	OpenAIAPIKey  string
	OpenAIBaseURL string
}

func NewClient(cfg config.Config, logger *logrus.Logger) (Client, error) {
	opts := Options{
		Provider:      cfg.LLM.Provider,
		OllamaHost:    cfg.OllamaHost,
		OpenAIAPIKey:  cfg.OpenAIAPIKey,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
	}

	switch opts.Provider {
	case config.ProviderOllama:
		return NewOllamaClient(opts, logger), nil
	case config.ProviderOpenAI:
		if opts.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(opts, logger), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}
}
