package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"
)

type openAIClient struct {
	client *openai.Client
	logger *logrus.Logger
}

func NewOpenAIClient(opts Options, logger *logrus.Logger) StreamClient {
	cfg := openai.DefaultConfig(opts.OpenAIAPIKey)
	if opts.OpenAIBaseURL != "" {
		cfg.BaseURL = opts.OpenAIBaseURL
	}

	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &openAIClient{
		client: openai.NewClientWithConfig(cfg),
		logger: logger,
	}
}

func (c *openAIClient) Generate(ctx context.Context, messages []Message, settings Settings) (string, error) {
	req := c.buildRequest(messages, settings, false)

	c.logger.WithFields(logrus.Fields{
		"model":       settings.Model,
		"temperature": settings.Temperature,
		"messages":    len(messages),
	}).Debug("calling openai chat completion")

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai chat completion returned no choices")
	}

	return resp.Choices[0].Message.Content, nil
}

func (c *openAIClient) GenerateStream(ctx context.Context, messages []Message, settings Settings, fn func(string) error) (string, error) {
	req := c.buildRequest(messages, settings, true)

	stream, err := c.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create openai chat completion stream: %w", err)
	}
	defer stream.Close()

	var builder strings.Builder
	for {
		resp, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", fmt.Errorf("receive openai stream chunk: %w", recvErr)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		fragment := resp.Choices[0].Delta.Content
		if fragment == "" {
			continue
		}
		builder.WriteString(fragment)
		if fn != nil {
			if err := fn(fragment); err != nil {
				return "", err
			}
		}
	}

	return builder.String(), nil
}

func (c *openAIClient) buildRequest(messages []Message, settings Settings, stream bool) openai.ChatCompletionRequest {
	req := openai.ChatCompletionRequest{
		Model:       settings.Model,
		Temperature: settings.Temperature,
		Stream:      stream,
	}
	if settings.MaxTokens > 0 {
		req.MaxTokens = settings.MaxTokens
	}

	req.Messages = make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		req.Messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	return req
}

var _ StreamClient = (*openAIClient)(nil)
