// Package generator writes the short message that follows each sticker.
package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"seattlehumus/internal/litter"
)

const (
	DefaultModel   = "gpt-4.1"
	defaultTimeout = 30 * time.Second
	maxTokens      = 50
	temperature    = 1.0
)

var (
	ErrNotConfigured = errors.New("generator: no api key configured")
	ErrEmpty         = errors.New("generator: empty completion")
)

// Generator produces message text for a weighed cat.
type Generator interface {
	Generate(ctx context.Context, cat litter.Cat, weight float64) (string, error)
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// OpenAI asks a chat model for the message.
type OpenAI struct {
	model  string
	client *openai.Client
}

var _ Generator = (*OpenAI)(nil)

// NewOpenAI returns ErrNotConfigured when no API key is set.
func NewOpenAI(cfg Config) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrNotConfigured
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	return &OpenAI{model: cfg.Model, client: openai.NewClientWithConfig(oc)}, nil
}

func (g *OpenAI) Generate(ctx context.Context, cat litter.Cat, weight float64) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: userPrompt(cat, weight)},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("generator: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmpty
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

// Fallback is the message used when generation is unavailable.
func Fallback(cat litter.Cat, weight float64) string {
	return fmt.Sprintf("%s just used the bathroom and weighs %.2f lbs.", cat, weight)
}
