package openai

import (
	"context"
	"fmt"

	openaisdk "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"
	"github.com/sweetpotato0/docarag/message"
)

// Config holds OpenAI provider configuration
type Config struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int64
	Temperature float64
}

// DefaultConfig returns default OpenAI configuration
func DefaultConfig() *Config {
	return &Config{
		Model:       "gpt-4o-mini",
		MaxTokens:   2000,
		Temperature: 0.7,
	}
}

// WithAPIKey set api key.
func (cfg *Config) WithAPIKey(apiKey string) *Config {
	cfg.APIKey = apiKey
	return cfg
}

// WithBaseURL set BaseURL.
func (cfg *Config) WithBaseURL(url string) *Config {
	cfg.BaseURL = url
	return cfg
}

// WithModel set model.
func (cfg *Config) WithModel(model string) *Config {
	cfg.Model = model
	return cfg
}

// Provider implements the llm.Client interface for OpenAI
type Provider struct {
	config *Config
	client openaisdk.Client
}

// New creates a new OpenAI provider using official SDK
func New(config *Config) *Provider {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Model == "" {
		config.Model = "gpt-4o-mini"
	}

	options := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		options = append(options, option.WithBaseURL(config.BaseURL))
	}
	client := openaisdk.NewClient(options...)

	return &Provider{
		config: config,
		client: client,
	}
}

// Generate implements the llm.Client interface
func (p *Provider) Generate(ctx context.Context, messages []*message.Message) (*message.Message, error) {
	converted := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case message.RoleSystem:
			converted = append(converted, openaisdk.SystemMessage(msg.Text()))
		case message.RoleUser:
			converted = append(converted, openaisdk.UserMessage(msg.Text()))
		case message.RoleAssistant:
			converted = append(converted, openaisdk.AssistantMessage(msg.Text()))
		}
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    openaisdk.ChatModel(p.config.Model),
		Messages: converted,
	}
	if p.config.MaxTokens > 0 {
		params.MaxTokens = param.NewOpt(p.config.MaxTokens)
	}
	if p.config.Temperature > 0 {
		params.Temperature = param.NewOpt(p.config.Temperature)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai generate: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai returned no choices")
	}

	return message.NewMessage(message.RoleAssistant, resp.Choices[0].Message.Content), nil
}

// SetTemperature updates the temperature setting for generation
func (p *Provider) SetTemperature(temp float64) {
	p.config.Temperature = temp
}

// SetMaxTokens updates the maximum tokens limit for generation
func (p *Provider) SetMaxTokens(max int64) {
	p.config.MaxTokens = max
}

// SetModel updates the model to use for generation
func (p *Provider) SetModel(model string) {
	p.config.Model = model
}
