package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
)

// #region config

// OpenAIConfig configures the OpenAI-compatible adapter. BaseURL may point at
// any server speaking the same API (local gateways included).
type OpenAIConfig struct {
	APIKey         string  `mapstructure:"api_key"`
	BaseURL        string  `mapstructure:"base_url"`
	EmbeddingModel string  `mapstructure:"embedding_model"`
	ChatModel      string  `mapstructure:"chat_model"`
	SystemPrompt   string  `mapstructure:"system_prompt"`
	Temperature    float32 `mapstructure:"temperature"`
}

// DefaultOpenAIConfig returns the defaults used when a field is unset.
func DefaultOpenAIConfig() OpenAIConfig {
	return OpenAIConfig{
		EmbeddingModel: string(openai.SmallEmbedding3),
		ChatModel:      "gpt-4o-mini",
		SystemPrompt:   "You reflect honestly on your own previous answer.",
		Temperature:    0.2,
	}
}

// #endregion config

// #region client

// OpenAI implements Embedder and Generator over the OpenAI API.
type OpenAI struct {
	client *openai.Client
	config OpenAIConfig
	log    zerolog.Logger
}

// NewOpenAI builds the adapter. An empty API key is rejected.
func NewOpenAI(config OpenAIConfig, log zerolog.Logger) (*OpenAI, error) {
	if config.APIKey == "" {
		return nil, errors.New("openai: api key not set")
	}
	defaults := DefaultOpenAIConfig()
	if config.EmbeddingModel == "" {
		config.EmbeddingModel = defaults.EmbeddingModel
	}
	if config.ChatModel == "" {
		config.ChatModel = defaults.ChatModel
	}
	if config.SystemPrompt == "" {
		config.SystemPrompt = defaults.SystemPrompt
	}

	cfg := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		cfg.BaseURL = config.BaseURL
	}
	log = log.With().Str("component", "openai").Logger()
	log.Info().Str("embedding_model", config.EmbeddingModel).Str("chat_model", config.ChatModel).Msg("initializing openai client")

	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		config: config,
		log:    log,
	}, nil
}

// Embed returns the embedding of text.
func (o *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(o.config.EmbeddingModel),
	})
	if err != nil {
		o.log.Error().Err(err).Msg("embedding call failed")
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, errors.New("openai embeddings: no data returned")
	}
	return resp.Data[0].Embedding, nil
}

// Generate returns the assistant reply to prompt.
func (o *OpenAI) Generate(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model: o.config.ChatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: o.config.SystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: o.config.Temperature,
	}
	resp, err := o.client.CreateChatCompletion(ctx, req)
	if err != nil {
		o.log.Error().Err(err).Msg("chat completion failed")
		return "", fmt.Errorf("openai chat: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat: no choices returned")
	}
	o.log.Debug().Str("finish_reason", string(resp.Choices[0].FinishReason)).Msg("chat completion received")
	return resp.Choices[0].Message.Content, nil
}

// #endregion client
