package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/satriahrh/voxrelay/domain"
	"github.com/satriahrh/voxrelay/domain/repositories"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIConfig holds configuration for the OpenAI adapter
type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string // Optional: overrides the API base URL, mainly for tests and proxies
}

// OpenAILLM implements LargeLanguageModel using the OpenAI chat completions API
type OpenAILLM struct {
	client *openai.Client
	apiKey string
	model  string
	logger *zap.Logger
}

// Ensure OpenAILLM implements the LargeLanguageModel interface
var _ repositories.LargeLanguageModel = (*OpenAILLM)(nil)

// NewOpenAILLM creates a new OpenAI adapter. The credential is checked per call.
func NewOpenAILLM(config OpenAIConfig, logger *zap.Logger) *OpenAILLM {
	model := config.Model
	if model == "" {
		model = defaultOpenAIModel
		logger.Info("Using default OpenAI model", zap.String("model", model))
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAILLM{
		client: openai.NewClientWithConfig(clientConfig),
		apiKey: strings.TrimSpace(config.APIKey),
		model:  model,
		logger: logger,
	}
}

// Name implements LargeLanguageModel
func (o *OpenAILLM) Name() string { return "openai" }

// Complete implements LargeLanguageModel
func (o *OpenAILLM) Complete(ctx context.Context, req repositories.CompletionRequest) (string, error) {
	if o.apiKey == "" {
		return "", fmt.Errorf("%w: OPENAI_API_KEY is not set", domain.ErrConfigurationMissing)
	}

	var messages []openai.ChatCompletionMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	chatReq := openai.ChatCompletionRequest{
		Model:       o.model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if req.JSON {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	resp, err := o.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("openai chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		o.logger.Warn("OpenAI returned no choices", zap.String("model", o.model))
		return "", nil
	}

	return resp.Choices[0].Message.Content, nil
}
