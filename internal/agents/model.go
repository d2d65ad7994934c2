package agents

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/deepseek"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"github.com/dyike/BrokerGo/config"
)

// GeminiOpenAIURL is Gemini's OpenAI-compatible endpoint.
const GeminiOpenAIURL = "https://generativelanguage.googleapis.com/v1beta/openai/"

const maxTokens = 8192

// NewChatModel builds the tool-calling model selected by cfg.LLMProvider.
func NewChatModel(ctx context.Context, cfg *config.Config) (model.ToolCallingChatModel, error) {
	if err := cfg.ValidateCredentials(); err != nil {
		return nil, err
	}
	tokens := maxTokens

	switch cfg.LLMProvider {
	case "gemini":
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:   GeminiOpenAIURL,
			APIKey:    cfg.GoogleAPIKey,
			Model:     cfg.ChatModel,
			MaxTokens: &tokens,
		})
		if err != nil {
			return nil, fmt.Errorf("gemini chat model: %w", err)
		}
		return cm, nil
	case "openai":
		cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:   cfg.BackendURL,
			APIKey:    cfg.OpenAIAPIKey,
			Model:     cfg.ChatModel,
			MaxTokens: &tokens,
		})
		if err != nil {
			return nil, fmt.Errorf("openai chat model: %w", err)
		}
		return cm, nil
	case "deepseek":
		chatModel := cfg.ChatModel
		if chatModel == "" || strings.HasPrefix(chatModel, "gemini") {
			chatModel = "deepseek-chat"
		}
		cm, err := deepseek.NewChatModel(ctx, &deepseek.ChatModelConfig{
			APIKey:    cfg.DeepSeekAPIKey,
			Model:     chatModel,
			MaxTokens: tokens,
		})
		if err != nil {
			return nil, fmt.Errorf("deepseek chat model: %w", err)
		}
		return cm, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
}
