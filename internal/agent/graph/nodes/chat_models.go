package nodes

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/pocketwise/server/internal/agent/model"
	logx "github.com/pocketwise/server/pkg/logger"
)

// ChatModelConfig holds the configuration for chat model creation
type ChatModelConfig struct {
	APIKey       string
	BaseURL      string
	IntentConfig *model.IntentModelConfig
	ChatConfig   *model.ChatResponseModelConfig
	PlanConfig   *model.PlanModelConfig
}

// ChatModels holds the intent classifier, the chatbot model and the plan
// sub-agent model, all backed by one Gemini client.
type ChatModels struct {
	Intent model.ChatModel
	Chat   model.ChatModel
	Plan   model.ChatModel

	chat *gemini.ChatModel
	plan *gemini.ChatModel
}

// NewChatModels creates all three chat models with the given configuration
func NewChatModels(ctx context.Context, config ChatModelConfig) (*ChatModels, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if config.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = config.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	intentModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.IntentConfig.Model,
		Temperature: &config.IntentConfig.Temperature,
		MaxTokens:   &config.IntentConfig.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating intent model")
		return nil, fmt.Errorf("error creating intent model: %w", err)
	}

	chatModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.ChatConfig.Model,
		Temperature: &config.ChatConfig.Temperature,
		MaxTokens:   &config.ChatConfig.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating chat model")
		return nil, fmt.Errorf("error creating chat model: %w", err)
	}

	planModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       config.PlanConfig.Model,
		Temperature: &config.PlanConfig.Temperature,
		MaxTokens:   &config.PlanConfig.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating plan model")
		return nil, fmt.Errorf("error creating plan model: %w", err)
	}

	return &ChatModels{
		Intent: intentModel,
		Chat:   chatModel,
		Plan:   planModel,
		chat:   chatModel,
		plan:   planModel,
	}, nil
}

// BindToolsToChatModel binds the chatbot tool set to the chat model.
func (cm *ChatModels) BindToolsToChatModel(ctx context.Context, tools []*schema.ToolInfo) error {
	if err := cm.chat.BindTools(tools); err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools to chat model")
		return fmt.Errorf("failed to bind tools to chat model: %w", err)
	}
	logx.Debug().Msg("Successfully bound tools to chat model")
	return nil
}

// BindToolsToPlanModel binds the plan-agent tool set to the plan model.
func (cm *ChatModels) BindToolsToPlanModel(ctx context.Context, tools []*schema.ToolInfo) error {
	if err := cm.plan.BindTools(tools); err != nil {
		logx.Error().Err(err).Msg("Failed to bind tools to plan model")
		return fmt.Errorf("failed to bind tools to plan model: %w", err)
	}
	logx.Debug().Msg("Successfully bound tools to plan model")
	return nil
}
