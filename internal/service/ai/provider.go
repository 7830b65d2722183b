package ai

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/talentscout/backend/internal/config"
)

// NewChatModel 根据配置的提供方创建聊天模型。
func NewChatModel(ctx context.Context, cfg config.AIConfig) (model.BaseChatModel, error) {
	if err := cfg.RequireCredential(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case config.ProviderArk:
		return newArkChatModel(ctx, cfg)
	case config.ProviderGemini:
		m, err := NewGeminiChatModel(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return m, nil
	case config.ProviderGroq, "":
		return NewGroqChatModel(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
}

func newArkChatModel(ctx context.Context, cfg config.AIConfig) (model.BaseChatModel, error) {
	var maxTokens *int
	if cfg.MaxTokens > 0 {
		val := cfg.MaxTokens
		maxTokens = &val
	}

	arkCfg := &ark.ChatModelConfig{
		BaseURL:   cfg.BaseURL,
		Region:    cfg.Region,
		APIKey:    cfg.APIKey,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Model:     cfg.Model,
		MaxTokens: maxTokens,
	}
	m, err := ark.NewChatModel(ctx, arkCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ark chat model: %w", err)
	}
	return m, nil
}
