package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/zhouzirui/talentscout/backend/internal/config"
	"github.com/zhouzirui/talentscout/backend/internal/logging"
	"github.com/zhouzirui/talentscout/backend/internal/model/chat"
)

// Sampling temperatures used by the intake conversation.
const (
	TemperatureGreeting float32 = 0.2
	TemperatureClosing  float32 = 0.2
	TemperatureTurn     float32 = 0.3
)

// ErrEmptyReply is returned when the model answers with no text.
var ErrEmptyReply = errors.New("model returned an empty reply")

// Request is one model call: the instruction text, optional context messages placed
// right after it, and the conversation history.
type Request struct {
	Instructions string
	Context      []chat.Message
	History      []chat.Message
	Temperature  float32
}

// Responder produces the next assistant message.
type Responder interface {
	Reply(ctx context.Context, req Request) (string, error)
}

// Service runs requests through the compiled prompt chain.
type Service struct {
	chain     compose.Runnable[map[string]any, *schema.Message]
	maxTokens int
	timeout   time.Duration
	logger    *zap.Logger
}

// NewService creates the chat model for cfg and compiles the chain around it.
func NewService(ctx context.Context, cfg config.AIConfig, logger *zap.Logger) (*Service, error) {
	if err := cfg.RequireCredential(); err != nil {
		return nil, err
	}

	chatModel, err := NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create chat model: %w", err)
	}

	return NewServiceWithModel(ctx, chatModel, cfg.MaxTokens, cfg.Timeout, logger)
}

// NewServiceWithModel compiles the chain around an existing chat model.
func NewServiceWithModel(ctx context.Context, chatModel model.BaseChatModel, maxTokens int, timeout time.Duration, logger *zap.Logger) (*Service, error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{instructions}"),
		schema.MessagesPlaceholder("context", true),
		schema.MessagesPlaceholder("history", true),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to compile chat chain: %w", err)
	}

	return &Service{
		chain:     runnable,
		maxTokens: maxTokens,
		timeout:   timeout,
		logger:    logging.OrNop(logger).Named("ai"),
	}, nil
}

// Reply invokes the model once. There is no retry; the caller decides what a failure means.
func (s *Service) Reply(ctx context.Context, req Request) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	opts := []model.Option{model.WithTemperature(req.Temperature)}
	if s.maxTokens > 0 {
		opts = append(opts, model.WithMaxTokens(s.maxTokens))
	}

	start := time.Now()
	response, err := s.chain.Invoke(ctx, buildChainInput(req), compose.WithChatModelOption(opts...))
	if err != nil {
		return "", fmt.Errorf("failed to run AI chain: %w", err)
	}

	content := ""
	if response != nil {
		content = strings.TrimSpace(response.Content)
	}
	if content == "" {
		return "", ErrEmptyReply
	}

	s.logger.Debug("generated reply",
		zap.Float32("temperature", req.Temperature),
		zap.Int("history", len(req.History)),
		zap.Int("length", len(content)),
		zap.Duration("elapsed", time.Since(start)))
	return content, nil
}

func buildChainInput(req Request) map[string]any {
	return map[string]any{
		"instructions": req.Instructions,
		"context":      toSchemaMessages(req.Context),
		"history":      toSchemaMessages(req.History),
	}
}

func toSchemaMessages(messages []chat.Message) []*schema.Message {
	out := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case chat.RoleSystem:
			out = append(out, schema.SystemMessage(msg.Content))
		case chat.RoleUser:
			out = append(out, schema.UserMessage(msg.Content))
		case chat.RoleAssistant:
			out = append(out, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return out
}
