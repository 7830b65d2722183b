package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/zhouzirui/talentscout/backend/internal/config"
)

// GeminiChatModel adapts the genai client to the eino chat model interface.
type GeminiChatModel struct {
	client    *genai.Client
	model     string
	maxTokens int
}

var _ model.BaseChatModel = (*GeminiChatModel)(nil)

// NewGeminiChatModel creates a Gemini API client for cfg.
func NewGeminiChatModel(ctx context.Context, cfg config.AIConfig) (*GeminiChatModel, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiChatModel{
		client:    client,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}, nil
}

// Generate maps system messages to the system instruction and the rest to contents.
func (m *GeminiChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{
		Model:     &m.model,
		MaxTokens: &m.maxTokens,
	}, opts...)

	system, contents := toGeminiContents(input)
	if len(contents) == 0 {
		return nil, errors.New("gemini request has no messages")
	}

	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: system,
		Temperature:       options.Temperature,
		TopP:              options.TopP,
		StopSequences:     options.Stop,
	}
	if options.MaxTokens != nil && *options.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(*options.MaxTokens)
	}

	modelName := m.model
	if options.Model != nil && *options.Model != "" {
		modelName = *options.Model
	}

	resp, err := m.client.Models.GenerateContent(ctx, modelName, contents, genCfg)
	if err != nil {
		return nil, fmt.Errorf("gemini API error: %w", err)
	}

	out := schema.AssistantMessage(resp.Text(), nil)
	if resp.UsageMetadata != nil {
		out.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{
			PromptTokens:     int(resp.UsageMetadata.PromptTokenCount),
			CompletionTokens: int(resp.UsageMetadata.CandidatesTokenCount),
			TotalTokens:      int(resp.UsageMetadata.TotalTokenCount),
		}}
	}
	return out, nil
}

// Stream returns the generated reply as a single chunk.
func (m *GeminiChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// geminiOpeningTurn 放在以模型开场白开头的历史之前，Gemini 要求对话以 user 开始
const geminiOpeningTurn = "Hello."

// toGeminiContents splits the conversation into a system instruction and turn contents.
// When only system messages are present (the closing call), the last one is sent as the user turn
// because Gemini rejects requests without contents.
func toGeminiContents(input []*schema.Message) (*genai.Content, []*genai.Content) {
	var systemParts []string
	contents := make([]*genai.Content, 0, len(input))

	for _, msg := range input {
		if msg == nil {
			continue
		}
		switch msg.Role {
		case schema.System:
			systemParts = append(systemParts, msg.Content)
		case schema.Assistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		}
	}

	if len(contents) == 0 && len(systemParts) > 0 {
		last := systemParts[len(systemParts)-1]
		systemParts = systemParts[:len(systemParts)-1]
		contents = append(contents, genai.NewContentFromText(last, genai.RoleUser))
	}
	if len(contents) > 0 && contents[0].Role == string(genai.RoleModel) {
		contents = append([]*genai.Content{genai.NewContentFromText(geminiOpeningTurn, genai.RoleUser)}, contents...)
	}

	if len(systemParts) == 0 {
		return nil, contents
	}
	return genai.NewContentFromText(strings.Join(systemParts, "\n\n"), genai.RoleUser), contents
}
