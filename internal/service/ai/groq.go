package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/talentscout/backend/internal/config"
)

// GroqChatModel talks to Groq's OpenAI-compatible chat completions endpoint.
type GroqChatModel struct {
	client    *http.Client
	baseURL   string
	apiKey    string
	model     string
	maxTokens int
}

var _ model.ChatModel = (*GroqChatModel)(nil)

// NewGroqChatModel builds a chat model from the groq section of the configuration.
func NewGroqChatModel(cfg config.AIConfig) *GroqChatModel {
	return &GroqChatModel{
		client:    &http.Client{Timeout: cfg.Timeout},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
	}
}

type groqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type groqRequest struct {
	Model       string        `json:"model"`
	Messages    []groqMessage `json:"messages"`
	Temperature *float32      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
	TopP        *float32      `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
}

type groqResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Generate sends the whole conversation and returns the first choice.
func (m *GroqChatModel) Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	options := model.GetCommonOptions(&model.Options{
		Model:     &m.model,
		MaxTokens: &m.maxTokens,
	}, opts...)

	reqBody := groqRequest{
		Messages:    make([]groqMessage, 0, len(input)),
		Temperature: options.Temperature,
		TopP:        options.TopP,
		Stop:        options.Stop,
	}
	if options.Model != nil {
		reqBody.Model = *options.Model
	}
	if options.MaxTokens != nil && *options.MaxTokens > 0 {
		reqBody.MaxTokens = options.MaxTokens
	}
	for _, msg := range input {
		if msg == nil {
			continue
		}
		reqBody.Messages = append(reqBody.Messages, groqMessage{Role: string(msg.Role), Content: msg.Content})
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("encode groq request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("groq API error: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read groq response: %w", err)
	}

	var result groqResponse
	decodeErr := json.Unmarshal(body, &result)

	if resp.StatusCode != http.StatusOK {
		if decodeErr == nil && result.Error.Message != "" {
			return nil, fmt.Errorf("groq API error: %d: %s", resp.StatusCode, result.Error.Message)
		}
		return nil, fmt.Errorf("groq API error: %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("decode groq response: %w", decodeErr)
	}
	if result.Error.Message != "" {
		return nil, fmt.Errorf("groq error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return nil, errors.New("no response from groq")
	}

	out := schema.AssistantMessage(result.Choices[0].Message.Content, nil)
	out.ResponseMeta = &schema.ResponseMeta{FinishReason: result.Choices[0].FinishReason}
	if result.Usage != nil {
		out.ResponseMeta.Usage = &schema.TokenUsage{
			PromptTokens:     result.Usage.PromptTokens,
			CompletionTokens: result.Usage.CompletionTokens,
			TotalTokens:      result.Usage.TotalTokens,
		}
	}
	return out, nil
}

// Stream returns the generated reply as a single chunk.
func (m *GroqChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := m.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

// BindTools is not supported; the intake conversation never calls tools.
func (m *GroqChatModel) BindTools(tools []*schema.ToolInfo) error {
	if len(tools) == 0 {
		return nil
	}
	return errors.New("groq chat model does not support tools")
}
