package siliconflow

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"
)

// 消息角色
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage 对话消息
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest 对话补全请求
// Messages 为完整的有序历史，按插入顺序发送给模型
type ChatRequest struct {
	Model       string
	Messages    []ChatMessage
	MaxTokens   int
	Temperature float64
	TopP        float64
}

// ChatResult 对话补全结果
type ChatResult struct {
	Content      string
	FinishReason string
	Usage        *Usage
}

// Usage token 用量统计
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// chatCompletionRequest /chat/completions 请求体
type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	TopP        float64       `json:"top_p,omitempty"`
	Stream      bool          `json:"stream"`
}

// chatCompletionResponse /chat/completions 响应体
type chatCompletionResponse struct {
	ID      string       `json:"id"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *Usage       `json:"usage"`
}

// chatChoice 候选结果
type chatChoice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// ChatCompletion 同步对话补全
// 一次阻塞调用返回完整结果；临时性错误在内部按退避策略重试
func (c *Client) ChatCompletion(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	body, err := json.Marshal(&chatCompletionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	log.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Msg("sending chat completion request")

	resp, err := c.doWithRetry(ctx, c.httpClient, func() (*http.Request, error) {
		return c.newJSONRequest(ctx, "/chat/completions", body)
	})
	if err != nil {
		return nil, err
	}

	var out chatCompletionResponse
	if err := readJSONResponse(resp, &out); err != nil {
		return nil, err
	}

	if len(out.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := out.Choices[0]
	return &ChatResult{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage:        out.Usage,
	}, nil
}
