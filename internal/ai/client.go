package ai

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"pomelo/internal/config"
	"pomelo/internal/model"
	"pomelo/internal/pkg/siliconflow"
)

// Client AI 能力层客户端
// 职责: 封装对话能力，把上游增量流组装成对表现层友好的事件序列
type Client struct {
	cfg *config.AIConfig
	sf  *siliconflow.Client
}

// NewClient 创建 AI 客户端
// 上游客户端由外部注入，与语音、图像等服务共享同一个连接配置
func NewClient(cfg *config.AIConfig, sf *siliconflow.Client) *Client {
	return &Client{
		cfg: cfg,
		sf:  sf,
	}
}

// ChatRequest AI 对话请求
type ChatRequest struct {
	Model    string // 为空时使用配置默认模型
	Messages []model.Message
	Options  *model.ChatOptions // 单次请求覆盖，nil 表示全用默认值
}

// ChatResponse AI 对话响应
type ChatResponse struct {
	Content      string
	FinishReason string
	Usage        *model.TokenUsage
}

// StreamEvent 流式对话事件
// Chunk 与 Err 互斥；Err 事件终止序列
type StreamEvent struct {
	Chunk *model.ChatChunk
	Err   error
}

// Chat 同步对话
func (c *Client) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	result, err := c.sf.ChatCompletion(ctx, c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	return &ChatResponse{
		Content:      result.Content,
		FinishReason: result.FinishReason,
		Usage:        convertUsage(result.Usage),
	}, nil
}

// ChatStream 流式对话
// 返回的事件序列以一个 Done 片段或一个 Err 事件收尾，随后通道关闭
func (c *Client) ChatStream(ctx context.Context, req *ChatRequest) (<-chan *StreamEvent, error) {
	upstream, err := c.sf.ChatCompletionStream(ctx, c.buildRequest(req))
	if err != nil {
		return nil, fmt.Errorf("failed to open chat stream: %w", err)
	}

	events := make(chan *StreamEvent, 10)
	go c.assemble(ctx, upstream, events)
	return events, nil
}

// assemble 消费上游片段，驱动组装器并产出事件
func (c *Client) assemble(ctx context.Context, upstream <-chan *siliconflow.StreamChunk, events chan<- *StreamEvent) {
	defer close(events)

	send := func(ev *StreamEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	asm := NewAssembler()
	if err := asm.Start(); err != nil {
		send(&StreamEvent{Err: err})
		return
	}

	for chunk := range upstream {
		switch {
		case chunk.Err != nil:
			send(&StreamEvent{Err: asm.Fail(chunk.Err)})
			return

		case chunk.Done:
			if err := asm.Complete(chunk.FinishReason, convertUsage(chunk.Usage)); err != nil {
				send(&StreamEvent{Err: asm.Fail(err)})
				return
			}
			resp, err := asm.Finalize()
			if err != nil {
				send(&StreamEvent{Err: err})
				return
			}
			send(&StreamEvent{Chunk: &model.ChatChunk{
				Done:         true,
				FinishReason: resp.FinishReason,
				Usage:        resp.Usage,
			}})
			return

		default:
			if _, err := asm.Push(chunk.Delta); err != nil {
				send(&StreamEvent{Err: asm.Fail(err)})
				return
			}
			if !send(&StreamEvent{Chunk: &model.ChatChunk{Content: chunk.Delta}}) {
				return
			}
		}
	}

	// 上游静默收尾：调用方取消时无需补报，其余情况按中断上报
	if ctx.Err() != nil {
		return
	}
	if _, err := asm.Finalize(); err != nil {
		log.Warn().Err(err).Msg("chat stream ended without final chunk")
		send(&StreamEvent{Err: err})
	}
}

// buildRequest 合并配置默认值和单次请求覆盖，构建上游请求
func (c *Client) buildRequest(req *ChatRequest) *siliconflow.ChatRequest {
	modelName := req.Model
	if modelName == "" {
		modelName = c.cfg.Model
	}

	temperature := c.cfg.Options.Temperature
	maxTokens := c.cfg.Options.MaxTokens
	topP := c.cfg.Options.TopP
	if req.Options != nil {
		if req.Options.Temperature != nil {
			temperature = *req.Options.Temperature
		}
		if req.Options.MaxTokens != nil {
			maxTokens = *req.Options.MaxTokens
		}
		if req.Options.TopP != nil {
			topP = *req.Options.TopP
		}
	}

	messages := make([]siliconflow.ChatMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		messages = append(messages, siliconflow.ChatMessage{
			Role:    msg.Role,
			Content: msg.Content,
		})
	}

	return &siliconflow.ChatRequest{
		Model:       modelName,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}
}

// convertUsage 上游用量转为响应模型
func convertUsage(u *siliconflow.Usage) *model.TokenUsage {
	if u == nil {
		return nil
	}
	return &model.TokenUsage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}
