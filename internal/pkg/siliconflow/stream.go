package siliconflow

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

// 流式 chunk 通道的缓冲大小
const streamChunkBuffer = 10

// SSE 帧格式
var (
	ssePrefix   = []byte("data:")
	sseDoneMark = []byte("[DONE]")
)

// StreamChunk 流式对话的增量片段
// 序列以 Done=true 的结束片段收尾；流中断时以携带 Err 的片段收尾
type StreamChunk struct {
	Delta        string // 增量文本
	FinishReason string // 结束原因，仅结束片段携带
	Done         bool   // 是否为结束片段
	Usage        *Usage // token 用量，仅结束片段携带
	Err          error  // 流中断错误，携带后序列终止
}

// chatCompletionChunk 流式响应的单帧
type chatCompletionChunk struct {
	Choices []streamChoice `json:"choices"`
	Usage   *Usage         `json:"usage"`
}

// streamChoice 流式候选
type streamChoice struct {
	Delta        streamDelta `json:"delta"`
	FinishReason string      `json:"finish_reason"`
}

// streamDelta 增量内容
type streamDelta struct {
	Content string `json:"content"`
}

// ChatCompletionStream 流式对话补全
// 返回按到达顺序产出片段的只读通道：惰性、有限、不可重放
// 建连阶段的临时性错误按退避策略重试；一旦开始收流，错误直接终止序列并通过 Err 上报
// 取消 ctx 会立刻停止读取并关闭连接，不会泄漏
func (c *Client) ChatCompletionStream(ctx context.Context, req *ChatRequest) (<-chan *StreamChunk, error) {
	body, err := json.Marshal(&chatCompletionRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	log.Debug().
		Str("model", req.Model).
		Int("messages", len(req.Messages)).
		Msg("opening chat completion stream")

	resp, err := c.doWithRetry(ctx, c.streamClient, func() (*http.Request, error) {
		return c.newJSONRequest(ctx, "/chat/completions", body)
	})
	if err != nil {
		return nil, err
	}

	ch := make(chan *StreamChunk, streamChunkBuffer)
	go c.readStream(ctx, resp.Body, ch)
	return ch, nil
}

// readStream 读取 SSE 流并向通道投递片段，结束后关闭通道
func (c *Client) readStream(ctx context.Context, body io.ReadCloser, ch chan<- *StreamChunk) {
	defer close(ch)
	defer body.Close()

	// 消费方停止接收（ctx 取消）时投递必须能退出，否则泄漏 goroutine
	send := func(chunk *StreamChunk) bool {
		select {
		case ch <- chunk:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var (
		finishReason string
		usage        *Usage
	)

	reader := bufio.NewReader(body)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			// 调用方取消：静默收尾，由消费方根据 ctx 判定
			if ctx.Err() != nil {
				return
			}
			// 未见 [DONE] 即中断，必须显式上报而不是静默截断
			send(&StreamChunk{Err: &APIError{
				Kind:    ErrKindNetworkFailure,
				Message: fmt.Sprintf("stream closed before completion: %v", err),
			}})
			return
		}

		line = bytes.TrimSpace(line)
		if len(line) == 0 || !bytes.HasPrefix(line, ssePrefix) {
			continue
		}

		payload := bytes.TrimSpace(bytes.TrimPrefix(line, ssePrefix))
		if bytes.Equal(payload, sseDoneMark) {
			send(&StreamChunk{
				Done:         true,
				FinishReason: finishReason,
				Usage:        usage,
			})
			return
		}

		var chunk chatCompletionChunk
		if err := json.Unmarshal(payload, &chunk); err != nil {
			// 个别坏帧跳过，不终止整个流
			log.Warn().Err(err).Msg("skipping malformed stream frame")
			continue
		}

		if chunk.Usage != nil {
			usage = chunk.Usage
		}
		if len(chunk.Choices) == 0 {
			continue
		}

		choice := chunk.Choices[0]
		if choice.FinishReason != "" {
			finishReason = choice.FinishReason
		}
		if choice.Delta.Content != "" {
			if !send(&StreamChunk{Delta: choice.Delta.Content}) {
				return
			}
		}
	}
}
