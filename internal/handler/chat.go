package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pomelo/internal/model"
	"pomelo/internal/service"
)

// ChatHandler 对话处理器
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler 创建对话处理器
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Chat 单次对话接口
// 不带 session_id 时自动创建新会话并在响应中返回
func (h *ChatHandler) Chat(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidBody(c, err)
		return
	}

	resp, err := h.chatService.Chat(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ChatStream 流式对话接口 (SSE)
// 增量内容以 message 事件下发，结束时发送 done 事件，失败时发送 error 事件
func (h *ChatHandler) ChatStream(c *gin.Context) {
	var req model.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidBody(c, err)
		return
	}

	events, _, err := h.chatService.ChatStream(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	// 设置 SSE headers
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	// 客户端断开经请求上下文传到转发侧，事件通道随之关闭
	for ev := range events {
		switch {
		case ev.Err != nil:
			_, body := errorEnvelope(ev.Err)
			c.SSEvent("error", body)
			c.Writer.Flush()
			return
		case ev.Chunk != nil && ev.Chunk.Done:
			c.SSEvent("done", ev.Chunk)
			c.Writer.Flush()
			return
		case ev.Chunk != nil:
			c.SSEvent("message", gin.H{"content": ev.Chunk.Content})
			c.Writer.Flush()
		}
	}
}
