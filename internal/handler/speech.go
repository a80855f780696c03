package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pomelo/internal/model"
	"pomelo/internal/service"
)

// SpeechHandler 语音合成处理器
type SpeechHandler struct {
	speech *service.SpeechService
}

// NewSpeechHandler 创建语音合成处理器
func NewSpeechHandler(speech *service.SpeechService) *SpeechHandler {
	return &SpeechHandler{speech: speech}
}

// Synthesize 文本转语音接口
func (h *SpeechHandler) Synthesize(c *gin.Context) {
	var req model.SpeechRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidBody(c, err)
		return
	}

	resp, err := h.speech.Synthesize(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
