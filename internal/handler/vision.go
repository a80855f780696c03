package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pomelo/internal/model"
	"pomelo/internal/service"
)

// VisionHandler 图像理解处理器
type VisionHandler struct {
	vision *service.VisionService
}

// NewVisionHandler 创建图像理解处理器
func NewVisionHandler(vision *service.VisionService) *VisionHandler {
	return &VisionHandler{vision: vision}
}

// Describe 图像理解接口
func (h *VisionHandler) Describe(c *gin.Context) {
	var req model.VisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondInvalidBody(c, err)
		return
	}

	resp, err := h.vision.Describe(c.Request.Context(), &req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
