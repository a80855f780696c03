package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// HealthHandler 健康检查处理器
type HealthHandler struct {
	archiveEnabled bool
	cacheEnabled   bool
	storageEnabled bool
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(archiveEnabled, cacheEnabled, storageEnabled bool) *HealthHandler {
	return &HealthHandler{
		archiveEnabled: archiveEnabled,
		cacheEnabled:   cacheEnabled,
		storageEnabled: storageEnabled,
	}
}

// Health 健康检查
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

// Ready 就绪检查，附带可选组件的启用状态
func (h *HealthHandler) Ready(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"components": gin.H{
			"archive": h.archiveEnabled,
			"cache":   h.cacheEnabled,
			"storage": h.storageEnabled,
		},
	})
}
