package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"pomelo/internal/model"
	"pomelo/internal/session"
)

// SessionHandler 会话管理处理器
type SessionHandler struct {
	sessions *session.Manager
}

// NewSessionHandler 创建会话管理处理器
func NewSessionHandler(sessions *session.Manager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Create 创建会话
// 请求体可为空，所有字段都有配置默认值
func (h *SessionHandler) Create(c *gin.Context) {
	var req model.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondInvalidBody(c, err)
		return
	}

	sess := h.sessions.Create(&req)
	c.JSON(http.StatusCreated, sess.Info())
}

// List 获取会话列表
func (h *SessionHandler) List(c *gin.Context) {
	sessions := h.sessions.List()
	c.JSON(http.StatusOK, gin.H{
		"sessions": sessions,
		"total":    len(sessions),
	})
}

// Get 获取会话详情，包含完整的消息历史
func (h *SessionHandler) Get(c *gin.Context) {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session":  sess.Info(),
		"messages": sess.Snapshot(),
	})
}

// Reset 清空会话历史，保留会话本身和系统提示词
func (h *SessionHandler) Reset(c *gin.Context) {
	sess, err := h.sessions.Get(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if err := sess.Reset(); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, sess.Info())
}

// Delete 删除会话
func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.sessions.Remove(c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Session deleted",
	})
}
