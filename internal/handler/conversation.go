package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pomelo/internal/model"
	"pomelo/internal/repository"
)

// 列表分页默认值和上限
const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// ConversationHandler 历史对话管理处理器
// 对话归档是可选能力，未配置 MongoDB 时所有接口返回 503
type ConversationHandler struct {
	repo *repository.ConversationRepo
}

// NewConversationHandler 创建历史对话管理处理器
func NewConversationHandler(repo *repository.ConversationRepo) *ConversationHandler {
	return &ConversationHandler{repo: repo}
}

// List 获取历史对话列表，返回摘要不含消息体
func (h *ConversationHandler) List(c *gin.Context) {
	if h.repo == nil {
		respondStorageUnavailable(c)
		return
	}

	limit := parseIntQuery(c, "limit", defaultListLimit)
	if limit <= 0 || limit > maxListLimit {
		limit = defaultListLimit
	}
	offset := parseIntQuery(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	convs, err := h.repo.List(c.Request.Context(), int64(limit), int64(offset))
	if err != nil {
		respondError(c, err)
		return
	}

	total, err := h.repo.Count(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, model.ListConversationsResponse{
		Total:         int(total),
		Conversations: convs,
	})
}

// Get 获取单条历史对话，包含完整消息
func (h *ConversationHandler) Get(c *gin.Context) {
	if h.repo == nil {
		respondStorageUnavailable(c)
		return
	}

	conv, err := h.repo.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, conv)
}

// Delete 删除历史对话
func (h *ConversationHandler) Delete(c *gin.Context) {
	if h.repo == nil {
		respondStorageUnavailable(c)
		return
	}

	if err := h.repo.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Conversation deleted",
	})
}

// parseIntQuery 解析整型查询参数，解析失败返回默认值
func parseIntQuery(c *gin.Context, key string, def int) int {
	v := c.Query(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
