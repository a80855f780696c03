package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pomelo/internal/ai"
	"pomelo/internal/model"
	"pomelo/internal/pkg/cache"
	"pomelo/internal/pkg/ctxutil"
	"pomelo/internal/repository"
	"pomelo/internal/session"
)

// archiveTimeout 归档写库的独立超时，与请求生命周期解耦
const archiveTimeout = 5 * time.Second

// requestLogger 带请求和会话标识的日志器
func requestLogger(ctx context.Context, sessionID string) zerolog.Logger {
	logCtx := log.With().Str("session_id", sessionID)
	if rid, ok := ctxutil.GetRequestID(ctx); ok {
		logCtx = logCtx.Str("request_id", rid)
	}
	return logCtx.Logger()
}

// ChatService 对话服务 - 业务逻辑层
// 职责: 编排会话状态、AI 能力层和数据层，实现一问一答的业务流程
type ChatService struct {
	sessions *session.Manager
	aiClient *ai.Client
	convRepo *repository.ConversationRepo // 可选，nil 时不归档
	cache    *cache.RedisCache            // 可选，nil 时不走缓存
	cacheTTL time.Duration
}

// NewChatService 创建对话服务
func NewChatService(sessions *session.Manager, aiClient *ai.Client, convRepo *repository.ConversationRepo, redisCache *cache.RedisCache, cacheTTL time.Duration) *ChatService {
	if cacheTTL <= 0 {
		cacheTTL = cache.CompletionCacheTTL
	}
	return &ChatService{
		sessions: sessions,
		aiClient: aiClient,
		convRepo: convRepo,
		cache:    redisCache,
		cacheTTL: cacheTTL,
	}
}

// cachedCompletion 缓存中的单次对话结果
type cachedCompletion struct {
	Content      string            `json:"content"`
	FinishReason string            `json:"finish_reason"`
	Usage        *model.TokenUsage `json:"usage,omitempty"`
}

// Chat 处理单次对话请求
// 业务流程: 1. 锁定会话 -> 2. 查缓存 -> 3. 调用 AI -> 4. 更新会话并归档
func (s *ChatService) Chat(ctx context.Context, req *model.ChatRequest) (*model.ChatResponse, error) {
	sess, err := s.sessions.GetOrCreate(req.SessionID)
	if err != nil {
		return nil, err
	}

	logger := requestLogger(ctx, sess.ID())

	pending, err := sess.BeginRequest(req.Message)
	if err != nil {
		return nil, err
	}

	aiReq := &ai.ChatRequest{
		Model:    sess.Model(),
		Messages: pending.Messages,
		Options:  req.Options,
	}

	// 相同模型、历史和参数的请求直接复用缓存的回复
	var cacheKey string
	if s.cache != nil {
		cacheKey = cache.CompletionCacheKey(aiReq.Model, aiReq.Messages, req.Options)
		var cached cachedCompletion
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil && cached.Content != "" {
			logger.Debug().Msg("completion cache hit")
			if err := sess.AppendAssistant(cached.Content, cached.Usage); err != nil {
				return nil, err
			}
			s.archive(ctx, sess, req.Message, cached.Content, cached.Usage)
			return &model.ChatResponse{
				SessionID:    sess.ID(),
				Message:      cached.Content,
				FinishReason: cached.FinishReason,
				Truncated:    pending.Truncated,
				Usage:        cached.Usage,
			}, nil
		}
	}

	aiResp, err := s.aiClient.Chat(ctx, aiReq)
	if err != nil {
		// 调用方取消时回滚本轮，其余失败保留用户消息
		if ctx.Err() != nil {
			sess.CancelRequest()
		} else {
			sess.FailRequest()
		}
		logger.Error().Err(err).Msg("chat completion failed")
		return nil, err
	}

	if err := sess.AppendAssistant(aiResp.Content, aiResp.Usage); err != nil {
		return nil, err
	}

	s.archive(ctx, sess, req.Message, aiResp.Content, aiResp.Usage)

	if s.cache != nil {
		entry := cachedCompletion{
			Content:      aiResp.Content,
			FinishReason: aiResp.FinishReason,
			Usage:        aiResp.Usage,
		}
		if err := s.cache.Set(ctx, cacheKey, entry, s.cacheTTL); err != nil {
			logger.Warn().Err(err).Msg("failed to store completion cache")
		}
	}

	event := logger.Info().Bool("truncated", pending.Truncated)
	if aiResp.Usage != nil {
		event = event.
			Int("prompt_tokens", aiResp.Usage.PromptTokens).
			Int("completion_tokens", aiResp.Usage.CompletionTokens)
	}
	event.Msg("chat completed")

	return &model.ChatResponse{
		SessionID:    sess.ID(),
		Message:      aiResp.Content,
		FinishReason: aiResp.FinishReason,
		Truncated:    pending.Truncated,
		Usage:        aiResp.Usage,
	}, nil
}

// ChatStream 流式对话
// 返回事件通道和会话ID，会话状态由转发 goroutine 在流结束时更新:
// 收到终止块则写入助手回复并归档，出错保留用户消息，取消则回滚本轮
func (s *ChatService) ChatStream(ctx context.Context, req *model.ChatRequest) (<-chan *ai.StreamEvent, string, error) {
	sess, err := s.sessions.GetOrCreate(req.SessionID)
	if err != nil {
		return nil, "", err
	}

	pending, err := sess.BeginRequest(req.Message)
	if err != nil {
		return nil, "", err
	}

	aiReq := &ai.ChatRequest{
		Model:    sess.Model(),
		Messages: pending.Messages,
		Options:  req.Options,
	}

	upstream, err := s.aiClient.ChatStream(ctx, aiReq)
	if err != nil {
		if ctx.Err() != nil {
			sess.CancelRequest()
		} else {
			sess.FailRequest()
		}
		return nil, "", err
	}

	events := make(chan *ai.StreamEvent, 10)
	go s.forwardStream(ctx, sess, req.Message, pending.Truncated, upstream, events)

	return events, sess.ID(), nil
}

// forwardStream 转发 AI 层事件并维护会话状态
// 即使客户端断开，也要把上游读完并结清会话
func (s *ChatService) forwardStream(ctx context.Context, sess *session.Session, userText string, truncated bool, upstream <-chan *ai.StreamEvent, events chan<- *ai.StreamEvent) {
	defer close(events)

	logger := requestLogger(ctx, sess.ID())

	var content strings.Builder
	settled := false
	delivering := true

	send := func(ev *ai.StreamEvent) {
		if !delivering {
			return
		}
		select {
		case events <- ev:
		case <-ctx.Done():
			delivering = false
		}
	}

	for ev := range upstream {
		switch {
		case ev.Err != nil:
			if ctx.Err() != nil {
				sess.CancelRequest()
			} else {
				sess.FailRequest()
			}
			settled = true
		case ev.Chunk != nil && ev.Chunk.Done:
			ev.Chunk.SessionID = sess.ID()
			ev.Chunk.Truncated = truncated
			if err := sess.AppendAssistant(content.String(), ev.Chunk.Usage); err != nil {
				logger.Warn().Err(err).Msg("failed to append assistant message")
			}
			s.archive(ctx, sess, userText, content.String(), ev.Chunk.Usage)
			settled = true
		case ev.Chunk != nil:
			content.WriteString(ev.Chunk.Content)
		}
		send(ev)
	}

	// 上游被取消时不发终止事件，这里兜底回滚
	if !settled {
		sess.CancelRequest()
	}
}

// archive 归档一轮完整的问答，失败仅告警不影响响应
// 使用脱离请求生命周期的上下文，客户端断开后仍能写入
func (s *ChatService) archive(ctx context.Context, sess *session.Session, userText, assistantText string, usage *model.TokenUsage) {
	if s.convRepo == nil {
		return
	}

	archiveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), archiveTimeout)
	defer cancel()

	now := time.Now()
	msgs := []model.Message{
		{Role: model.RoleUser, Content: userText, Timestamp: now},
		{Role: model.RoleAssistant, Content: assistantText, Timestamp: now, TokenUsage: usage},
	}

	info := sess.Info()
	if err := s.convRepo.AppendExchange(archiveCtx, sess.ID(), info.Title, sess.Model(), msgs); err != nil {
		logger := requestLogger(ctx, sess.ID())
		logger.Warn().Err(err).Msg("failed to archive conversation")
	}
}
