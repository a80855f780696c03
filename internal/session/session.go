package session

import (
	"errors"
	"strings"
	"sync"
	"time"

	"pomelo/internal/model"
	"pomelo/internal/pkg/tokenizer"
)

var (
	// ErrBusy 会话已有请求在途，拒绝并发提交
	ErrBusy = errors.New("session busy: a request is already in flight")
	// ErrNoPendingRequest 没有在途请求时不允许追加助手回复
	ErrNoPendingRequest = errors.New("no pending request on session")
	// ErrEmptyMessage 空消息不发起请求
	ErrEmptyMessage = errors.New("message is empty")
)

// 对话格式的每条消息除正文外的固定 token 开销
const messageOverhead = 4

// PendingRequest BeginRequest 返回的请求快照
// Messages 是深拷贝，调用方持有期间会话可以继续演进
type PendingRequest struct {
	Messages  []model.Message
	Truncated bool // 历史是否因超出预算被截断
}

// Session 单个会话的对话状态
// 消息按插入顺序保存，只通过追加增长，通过显式 Reset 清空
// 同一会话同时只允许一个在途请求，独立会话互不影响
type Session struct {
	mu sync.Mutex

	id           string
	title        string
	model        string
	systemPrompt string

	messages []model.Message

	// 请求门闩：busy 表示有请求在途，prior 保存请求发起前的完整历史用于取消回滚
	busy  bool
	prior []model.Message

	estimator tokenizer.Estimator
	budget    int // 历史消息的 token 预算（上下文窗口减去回复预留）

	createdAt time.Time
	updatedAt time.Time
}

// newSession 创建会话并按需埋入系统提示词
func newSession(id, title, modelName, systemPrompt string, estimator tokenizer.Estimator, budget int) *Session {
	now := time.Now()
	s := &Session{
		id:           id,
		title:        title,
		model:        modelName,
		systemPrompt: systemPrompt,
		estimator:    estimator,
		budget:       budget,
		createdAt:    now,
		updatedAt:    now,
	}
	s.seedSystemLocked()
	return s
}

// ID 会话标识
func (s *Session) ID() string { return s.id }

// Model 会话使用的模型
func (s *Session) Model() string { return s.model }

// Busy 是否有请求在途
func (s *Session) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// Info 会话摘要信息
func (s *Session) Info() *model.SessionResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &model.SessionResponse{
		SessionID:    s.id,
		Title:        s.title,
		Model:        s.model,
		MessageCount: len(s.messages),
		Busy:         s.busy,
		CreatedAt:    s.createdAt,
		UpdatedAt:    s.updatedAt,
	}
}

// Snapshot 返回当前对话历史的深拷贝
// 调用方拿到的切片与内部状态完全隔离
func (s *Session) Snapshot() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneMessages(s.messages)
}

// AppendUser 追加一条用户消息（不发起请求）
// 在途请求期间拒绝，避免历史在请求构建后被改写
func (s *Session) AppendUser(content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return ErrBusy
	}
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}
	s.appendLocked(model.Message{
		Role:      model.RoleUser,
		Content:   content,
		Timestamp: time.Now(),
	})
	return nil
}

// BeginRequest 发起一轮请求：追加用户消息、截断到预算、标记在途
// 返回发给上游的历史快照；会话此后处于 busy 状态，直到
// AppendAssistant / FailRequest / CancelRequest 之一收尾
func (s *Session) BeginRequest(userText string) (*PendingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return nil, ErrBusy
	}
	if strings.TrimSpace(userText) == "" {
		return nil, ErrEmptyMessage
	}

	// 取消时回滚到这一份
	s.prior = cloneMessages(s.messages)

	s.appendLocked(model.Message{
		Role:      model.RoleUser,
		Content:   userText,
		Timestamp: time.Now(),
	})
	truncated := s.truncateLocked()
	s.busy = true

	return &PendingRequest{
		Messages:  cloneMessages(s.messages),
		Truncated: truncated,
	}, nil
}

// AppendAssistant 追加助手回复并结束在途请求
// 只有 BeginRequest 之后才允许，保证用户消息先于对应的助手回复
func (s *Session) AppendAssistant(content string, usage *model.TokenUsage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.busy {
		return ErrNoPendingRequest
	}
	s.appendLocked(model.Message{
		Role:       model.RoleAssistant,
		Content:    content,
		Timestamp:  time.Now(),
		TokenUsage: cloneUsage(usage),
	})
	s.busy = false
	s.prior = nil
	return nil
}

// FailRequest 请求失败收尾：回到空闲，保留本轮用户消息
// 用户输入不丢，便于修复网络后直接重试
func (s *Session) FailRequest() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.busy {
		return
	}
	s.busy = false
	s.prior = nil
	s.updatedAt = time.Now()
}

// CancelRequest 调用方主动取消：恢复到请求发起前的状态
// 本轮用户消息连同截断丢弃的历史一并还原
func (s *Session) CancelRequest() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.busy {
		return
	}
	s.messages = s.prior
	s.prior = nil
	s.busy = false
	s.updatedAt = time.Now()
}

// Reset 清空对话历史，重新埋入系统提示词
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.busy {
		return ErrBusy
	}
	s.messages = nil
	s.seedSystemLocked()
	s.updatedAt = time.Now()
	return nil
}

// appendLocked 追加消息并更新时间戳，调用方需持锁
func (s *Session) appendLocked(msg model.Message) {
	s.messages = append(s.messages, msg)
	s.updatedAt = time.Now()
}

// seedSystemLocked 配置了系统提示词时在开头埋入系统消息，调用方需持锁
func (s *Session) seedSystemLocked() {
	if s.systemPrompt == "" {
		return
	}
	s.messages = append(s.messages, model.Message{
		Role:      model.RoleSystem,
		Content:   s.systemPrompt,
		Timestamp: time.Now(),
	})
}

// truncateLocked 将历史截断到 token 预算内，调用方需持锁
// 从最旧的非系统消息开始丢弃；系统消息和最近一条用户消息永不丢弃
func (s *Session) truncateLocked() bool {
	if s.budget <= 0 {
		return false
	}

	truncated := false
	for s.estimateLocked() > s.budget {
		idx := -1
		for i, msg := range s.messages {
			if msg.Role == model.RoleSystem {
				continue
			}
			idx = i
			break
		}
		// 只剩系统消息和刚追加的用户消息时不再截断
		if idx < 0 || idx == len(s.messages)-1 {
			break
		}
		s.messages = append(s.messages[:idx], s.messages[idx+1:]...)
		truncated = true
	}
	return truncated
}

// estimateLocked 估算当前历史占用的 token 数，调用方需持锁
func (s *Session) estimateLocked() int {
	total := 0
	for _, msg := range s.messages {
		total += s.estimator.Estimate(msg.Content) + messageOverhead
	}
	return total
}

// cloneMessages 深拷贝消息列表
func cloneMessages(msgs []model.Message) []model.Message {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	for i := range out {
		out[i].TokenUsage = cloneUsage(out[i].TokenUsage)
	}
	return out
}

// cloneUsage 拷贝用量统计
func cloneUsage(u *model.TokenUsage) *model.TokenUsage {
	if u == nil {
		return nil
	}
	clone := *u
	return &clone
}
