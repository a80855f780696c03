package session

import (
	"errors"
	"sort"
	"sync"

	"pomelo/internal/config"
	"pomelo/internal/model"
	"pomelo/internal/pkg/id"
	"pomelo/internal/pkg/tokenizer"
)

// ErrNotFound 会话不存在
var ErrNotFound = errors.New("session not found")

// Manager 管理内存中的活跃会话
// 会话之间完全独立，唯一共享的是只读配置
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	cfg       *config.AIConfig
	estimator tokenizer.Estimator
}

// NewManager 创建会话管理器
func NewManager(cfg *config.AIConfig, estimator tokenizer.Estimator) *Manager {
	return &Manager{
		sessions:  make(map[string]*Session),
		cfg:       cfg,
		estimator: estimator,
	}
}

// Create 创建新会话，未指定的字段落到配置默认值
func (m *Manager) Create(req *model.CreateSessionRequest) *Session {
	modelName := m.cfg.Model
	systemPrompt := m.cfg.SystemPrompt
	title := ""
	if req != nil {
		if req.Model != "" {
			modelName = req.Model
		}
		if req.SystemPrompt != "" {
			systemPrompt = req.SystemPrompt
		}
		title = req.Title
	}

	s := newSession(id.NewSession(), title, modelName, systemPrompt, m.estimator, m.cfg.HistoryBudget())

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s
}

// Get 按 ID 查找会话
func (m *Manager) Get(sessionID string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// GetOrCreate 查找会话，ID 为空时创建新会话
// 对话接口允许首次请求不带 session_id，响应里带回新分配的 ID
func (m *Manager) GetOrCreate(sessionID string) (*Session, error) {
	if sessionID == "" {
		return m.Create(nil), nil
	}
	return m.Get(sessionID)
}

// Remove 移除会话
func (m *Manager) Remove(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, sessionID)
	return nil
}

// List 返回全部会话摘要，按创建时间倒序
func (m *Manager) List() []*model.SessionResponse {
	m.mu.RLock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.RUnlock()

	infos := make([]*model.SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].CreatedAt.After(infos[j].CreatedAt)
	})
	return infos
}
