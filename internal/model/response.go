package model

import "time"

// ChatResponse 对话响应
type ChatResponse struct {
	SessionID    string      `json:"session_id"`
	Message      string      `json:"message"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Truncated    bool        `json:"truncated,omitempty"` // 历史是否因超出上下文预算被截断
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// ChatChunk 流式对话片段
// 增量片段只带 content；结束片段带 done 和会话级元信息
type ChatChunk struct {
	Content      string      `json:"content,omitempty"`
	Done         bool        `json:"done,omitempty"`
	SessionID    string      `json:"session_id,omitempty"`
	FinishReason string      `json:"finish_reason,omitempty"`
	Truncated    bool        `json:"truncated,omitempty"`
	Usage        *TokenUsage `json:"usage,omitempty"`
}

// ErrorResponse 错误响应
type ErrorResponse struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Detail    string `json:"detail,omitempty"`
	Retryable bool   `json:"retryable,omitempty"` // 稍后重试是否可能成功
}

// TokenUsage Token 使用统计
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// SessionResponse 会话信息
type SessionResponse struct {
	SessionID    string    `json:"session_id"`
	Title        string    `json:"title,omitempty"`
	Model        string    `json:"model"`
	MessageCount int       `json:"message_count"`
	Busy         bool      `json:"busy"` // 是否有请求在途
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// SpeechResponse 语音合成响应
// 配置了存储后端时返回 audio_url，否则内联 base64 音频
type SpeechResponse struct {
	AudioURL    string `json:"audio_url,omitempty"`
	AudioBase64 string `json:"audio_base64,omitempty"`
	ContentType string `json:"content_type"`
	Size        int    `json:"size"`
}

// TranscriptionResponse 语音识别响应
type TranscriptionResponse struct {
	Text string `json:"text"`
}

// VisionResponse 图像理解响应
type VisionResponse struct {
	Description string      `json:"description"`
	Usage       *TokenUsage `json:"usage,omitempty"`
}

// ListConversationsResponse 历史对话列表
type ListConversationsResponse struct {
	Total         int             `json:"total"`
	Conversations []*Conversation `json:"conversations"`
}
