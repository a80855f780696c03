package model

// ChatRequest 对话请求
type ChatRequest struct {
	SessionID string       `json:"session_id,omitempty"`
	Message   string       `json:"message" binding:"required"`
	Options   *ChatOptions `json:"options,omitempty"`
}

// ChatOptions 单次请求的采样参数，覆盖配置默认值
// 使用指针区分"未指定"和显式的零值（temperature 0 是合法取值）
type ChatOptions struct {
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	TopP        *float64 `json:"top_p,omitempty"`
}

// CreateSessionRequest 创建会话请求
type CreateSessionRequest struct {
	Title        string `json:"title,omitempty"`
	Model        string `json:"model,omitempty"`
	SystemPrompt string `json:"system_prompt,omitempty"` // 覆盖配置中的系统提示词
}

// SpeechRequest 语音合成请求
type SpeechRequest struct {
	Text  string  `json:"text" binding:"required"` // 待合成文本
	Voice string  `json:"voice,omitempty"`         // 音色，默认使用配置值
	Speed float64 `json:"speed,omitempty"`         // 语速，有效区间 [0.5, 2.0]
}

// VisionRequest 图像理解请求
// ImageURL 支持 https 地址和 data URI（浏览器端 base64 图片）
type VisionRequest struct {
	ImageURL string `json:"image_url" binding:"required"`
	Prompt   string `json:"prompt,omitempty"` // 对图片的提问，默认描述图片内容
	Detail   string `json:"detail,omitempty"` // 分析详细程度: auto/low/high
}
