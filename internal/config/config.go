package config

import (
	"errors"
	"fmt"
	"time"
)

// Config 应用配置根结构
// 在进程启动时解析一次（cmd.initConfig），之后只读共享，任何请求都不得修改
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	AI      AIConfig      `mapstructure:"ai"`
	Log     LogConfig     `mapstructure:"log"`
	Mongo   MongoConfig   `mapstructure:"mongo"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Storage StorageConfig `mapstructure:"storage"`
}

// ServerConfig HTTP 服务器配置
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// AIConfig 硅基流动 API 配置
// APIKey 必填，其余字段均有默认值（见 cmd.setDefaults）
type AIConfig struct {
	APIKey        string          `mapstructure:"api_key"`
	BaseURL       string          `mapstructure:"base_url"`
	Model         string          `mapstructure:"model"`          // 文本对话模型
	VLMModel      string          `mapstructure:"vlm_model"`      // 图像理解模型
	TTSModel      string          `mapstructure:"tts_model"`      // 语音合成模型
	TTSVoice      string          `mapstructure:"tts_voice"`      // 默认发音人
	ASRModel      string          `mapstructure:"asr_model"`      // 语音识别模型
	SystemPrompt  string          `mapstructure:"system_prompt"`  // 可选的系统提示词
	ContextWindow int             `mapstructure:"context_window"` // 模型上下文窗口（token）
	Timeout       time.Duration   `mapstructure:"timeout"`        // 单次请求尝试的超时
	MaxRetries    int             `mapstructure:"max_retries"`    // 可重试错误的最大重试次数
	Options       AIOptionsConfig `mapstructure:"options"`
}

// AIOptionsConfig 模型采样参数
type AIOptionsConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	TopP        float64 `mapstructure:"top_p"`
}

// LogConfig 日志配置 (Zerolog)
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	FilePath   string `mapstructure:"file_path"`
	TimeFormat string `mapstructure:"time_format"`
}

// MongoConfig MongoDB 配置（可选，用于归档对话）
type MongoConfig struct {
	URI         string `mapstructure:"uri"`
	Database    string `mapstructure:"database"`
	MaxPoolSize uint64 `mapstructure:"max_pool_size"`
	MinPoolSize uint64 `mapstructure:"min_pool_size"`
}

// RedisConfig Redis 配置（可选，用于缓存单次对话结果）
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// StorageConfig 存储配置（可选，用于保存合成的音频文件）
type StorageConfig struct {
	Type  string       `mapstructure:"type"` // local, oss
	Local *LocalConfig `mapstructure:"local,omitempty"`
	OSS   *OSSConfig   `mapstructure:"oss,omitempty"`
}

// LocalConfig 本地文件系统配置
type LocalConfig struct {
	BasePath string `mapstructure:"base_path"` // 基础路径
	BaseURL  string `mapstructure:"base_url"`  // 基础URL（用于生成访问URL）
}

// OSSConfig 阿里云OSS配置
type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	PresignExpiry   int    `mapstructure:"presign_expiry"` // 预签名URL过期时间（秒）
}

// HistoryBudget 对话历史可占用的 token 预算
// 上下文窗口扣除为回复预留的 max_tokens 后剩下的部分
func (c *AIConfig) HistoryBudget() int {
	return c.ContextWindow - c.Options.MaxTokens
}

// Validate 验证配置有效性
// 启动阶段调用一次，任何一项不合法都视为致命错误，进程不对外提供服务
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	validModes := map[string]bool{"debug": true, "release": true, "test": true}
	if !validModes[c.Server.Mode] {
		return errors.New("invalid server mode, must be debug/release/test")
	}

	if c.AI.APIKey == "" {
		return errors.New("ai.api_key is required (set POMELO_AI_API_KEY or SILICONFLOW_API_KEY)")
	}
	if c.AI.BaseURL == "" {
		return errors.New("ai.base_url is required")
	}
	if c.AI.Model == "" {
		return errors.New("ai.model is required")
	}
	if c.AI.Options.MaxTokens <= 0 {
		return fmt.Errorf("ai.options.max_tokens must be positive, got %d", c.AI.Options.MaxTokens)
	}
	if c.AI.Options.Temperature < 0 || c.AI.Options.Temperature > 2 {
		return fmt.Errorf("ai.options.temperature must be in [0, 2], got %g", c.AI.Options.Temperature)
	}
	if c.AI.Options.TopP <= 0 || c.AI.Options.TopP > 1 {
		return fmt.Errorf("ai.options.top_p must be in (0, 1], got %g", c.AI.Options.TopP)
	}
	if c.AI.Timeout <= 0 {
		return errors.New("ai.timeout must be positive")
	}
	if c.AI.MaxRetries < 0 {
		return errors.New("ai.max_retries must not be negative")
	}
	if c.AI.ContextWindow <= c.AI.Options.MaxTokens {
		return fmt.Errorf("ai.context_window (%d) must be larger than ai.options.max_tokens (%d)",
			c.AI.ContextWindow, c.AI.Options.MaxTokens)
	}

	switch c.Storage.Type {
	case "", "local", "oss":
	default:
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}

	return nil
}
