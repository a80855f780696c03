package id

import (
	"strings"

	"github.com/google/uuid"
)

// 资源 ID 前缀，接口返回和日志里一眼能看出 ID 的类型
const (
	sessionPrefix = "sess_"
	requestPrefix = "req_"
)

// New 生成裸 UUID，用于存储对象键等无前缀场景
func New() string {
	return uuid.New().String()
}

// NewSession 生成会话 ID
func NewSession() string {
	return sessionPrefix + compact()
}

// NewRequest 生成请求 ID，请求方未携带 X-Request-ID 时由中间件补上
func NewRequest() string {
	return requestPrefix + compact()
}

// compact 去掉连字符的 UUID，前缀 ID 用短形式
func compact() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
