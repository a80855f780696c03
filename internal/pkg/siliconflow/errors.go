package siliconflow

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"
)

// ErrorKind API 错误分类
// 调用方根据分类决定如何向用户呈现以及是否建议重试
type ErrorKind string

const (
	ErrKindUnauthorized   ErrorKind = "unauthorized"    // 401/403，密钥无效或无权限
	ErrKindRateLimited    ErrorKind = "rate_limited"    // 429，触发限流
	ErrKindServerError    ErrorKind = "server_error"    // 5xx，上游服务异常
	ErrKindTimeout        ErrorKind = "timeout"         // 单次尝试超时
	ErrKindNetworkFailure ErrorKind = "network_failure" // 连接失败、流中断等传输层错误
	ErrKindInvalidRequest ErrorKind = "invalid_request" // 其余 4xx，请求本身被拒绝
)

// ErrEmptyResponse 上游返回 200 但没有任何候选内容
var ErrEmptyResponse = errors.New("empty response from model")

// APIError 上游 API 错误
// 保留状态码和上游错误消息，限流时附带 Retry-After
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

// Error 实现 error 接口
func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("siliconflow: %s (status %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("siliconflow: %s: %s", e.Kind, e.Message)
}

// Retryable 是否属于可重试的临时性错误
// 限流、5xx、超时和传输层错误可重试；鉴权失败和请求被拒绝不可重试
func (e *APIError) Retryable() bool {
	switch e.Kind {
	case ErrKindRateLimited, ErrKindServerError, ErrKindTimeout, ErrKindNetworkFailure:
		return true
	default:
		return false
	}
}

// AsAPIError 从错误链中提取 *APIError
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// classifyStatus 根据 HTTP 状态码归类
func classifyStatus(code int) ErrorKind {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrKindUnauthorized
	case code == http.StatusTooManyRequests:
		return ErrKindRateLimited
	case code >= 500:
		return ErrKindServerError
	default:
		return ErrKindInvalidRequest
	}
}

// wrapTransportError 将传输层错误归类为 APIError
// 调用方上下文已取消的情况由调用方自行识别，这里只区分超时和其他网络错误
func wrapTransportError(err error) *APIError {
	kind := ErrKindNetworkFailure
	if errors.Is(err, context.DeadlineExceeded) {
		kind = ErrKindTimeout
	} else {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			kind = ErrKindTimeout
		}
	}
	return &APIError{
		Kind:    kind,
		Message: err.Error(),
	}
}

// parseRetryAfter 解析 Retry-After 响应头（秒数格式）
func parseRetryAfter(h http.Header) time.Duration {
	v := h.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
