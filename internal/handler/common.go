package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pomelo/internal/ai"
	"pomelo/internal/model"
	"pomelo/internal/pkg/siliconflow"
	"pomelo/internal/repository"
	"pomelo/internal/session"
)

// 业务错误码
// 前三位对应 HTTP 状态码，后两位区分具体错误
const (
	CodeInvalidBody     = 40001 // 请求体格式错误
	CodeMissingField    = 40002 // 缺少必填字段
	CodeNotFound        = 40401 // 资源不存在
	CodeSessionBusy     = 40901 // 会话有请求在途
	CodeRateLimited     = 42901 // 上游限流
	CodeInternal        = 50001 // 服务内部错误
	CodeUpstreamAuth    = 50201 // 上游鉴权失败
	CodeUpstreamServer  = 50202 // 上游服务异常
	CodeUpstreamNetwork = 50203 // 上游网络故障
	CodeUpstreamReject  = 50204 // 上游拒绝请求
	CodeDependencyDown  = 50301 // 依赖的存储组件未配置或不可用
	CodeUpstreamTimeout = 50401 // 上游响应超时
)

// errorEnvelope 把业务错误翻译成统一的错误响应
// retryable 标记告诉客户端稍后重试是否可能成功
func errorEnvelope(err error) (int, *model.ErrorResponse) {
	switch {
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict, &model.ErrorResponse{
			Code:      CodeSessionBusy,
			Message:   "Session is processing another request",
			Retryable: true,
		}
	case errors.Is(err, session.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, &model.ErrorResponse{
			Code:    CodeNotFound,
			Message: "Not found",
		}
	case errors.Is(err, session.ErrEmptyMessage):
		return http.StatusBadRequest, &model.ErrorResponse{
			Code:    CodeMissingField,
			Message: "Message must not be empty",
		}
	}

	if apiErr, ok := siliconflow.AsAPIError(err); ok {
		switch apiErr.Kind {
		case siliconflow.ErrKindRateLimited:
			return http.StatusTooManyRequests, &model.ErrorResponse{
				Code:      CodeRateLimited,
				Message:   "Upstream rate limited",
				Detail:    apiErr.Message,
				Retryable: true,
			}
		case siliconflow.ErrKindUnauthorized:
			return http.StatusBadGateway, &model.ErrorResponse{
				Code:    CodeUpstreamAuth,
				Message: "Upstream authentication failed",
				Detail:  apiErr.Message,
			}
		case siliconflow.ErrKindTimeout:
			return http.StatusGatewayTimeout, &model.ErrorResponse{
				Code:      CodeUpstreamTimeout,
				Message:   "Upstream request timed out",
				Detail:    apiErr.Message,
				Retryable: true,
			}
		case siliconflow.ErrKindNetworkFailure:
			return http.StatusBadGateway, &model.ErrorResponse{
				Code:      CodeUpstreamNetwork,
				Message:   "Upstream network failure",
				Detail:    apiErr.Message,
				Retryable: true,
			}
		case siliconflow.ErrKindServerError:
			return http.StatusBadGateway, &model.ErrorResponse{
				Code:      CodeUpstreamServer,
				Message:   "Upstream server error",
				Detail:    apiErr.Message,
				Retryable: true,
			}
		default:
			return http.StatusBadGateway, &model.ErrorResponse{
				Code:    CodeUpstreamReject,
				Message: "Upstream rejected the request",
				Detail:  apiErr.Message,
			}
		}
	}

	var interrupted *ai.StreamInterruptedError
	if errors.As(err, &interrupted) {
		return http.StatusBadGateway, &model.ErrorResponse{
			Code:      CodeUpstreamNetwork,
			Message:   "Upstream stream interrupted",
			Detail:    interrupted.Error(),
			Retryable: true,
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, &model.ErrorResponse{
			Code:      CodeUpstreamTimeout,
			Message:   "Request timed out",
			Retryable: true,
		}
	}

	return http.StatusInternalServerError, &model.ErrorResponse{
		Code:    CodeInternal,
		Message: "Internal server error",
		Detail:  err.Error(),
	}
}

// respondError 写出统一格式的错误响应
func respondError(c *gin.Context, err error) {
	status, body := errorEnvelope(err)
	c.JSON(status, body)
}

// respondInvalidBody 请求体解析失败的错误响应
func respondInvalidBody(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, &model.ErrorResponse{
		Code:    CodeInvalidBody,
		Message: "Invalid request body",
		Detail:  err.Error(),
	})
}

// respondStorageUnavailable 归档存储未配置时的错误响应
func respondStorageUnavailable(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, &model.ErrorResponse{
		Code:    CodeDependencyDown,
		Message: "Conversation archive is not available",
	})
}
