package ctxutil

import "context"

// requestIDKeyType 使用私有类型避免与其他 context key 冲突
type requestIDKeyType struct{}

var requestIDKey = requestIDKeyType{}

// WithRequestID 将请求ID注入到 context 中
// 由 RequestID 中间件在请求入口处调用，下游通过 GetRequestID 取出用于日志关联
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// GetRequestID 从 context 中解析请求ID
// 返回值：
//   - string: 请求ID
//   - bool  : 是否存在有效的请求ID
func GetRequestID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v := ctx.Value(requestIDKey)
	rid, ok := v.(string)
	if !ok || rid == "" {
		return "", false
	}
	return rid, true
}
