package siliconflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultBaseURL 硅基流动 API 默认地址
const DefaultBaseURL = "https://api.siliconflow.cn/v1"

const (
	defaultTimeout    = 60 * time.Second
	defaultMaxRetries = 3

	retryBaseDelay = 500 * time.Millisecond
	retryMaxDelay  = 10 * time.Second

	// 非流式响应体的读取上限，避免异常响应耗尽内存
	maxResponseBytes = 10 << 20
)

// Config 客户端配置
type Config struct {
	APIKey     string        // 访问密钥（必需）
	BaseURL    string        // API 地址，默认: https://api.siliconflow.cn/v1
	Timeout    time.Duration // 单次请求尝试的超时，默认: 60s
	MaxRetries int           // 可重试错误的最大重试次数，0 表示不重试，负数视为未设置取 3
}

// Client 硅基流动 API 客户端
// 覆盖 OpenAI 兼容的对话补全（同步/流式）以及语音合成、语音识别、图像理解接口
type Client struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	maxRetries int

	// 非流式请求：客户端级超时覆盖整个请求
	httpClient *http.Client
	// 流式请求：只限制建连和响应头阶段，流本身的生命周期由调用方 ctx 控制
	streamClient *http.Client
}

// NewClient 创建客户端
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("siliconflow API key is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	maxRetries := cfg.MaxRetries
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}

	streamTransport := http.DefaultTransport
	if t, ok := http.DefaultTransport.(*http.Transport); ok {
		cloned := t.Clone()
		cloned.ResponseHeaderTimeout = timeout
		streamTransport = cloned
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		timeout:    timeout,
		maxRetries: maxRetries,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		streamClient: &http.Client{
			Transport: streamTransport,
		},
	}, nil
}

// newJSONRequest 构建 JSON 请求
func (c *Client) newJSONRequest(ctx context.Context, path string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// doWithRetry 发送请求，对临时性错误做有界的指数退避重试
// 每次重试都通过 build 重建请求（请求体不可复用）；超时作用于单次尝试而非整个调用
func (c *Client) doWithRetry(ctx context.Context, client *http.Client, build func() (*http.Request, error)) (*http.Response, error) {
	var lastErr *APIError

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := backoffDelay(attempt, lastErr)
			log.Debug().
				Int("attempt", attempt).
				Dur("delay", delay).
				Str("reason", string(lastErr.Kind)).
				Msg("retrying siliconflow request")

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := build()
		if err != nil {
			return nil, err
		}

		resp, err := client.Do(req)
		if err != nil {
			// 调用方主动取消不重试，直接透传
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			apiErr := wrapTransportError(err)
			if !apiErr.Retryable() {
				return nil, apiErr
			}
			lastErr = apiErr
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return resp, nil
		}

		apiErr := newStatusError(resp)
		if !apiErr.Retryable() {
			return nil, apiErr
		}
		lastErr = apiErr
	}

	return nil, lastErr
}

// backoffDelay 计算第 attempt 次重试前的等待时间
// 500ms 起步按次翻倍，10s 封顶；限流时尊重更长的 Retry-After
func backoffDelay(attempt int, lastErr *APIError) time.Duration {
	delay := retryBaseDelay << uint(attempt-1)
	if delay > retryMaxDelay {
		delay = retryMaxDelay
	}
	if lastErr != nil && lastErr.RetryAfter > delay {
		delay = lastErr.RetryAfter
	}
	return delay
}

// newStatusError 将非 200 响应转换为 APIError，并读取上游错误消息
func newStatusError(resp *http.Response) *APIError {
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	apiErr := &APIError{
		Kind:       classifyStatus(resp.StatusCode),
		StatusCode: resp.StatusCode,
		Message:    parseErrorMessage(body),
	}
	if apiErr.Kind == ErrKindRateLimited {
		apiErr.RetryAfter = parseRetryAfter(resp.Header)
	}
	return apiErr
}

// parseErrorMessage 提取上游错误消息
// 兼容 {"message": ...} 和 {"error": {"message": ...}} 两种返回格式
func parseErrorMessage(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Message != "" {
			return envelope.Message
		}
		if envelope.Error.Message != "" {
			return envelope.Error.Message
		}
	}
	if len(body) > 0 {
		return strings.TrimSpace(string(body))
	}
	return "request failed"
}

// readJSONResponse 读取并反序列化响应体
func readJSONResponse(resp *http.Response, out any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return wrapTransportError(err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
