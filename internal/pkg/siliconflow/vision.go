package siliconflow

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// defaultVisionPrompt 未指定提问时的默认提示词：描述图片内容
const defaultVisionPrompt = "请详细描述这张图片的内容，包括主要物体、场景、颜色、氛围等信息。"

// VisionRequest 图像理解请求
// ImageURL 和 ImageData 二选一：URL 直接引用，二进制数据编码为 data URI 内联发送
type VisionRequest struct {
	Model       string // 图像理解模型
	Prompt      string // 对图片的提问（可选，默认描述图片内容）
	ImageURL    string // 图片URL（http/https 或 data URI）
	ImageData   []byte // 图片二进制数据
	Detail      string // 分析详细程度: auto/low/high
	MaxTokens   int
	Temperature float64
}

// visionRequest 多模态 /chat/completions 请求体
type visionRequest struct {
	Model       string          `json:"model"`
	Messages    []visionMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

// visionMessage 多模态消息：content 为内容分片数组
type visionMessage struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

// contentPart 消息内容分片（文本或图片）
type contentPart struct {
	Type     string        `json:"type"`
	Text     string        `json:"text,omitempty"`
	ImageURL *imageURLPart `json:"image_url,omitempty"`
}

// imageURLPart 图片引用
type imageURLPart struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// VisionCompletion 图像理解（描述图片或回答关于图片的问题）
func (c *Client) VisionCompletion(ctx context.Context, req *VisionRequest) (*ChatResult, error) {
	imageURL, err := resolveImageURL(req)
	if err != nil {
		return nil, err
	}

	prompt := req.Prompt
	if prompt == "" {
		prompt = defaultVisionPrompt
	}

	detail := req.Detail
	if detail == "" {
		detail = "auto"
	}

	body, err := json.Marshal(&visionRequest{
		Model: req.Model,
		Messages: []visionMessage{
			{
				Role: RoleUser,
				Content: []contentPart{
					{Type: "text", Text: prompt},
					{Type: "image_url", ImageURL: &imageURLPart{URL: imageURL, Detail: detail}},
				},
			},
		},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	log.Debug().
		Str("model", req.Model).
		Msg("sending vision request")

	resp, err := c.doWithRetry(ctx, c.httpClient, func() (*http.Request, error) {
		return c.newJSONRequest(ctx, "/chat/completions", body)
	})
	if err != nil {
		return nil, err
	}

	var out chatCompletionResponse
	if err := readJSONResponse(resp, &out); err != nil {
		return nil, err
	}

	if len(out.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	choice := out.Choices[0]
	return &ChatResult{
		Content:      choice.Message.Content,
		FinishReason: choice.FinishReason,
		Usage:        out.Usage,
	}, nil
}

// resolveImageURL 统一图片来源：二进制数据编码为 data URI，URL 原样使用
func resolveImageURL(req *VisionRequest) (string, error) {
	if len(req.ImageData) > 0 {
		encoded := base64.StdEncoding.EncodeToString(req.ImageData)
		return "data:image/jpeg;base64," + encoded, nil
	}
	if req.ImageURL == "" {
		return "", fmt.Errorf("vision request needs an image URL or image data")
	}
	if strings.HasPrefix(req.ImageURL, "http://") ||
		strings.HasPrefix(req.ImageURL, "https://") ||
		strings.HasPrefix(req.ImageURL, "data:") {
		return req.ImageURL, nil
	}
	return "", fmt.Errorf("unsupported image URL scheme: %s", req.ImageURL)
}
