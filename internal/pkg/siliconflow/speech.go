package siliconflow

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog/log"
)

// 语速范围，超出范围的输入被收敛到边界
const (
	minSpeechSpeed = 0.5
	maxSpeechSpeed = 2.0
)

// SpeechRequest 语音合成请求
type SpeechRequest struct {
	Model string  // 语音合成模型
	Input string  // 要合成的文本
	Voice string  // 发音人ID
	Speed float64 // 语速倍率，范围 0.5-2.0，0 表示使用默认值 1.0
}

// SpeechResult 语音合成结果
type SpeechResult struct {
	Audio       []byte // 音频二进制数据
	ContentType string // 音频格式，如 audio/mpeg
}

// speechRequest /audio/speech 请求体
type speechRequest struct {
	Model string  `json:"model"`
	Input string  `json:"input"`
	Voice string  `json:"voice"`
	Speed float64 `json:"speed"`
}

// Speech 语音合成（文本转语音）
// 响应体即音频二进制数据
func (c *Client) Speech(ctx context.Context, req *SpeechRequest) (*SpeechResult, error) {
	if req.Input == "" {
		return nil, fmt.Errorf("speech input must not be empty")
	}

	speed := req.Speed
	if speed == 0 {
		speed = 1.0
	}
	if speed < minSpeechSpeed {
		speed = minSpeechSpeed
	}
	if speed > maxSpeechSpeed {
		speed = maxSpeechSpeed
	}

	body, err := json.Marshal(&speechRequest{
		Model: req.Model,
		Input: req.Input,
		Voice: req.Voice,
		Speed: speed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	log.Debug().
		Str("model", req.Model).
		Int("text_len", len(req.Input)).
		Msg("sending speech request")

	resp, err := c.doWithRetry(ctx, c.httpClient, func() (*http.Request, error) {
		return c.newJSONRequest(ctx, "/audio/speech", body)
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, wrapTransportError(err)
	}
	if len(audio) == 0 {
		return nil, ErrEmptyResponse
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}

	return &SpeechResult{
		Audio:       audio,
		ContentType: contentType,
	}, nil
}
