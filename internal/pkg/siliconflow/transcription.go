package siliconflow

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// TranscriptionRequest 语音识别请求
type TranscriptionRequest struct {
	Model    string // 语音识别模型
	FileName string // 音频文件名（用于推断格式）
	Audio    []byte // 音频二进制数据
	Language string // 语言代码（可选，如 zh/en，空表示自动检测）
}

// TranscriptionResult 语音识别结果
type TranscriptionResult struct {
	Text string `json:"text"`
}

// 常见音频格式对应的 MIME 类型
var audioMimeTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/m4a",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
	".webm": "audio/webm",
}

// AudioContentType 根据文件名推断音频 MIME 类型，未知格式按 mp3 处理
func AudioContentType(fileName string) string {
	if mime, ok := audioMimeTypes[filepath.Ext(fileName)]; ok {
		return mime
	}
	return "audio/mpeg"
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// escapeQuotes 转义文件名中的引号，与 multipart.CreateFormFile 的处理一致
func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

// Transcribe 语音识别（语音转文字）
// 以 multipart/form-data 上传音频文件
func (c *Client) Transcribe(ctx context.Context, req *TranscriptionRequest) (*TranscriptionResult, error) {
	if len(req.Audio) == 0 {
		return nil, fmt.Errorf("transcription audio must not be empty")
	}

	fileName := req.FileName
	if fileName == "" {
		fileName = "audio.mp3"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	// CreateFormFile 固定写 octet-stream，这里带上按扩展名推断的音频类型
	partHeader := textproto.MIMEHeader{}
	partHeader.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(fileName)))
	partHeader.Set("Content-Type", AudioContentType(fileName))
	part, err := writer.CreatePart(partHeader)
	if err != nil {
		return nil, fmt.Errorf("failed to build form file: %w", err)
	}
	if _, err := part.Write(req.Audio); err != nil {
		return nil, fmt.Errorf("failed to write audio data: %w", err)
	}
	if err := writer.WriteField("model", req.Model); err != nil {
		return nil, fmt.Errorf("failed to write model field: %w", err)
	}
	if req.Language != "" && req.Language != "auto" {
		if err := writer.WriteField("language", req.Language); err != nil {
			return nil, fmt.Errorf("failed to write language field: %w", err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize form: %w", err)
	}

	body := buf.Bytes()
	contentType := writer.FormDataContentType()

	log.Debug().
		Str("model", req.Model).
		Str("file", fileName).
		Int("size", len(req.Audio)).
		Msg("sending transcription request")

	resp, err := c.doWithRetry(ctx, c.httpClient, func() (*http.Request, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/audio/transcriptions", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		httpReq.Header.Set("Content-Type", contentType)
		return httpReq, nil
	})
	if err != nil {
		return nil, err
	}

	var out TranscriptionResult
	if err := readJSONResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
