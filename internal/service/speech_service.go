package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"pomelo/internal/config"
	"pomelo/internal/model"
	"pomelo/internal/pkg/id"
	"pomelo/internal/pkg/siliconflow"
	"pomelo/internal/pkg/storage"
)

// SpeechService 语音合成服务
// 合成的音频写入对象存储并返回访问URL，未配置存储时内联 base64 返回
type SpeechService struct {
	cfg   *config.AIConfig
	sf    *siliconflow.Client
	store storage.Storage // 可选，nil 时走内联返回
}

// NewSpeechService 创建语音合成服务
func NewSpeechService(cfg *config.AIConfig, sf *siliconflow.Client, store storage.Storage) *SpeechService {
	return &SpeechService{
		cfg:   cfg,
		sf:    sf,
		store: store,
	}
}

// Synthesize 文本转语音
func (s *SpeechService) Synthesize(ctx context.Context, req *model.SpeechRequest) (*model.SpeechResponse, error) {
	voice := req.Voice
	if voice == "" {
		voice = s.cfg.TTSVoice
	}

	result, err := s.sf.Speech(ctx, &siliconflow.SpeechRequest{
		Model: s.cfg.TTSModel,
		Input: req.Text,
		Voice: voice,
		Speed: req.Speed,
	})
	if err != nil {
		return nil, err
	}

	resp := &model.SpeechResponse{
		ContentType: result.ContentType,
		Size:        len(result.Audio),
	}

	if s.store == nil {
		resp.AudioBase64 = base64.StdEncoding.EncodeToString(result.Audio)
		return resp, nil
	}

	key := fmt.Sprintf("audio/%s%s", id.New(), audioExt(result.ContentType))
	url, err := s.store.Upload(ctx, key, bytes.NewReader(result.Audio), result.ContentType)
	if err != nil {
		// 存储故障时降级为内联返回
		log.Warn().Err(err).Str("key", key).Msg("failed to store audio, falling back to inline response")
		resp.AudioBase64 = base64.StdEncoding.EncodeToString(result.Audio)
		return resp, nil
	}

	log.Info().
		Str("key", key).
		Int("size", len(result.Audio)).
		Msg("speech audio stored")

	resp.AudioURL = url
	return resp, nil
}

// audioExt 根据 MIME 类型推断文件扩展名
func audioExt(contentType string) string {
	switch {
	case strings.Contains(contentType, "wav"):
		return ".wav"
	case strings.Contains(contentType, "opus"):
		return ".opus"
	default:
		return ".mp3"
	}
}
