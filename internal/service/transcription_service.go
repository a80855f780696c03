package service

import (
	"context"

	"pomelo/internal/config"
	"pomelo/internal/model"
	"pomelo/internal/pkg/siliconflow"
)

// TranscriptionService 语音识别服务
type TranscriptionService struct {
	cfg *config.AIConfig
	sf  *siliconflow.Client
}

// NewTranscriptionService 创建语音识别服务
func NewTranscriptionService(cfg *config.AIConfig, sf *siliconflow.Client) *TranscriptionService {
	return &TranscriptionService{
		cfg: cfg,
		sf:  sf,
	}
}

// Transcribe 语音转文字
func (s *TranscriptionService) Transcribe(ctx context.Context, fileName string, audio []byte, language string) (*model.TranscriptionResponse, error) {
	result, err := s.sf.Transcribe(ctx, &siliconflow.TranscriptionRequest{
		Model:    s.cfg.ASRModel,
		FileName: fileName,
		Audio:    audio,
		Language: language,
	})
	if err != nil {
		return nil, err
	}

	return &model.TranscriptionResponse{Text: result.Text}, nil
}
