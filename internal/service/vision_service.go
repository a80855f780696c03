package service

import (
	"context"

	"pomelo/internal/config"
	"pomelo/internal/model"
	"pomelo/internal/pkg/siliconflow"
)

// VisionService 图像理解服务
type VisionService struct {
	cfg *config.AIConfig
	sf  *siliconflow.Client
}

// NewVisionService 创建图像理解服务
func NewVisionService(cfg *config.AIConfig, sf *siliconflow.Client) *VisionService {
	return &VisionService{
		cfg: cfg,
		sf:  sf,
	}
}

// Describe 理解图片内容
func (s *VisionService) Describe(ctx context.Context, req *model.VisionRequest) (*model.VisionResponse, error) {
	result, err := s.sf.VisionCompletion(ctx, &siliconflow.VisionRequest{
		Model:       s.cfg.VLMModel,
		Prompt:      req.Prompt,
		ImageURL:    req.ImageURL,
		Detail:      req.Detail,
		MaxTokens:   s.cfg.Options.MaxTokens,
		Temperature: s.cfg.Options.Temperature,
	})
	if err != nil {
		return nil, err
	}

	return &model.VisionResponse{
		Description: result.Content,
		Usage:       usageFromAPI(result.Usage),
	}, nil
}

// usageFromAPI 转换上游的用量统计
func usageFromAPI(u *siliconflow.Usage) *model.TokenUsage {
	if u == nil {
		return nil
	}
	return &model.TokenUsage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.TotalTokens,
	}
}
