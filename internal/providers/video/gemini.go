package video

import (
	"context"

	"studio/internal/providers/gemini"
)

type GeminiGenerator struct {
	client *gemini.Client
}

func NewGeminiGenerator(client *gemini.Client) *GeminiGenerator {
	return &GeminiGenerator{client: client}
}

func (g *GeminiGenerator) Name() string { return gemini.VideoAdapter }

func (g *GeminiGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	asset, err := g.client.GenerateVideo(ctx, gemini.VideoRequest{
		Prompt:          BuildPrompt(req.Caption, req.Category),
		DurationSeconds: TargetSeconds,
		AspectRatio:     "16:9",
		RequestID:       req.RequestID,
	})
	if err != nil {
		return nil, err
	}
	return &Asset{
		Format:          asset.Format,
		DurationSeconds: asset.DurationSeconds,
		Width:           1280,
		Height:          720,
		Data:            asset.Data,
	}, nil
}

var _ Generator = (*GeminiGenerator)(nil)
