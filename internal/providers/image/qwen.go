package image

import (
	"context"

	"studio/internal/providers/qwen"
)

type QwenGenerator struct {
	client *qwen.Client
}

func NewQwenGenerator(client *qwen.Client) *QwenGenerator {
	return &QwenGenerator{client: client}
}

func (q *QwenGenerator) Name() string { return qwen.Adapter }

func (q *QwenGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	asset, err := q.client.GenerateImage(ctx, qwen.ImageRequest{
		Prompt:         BuildMarketingPrompt(req.Caption, req.Category),
		NegativePrompt: DefaultNegativePrompt,
		Size:           qwen.SquareSize,
		RequestID:      req.RequestID,
	})
	if err != nil {
		return nil, err
	}
	return &Asset{
		Format: asset.Format,
		Width:  asset.Width,
		Height: asset.Height,
		Data:   asset.Data,
	}, nil
}

var _ Generator = (*QwenGenerator)(nil)
