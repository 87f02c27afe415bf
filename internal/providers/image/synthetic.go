package image

import (
	"context"
	"fmt"

	"studio/internal/providers/gemini"
)

const (
	syntheticProviderName = "synthetic-image"
	syntheticSize         = 1024
)

// SyntheticGenerator renders a deterministic square PNG derived from the
// caption. It keeps the pipeline runnable without image credentials.
type SyntheticGenerator struct {
	size int
}

func NewSyntheticGenerator() *SyntheticGenerator {
	return &SyntheticGenerator{size: syntheticSize}
}

func (s *SyntheticGenerator) Name() string { return syntheticProviderName }

func (s *SyntheticGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seed := gemini.Seed(req.Category.Kind, req.Caption)
	data, err := gemini.RenderSquarePNG(s.size, seed)
	if err != nil {
		return nil, fmt.Errorf("render synthetic image: %w", err)
	}
	return &Asset{Format: "image/png", Width: s.size, Height: s.size, Data: data}, nil
}

var _ Generator = (*SyntheticGenerator)(nil)
