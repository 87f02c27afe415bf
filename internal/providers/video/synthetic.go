package video

import (
	"context"
	"strings"

	"studio/internal/domain"
	"studio/internal/providers/gemini"
)

const syntheticProviderName = "synthetic-video"

// SyntheticGenerator returns a deterministic mp4 placeholder.
type SyntheticGenerator struct{}

func NewSyntheticGenerator() *SyntheticGenerator {
	return &SyntheticGenerator{}
}

func (s *SyntheticGenerator) Name() string { return syntheticProviderName }

func (s *SyntheticGenerator) Generate(ctx context.Context, req GenerateRequest) (*Asset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	seconds := estimateLength(req.Caption)
	seed := gemini.Seed(req.Category.Kind, req.Caption, seconds)
	return &Asset{
		Format:          domain.VideoFormat,
		DurationSeconds: seconds,
		Width:           1280,
		Height:          720,
		Data:            gemini.RenderPlaceholderMP4(seed, BuildPrompt(req.Caption, req.Category), seconds),
	}, nil
}

// estimateLength scales with the caption, roughly one second per six words.
func estimateLength(caption string) int {
	words := len(strings.Fields(caption))
	return domain.ClampSeconds(words/6, domain.MinVideoSeconds, domain.MaxVideoSeconds)
}

var _ Generator = (*SyntheticGenerator)(nil)
