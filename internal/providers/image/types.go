package image

import (
	"context"

	"studio/internal/domain"
)

// GenerateRequest describes a normalized request passed to any image provider.
type GenerateRequest struct {
	Caption   string
	Category  domain.Category
	RequestID string
}

// Asset represents a generated image. Data holds the encoded bytes; the
// orchestrator publishes them to object storage.
type Asset struct {
	Format string
	Width  int
	Height int
	Data   []byte
}

// Generator is the contract implemented by all image providers. Images are
// expected to be square.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (*Asset, error)
}
