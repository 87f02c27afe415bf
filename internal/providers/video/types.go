// Package video adapts short promotional video generators.
package video

import (
	"context"
	"fmt"
	"strings"

	"studio/internal/domain"
)

// TargetSeconds is the clip length requested from providers.
const TargetSeconds = 8

type GenerateRequest struct {
	Caption   string
	Category  domain.Category
	RequestID string
}

// Asset is a generated clip. DurationSeconds is what the provider reports.
type Asset struct {
	Format          string
	DurationSeconds int
	Width           int
	Height          int
	Data            []byte
}

// Generator produces an mp4 clip of 5 to 10 seconds.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (*Asset, error)
}

// BuildPrompt describes the clip for a text-to-video model.
func BuildPrompt(caption string, category domain.Category) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A %d second promotional video for a %s in India.", TargetSeconds, category.Label())
	b.WriteString(" Slow cinematic camera movement, warm natural light, everyday customers, no on-screen text.")
	if c := strings.TrimSpace(caption); c != "" {
		fmt.Fprintf(&b, " Mood and story based on: %q", domain.Snippet(c))
	}
	return b.String()
}
