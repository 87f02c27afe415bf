package image

import (
	"bytes"
	"context"
	stdimage "image"
	"strings"
	"testing"

	"studio/internal/domain"
)

func TestBuildMarketingPromptUsesCategoryScene(t *testing.T) {
	got := BuildMarketingPrompt("Hot chai all day", domain.Category{Kind: domain.CategoryTeaStall})
	if !strings.Contains(got, "chai stall") {
		t.Fatalf("prompt missing scene: %q", got)
	}
	if !strings.Contains(got, "square") {
		t.Fatalf("prompt must ask for a square image: %q", got)
	}
	if !strings.Contains(got, `"Hot chai all day"`) {
		t.Fatalf("prompt missing caption: %q", got)
	}
}

func TestBuildMarketingPromptOtherCategory(t *testing.T) {
	got := BuildMarketingPrompt("", domain.Category{Kind: domain.CategoryOther, Other: "flower vendor"})
	if !strings.Contains(got, "flower vendor") {
		t.Fatalf("prompt missing free-text category: %q", got)
	}
}

func TestSyntheticGeneratorIsSquareAndDeterministic(t *testing.T) {
	gen := &SyntheticGenerator{size: 64}
	req := GenerateRequest{Caption: "Fresh bread", Category: domain.Category{Kind: domain.CategoryBakery}}

	first, err := gen.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	second, err := gen.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if !bytes.Equal(first.Data, second.Data) {
		t.Fatal("synthetic output must be deterministic")
	}
	cfg, format, err := stdimage.DecodeConfig(bytes.NewReader(first.Data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if format != "png" || cfg.Width != 64 || cfg.Height != 64 {
		t.Fatalf("got %s %dx%d", format, cfg.Width, cfg.Height)
	}
}
