package text

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"studio/internal/domain"
)

// StaticEnhancer produces deterministic copy without calling a model. It is
// used when no model credentials are configured.
type StaticEnhancer struct{}

func NewStaticEnhancer() *StaticEnhancer {
	return &StaticEnhancer{}
}

func (s *StaticEnhancer) Name() string { return staticProviderName }

func (s *StaticEnhancer) Enhance(ctx context.Context, req EnhanceRequest) (*Enhanced, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	msg := strings.TrimSpace(req.Message)
	if msg == "" {
		return nil, domain.NewServiceError(staticProviderName, domain.CodeRejected, "empty message", false)
	}
	title := cases.Title(language.English)
	label := req.Category.Label()
	caption := fmt.Sprintf("%s: %s. Come visit us today!", title.String(label), strings.TrimRight(msg, ".!"))
	tags := normalizeHashtags([]string{
		strings.ReplaceAll(title.String(label), " ", ""),
		"SupportLocal",
		"ShopLocal",
	})
	return &Enhanced{
		Text:     joinCaption(caption, tags),
		Caption:  caption,
		Hashtags: tags,
		Provider: staticProviderName,
	}, nil
}

// StaticTranslator labels the text with the target language instead of
// translating it.
type StaticTranslator struct{}

func NewStaticTranslator() *StaticTranslator {
	return &StaticTranslator{}
}

func (s *StaticTranslator) Name() string { return staticProviderName }

func (s *StaticTranslator) Translate(ctx context.Context, req TranslateRequest) (*Translated, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !req.Language.Valid() {
		return nil, domain.NewServiceError(staticProviderName, domain.CodeRejected, "unsupported language", false)
	}
	name := cases.Title(language.English).String(string(req.Language))
	return &Translated{
		Text:     fmt.Sprintf("[%s] %s", name, req.Text),
		Language: req.Language,
		Provider: staticProviderName,
	}, nil
}

var (
	_ Enhancer   = (*StaticEnhancer)(nil)
	_ Translator = (*StaticTranslator)(nil)
)
