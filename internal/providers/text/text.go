// Package text adapts language models for caption enhancement and
// translation.
package text

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"studio/internal/domain"
)

const (
	staticProviderName    = "static-text"
	geminiProviderName    = "gemini-text"
	anthropicProviderName = "anthropic-text"

	maxHashtags = 5
)

type EnhanceRequest struct {
	Message  string
	Category domain.Category
}

type Enhanced struct {
	Text     string
	Caption  string
	Hashtags []string
	Provider string
}

type TranslateRequest struct {
	Text     string
	Language domain.Language
}

type Translated struct {
	Text     string
	Language domain.Language
	Provider string
}

// Enhancer rewrites a raw business message into marketing copy.
type Enhancer interface {
	Name() string
	Enhance(ctx context.Context, req EnhanceRequest) (*Enhanced, error)
}

// Translator renders English copy in a target language.
type Translator interface {
	Name() string
	Translate(ctx context.Context, req TranslateRequest) (*Translated, error)
}

type modelEnhancePayload struct {
	Caption  string   `json:"caption"`
	Hashtags []string `json:"hashtags"`
}

type modelTranslatePayload struct {
	Translation string `json:"translation"`
}

func buildEnhancePrompt(req EnhanceRequest) string {
	sb := &strings.Builder{}
	sb.WriteString("You are a marketing copywriter for small Indian businesses. Respond strictly with JSON matching this schema: ")
	sb.WriteString(`{"caption":string,"hashtags":string[]}`)
	fmt.Fprintf(sb, ". Write the caption in English, under 60 words, warm and persuasive, keeping every concrete fact (timings, prices, location). Business type: %q. Owner's message: %q.", req.Category.Label(), req.Message)
	return sb.String()
}

func buildTranslatePrompt(req TranslateRequest) string {
	name := req.Language.Tag().String()
	sb := &strings.Builder{}
	sb.WriteString("Translate the following marketing caption. Respond strictly with JSON matching this schema: ")
	sb.WriteString(`{"translation":string}`)
	fmt.Fprintf(sb, ". Target language: %s (BCP-47 %q), written in its native script. Keep hashtags unchanged. Caption: %q", req.Language, name, req.Text)
	return sb.String()
}

// enhancedFromModel turns raw model output into an Enhanced value.
func enhancedFromModel(provider, raw string) (*Enhanced, error) {
	parsed, err := parseModelPayload[modelEnhancePayload](raw)
	if err != nil {
		return nil, err
	}
	caption := strings.TrimSpace(parsed.Caption)
	if caption == "" {
		return nil, errors.New("model returned an empty caption")
	}
	tags := normalizeHashtags(parsed.Hashtags)
	return &Enhanced{
		Text:     joinCaption(caption, tags),
		Caption:  caption,
		Hashtags: tags,
		Provider: provider,
	}, nil
}

func translatedFromModel(provider, raw string, lang domain.Language) (*Translated, error) {
	parsed, err := parseModelPayload[modelTranslatePayload](raw)
	if err != nil {
		return nil, err
	}
	out := strings.TrimSpace(parsed.Translation)
	if out == "" {
		return nil, errors.New("model returned an empty translation")
	}
	return &Translated{Text: out, Language: lang, Provider: provider}, nil
}

func joinCaption(caption string, hashtags []string) string {
	if len(hashtags) == 0 {
		return caption
	}
	return caption + "\n\n" + strings.Join(hashtags, " ")
}

func normalizeHashtags(tags []string) []string {
	seen := make(map[string]struct{})
	var result []string
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		tag = strings.ReplaceAll(tag, " ", "")
		tag = strings.TrimLeft(tag, "#")
		if tag == "" {
			continue
		}
		lower := strings.ToLower(tag)
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		result = append(result, "#"+tag)
		if len(result) == maxHashtags {
			break
		}
	}
	return result
}

func parseModelPayload[T any](raw string) (T, error) {
	var zero T
	cleaned := extractJSONFragment(raw)
	if cleaned == "" {
		return zero, errors.New("empty payload")
	}
	var decoded T
	if err := json.Unmarshal([]byte(cleaned), &decoded); err != nil {
		return zero, err
	}
	return decoded, nil
}

func extractJSONFragment(raw string) string {
	text := trimCodeFence(strings.TrimSpace(raw))
	if text == "" {
		return ""
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end >= start {
		text = text[start : end+1]
	}
	return strings.TrimSpace(text)
}

func trimCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```JSON")
	text = strings.TrimPrefix(text, "```")
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}
