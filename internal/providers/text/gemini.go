package text

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"google.golang.org/genai"

	"studio/internal/domain"
	"studio/internal/providers"
)

type GeminiOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiClient enhances and translates text through the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

const geminiDefaultModel = "gemini-2.5-flash"

func NewGeminiClient(ctx context.Context, opts GeminiOptions) (*GeminiClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = geminiDefaultModel
	}
	cfg := &genai.ClientConfig{
		APIKey:     opts.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: opts.HTTPClient,
	}
	if base := strings.TrimRight(opts.BaseURL, "/"); base != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: base + "/"}
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &GeminiClient{client: client, model: model}, nil
}

func (g *GeminiClient) Name() string { return geminiProviderName }

func (g *GeminiClient) Enhance(ctx context.Context, req EnhanceRequest) (*Enhanced, error) {
	raw, err := g.generate(ctx, buildEnhancePrompt(req), 0.6)
	if err != nil {
		return nil, err
	}
	out, err := enhancedFromModel(geminiProviderName, raw)
	if err != nil {
		return nil, providers.BadResponse(geminiProviderName, err.Error())
	}
	return out, nil
}

func (g *GeminiClient) Translate(ctx context.Context, req TranslateRequest) (*Translated, error) {
	raw, err := g.generate(ctx, buildTranslatePrompt(req), 0.2)
	if err != nil {
		return nil, err
	}
	out, err := translatedFromModel(geminiProviderName, raw, req.Language)
	if err != nil {
		return nil, providers.BadResponse(geminiProviderName, err.Error())
	}
	return out, nil
}

func (g *GeminiClient) generate(ctx context.Context, prompt string, temperature float32) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(temperature),
		CandidateCount:   1,
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", classifyGeminiError(err)
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", domain.NewServiceError(geminiProviderName, domain.CodeRejected,
				"prompt blocked: "+string(resp.PromptFeedback.BlockReason), false)
		}
		return "", providers.BadResponse(geminiProviderName, "no candidates returned")
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == genai.FinishReasonSafety || cand.FinishReason == genai.FinishReasonProhibitedContent {
		return "", domain.NewServiceError(geminiProviderName, domain.CodeRejected,
			"response blocked: "+string(cand.FinishReason), false)
	}
	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", providers.BadResponse(geminiProviderName, "empty response")
	}
	return text, nil
}

func classifyGeminiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return providers.StatusError(geminiProviderName, apiErr.Code, apiErr.Message)
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return providers.StatusError(geminiProviderName, apiErrPtr.Code, apiErrPtr.Message)
	}
	return providers.TransportError(geminiProviderName, err)
}

var (
	_ Enhancer   = (*GeminiClient)(nil)
	_ Translator = (*GeminiClient)(nil)
)
