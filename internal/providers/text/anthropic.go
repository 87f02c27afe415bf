package text

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"studio/internal/providers"
)

type AnthropicOptions struct {
	APIKey     string
	Model      string
	BaseURL    string
	HTTPClient *http.Client
}

// AnthropicClient enhances and translates text with Claude models.
type AnthropicClient struct {
	client anthropic.Client
	model  string
}

const (
	anthropicDefaultModel = "claude-3-5-haiku-latest"
	anthropicMaxTokens    = 1024
)

func NewAnthropicClient(opts AnthropicOptions) (*AnthropicClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("anthropic api key is required")
	}
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = anthropicDefaultModel
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		// retries are owned by the resilience layer
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	if opts.HTTPClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(opts.HTTPClient))
	}
	return &AnthropicClient{client: anthropic.NewClient(reqOpts...), model: model}, nil
}

func (a *AnthropicClient) Name() string { return anthropicProviderName }

func (a *AnthropicClient) Enhance(ctx context.Context, req EnhanceRequest) (*Enhanced, error) {
	raw, err := a.complete(ctx, buildEnhancePrompt(req))
	if err != nil {
		return nil, err
	}
	out, err := enhancedFromModel(anthropicProviderName, raw)
	if err != nil {
		return nil, providers.BadResponse(anthropicProviderName, err.Error())
	}
	return out, nil
}

func (a *AnthropicClient) Translate(ctx context.Context, req TranslateRequest) (*Translated, error) {
	raw, err := a.complete(ctx, buildTranslatePrompt(req))
	if err != nil {
		return nil, err
	}
	out, err := translatedFromModel(anthropicProviderName, raw, req.Language)
	if err != nil {
		return nil, providers.BadResponse(anthropicProviderName, err.Error())
	}
	return out, nil
}

func (a *AnthropicClient) complete(ctx context.Context, prompt string) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: anthropicMaxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", providers.StatusError(anthropicProviderName, apiErr.StatusCode, apiErr.Error())
		}
		return "", providers.TransportError(anthropicProviderName, err)
	}
	var sb strings.Builder
	for _, block := range msg.Content {
		sb.WriteString(block.Text)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", providers.BadResponse(anthropicProviderName, "empty response")
	}
	return sb.String(), nil
}

var (
	_ Enhancer   = (*AnthropicClient)(nil)
	_ Translator = (*AnthropicClient)(nil)
)
