// Package qwen calls the DashScope Qwen text-to-image API.
package qwen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/domain"
	"studio/internal/providers"
)

// Adapter is the name the client reports failures under.
const Adapter = "qwen-image"

// ErrMissingAPIKey indicates that the client was configured without credentials.
var ErrMissingAPIKey = errors.New("qwen: api key is required")

// SquareSize is the largest square size DashScope accepts.
const SquareSize = "1328*1328"

const (
	defaultBaseURL = "https://dashscope-intl.aliyuncs.com/api/v1"
	defaultModel   = "qwen-image-plus"
	generatePath   = "/services/aigc/multimodal-generation/generation"

	maxResponseBytes = 1 << 20
	maxImageBytes    = 20 << 20
)

type Options struct {
	APIKey         string
	BaseURL        string
	Model          string
	PromptExtend   bool
	HTTPClient     *http.Client
	Logger         zerolog.Logger
	RequestTimeout time.Duration
}

// Client generates one image per call and downloads it, since DashScope
// only returns short-lived URLs.
type Client struct {
	apiKey       string
	baseURL      string
	model        string
	promptExtend bool
	http         *http.Client
	log          zerolog.Logger
}

type ImageRequest struct {
	Prompt         string
	NegativePrompt string
	Size           string
	Seed           int
	RequestID      string
}

// ImageAsset is a downloaded image. Width and Height come from the decoded
// bytes when the format is known, else from the API's usage block.
type ImageAsset struct {
	URL    string
	Data   []byte
	Format string
	Width  int
	Height int
}

type dashscopeRequest struct {
	Model      string          `json:"model"`
	Input      dashscopeInput  `json:"input"`
	Parameters dashscopeParams `json:"parameters"`
}

type dashscopeInput struct {
	Messages []dashscopeMessage `json:"messages"`
}

type dashscopeMessage struct {
	Role    string          `json:"role"`
	Content []dashscopePart `json:"content"`
}

type dashscopePart struct {
	Text  string `json:"text,omitempty"`
	Image string `json:"image,omitempty"`
}

type dashscopeParams struct {
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Size           string `json:"size,omitempty"`
	PromptExtend   *bool  `json:"prompt_extend,omitempty"`
	Watermark      *bool  `json:"watermark,omitempty"`
	Seed           *int   `json:"seed,omitempty"`
}

// dashscopeResponse covers both success and in-body failure; Code is set
// only on failure.
type dashscopeResponse struct {
	Output struct {
		Choices []struct {
			Message dashscopeMessage `json:"message"`
		} `json:"choices"`
	} `json:"output"`
	Usage struct {
		Width  int `json:"width"`
		Height int `json:"height"`
	} `json:"usage"`
	RequestID string `json:"request_id"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

func (r dashscopeResponse) imageURL() string {
	for _, choice := range r.Output.Choices {
		for _, part := range choice.Message.Content {
			if u := strings.TrimSpace(part.Image); u != "" {
				return u
			}
		}
	}
	return ""
}

func NewClient(opts Options) (*Client, error) {
	key := strings.TrimSpace(opts.APIKey)
	if key == "" {
		return nil, ErrMissingAPIKey
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 45 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	c := &Client{
		apiKey:       key,
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		model:        strings.TrimSpace(opts.Model),
		promptExtend: opts.PromptExtend,
		http:         hc,
		log:          opts.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.model == "" {
		c.model = defaultModel
	}
	return c, nil
}

func (c *Client) Model() string { return c.model }

// GenerateImage submits one prompt and downloads the resulting image.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*ImageAsset, error) {
	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		return nil, domain.NewServiceError(Adapter, domain.CodeRejected, "prompt is required", false)
	}
	body, err := json.Marshal(c.payload(prompt, req))
	if err != nil {
		return nil, fmt.Errorf("qwen: encode request: %w", err)
	}

	resp, raw, err := c.send(ctx, http.MethodPost, c.baseURL+generatePath, body, maxResponseBytes)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, raw)
	}
	var decoded dashscopeResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, providers.BadResponse(Adapter, "decode response: "+err.Error())
	}
	if decoded.Code != "" {
		return nil, domain.NewServiceError(Adapter, domain.CodeRejected, fmt.Sprintf("%s (%s)", decoded.Message, decoded.Code), false)
	}
	imageURL := decoded.imageURL()
	if imageURL == "" {
		return nil, providers.BadResponse(Adapter, "empty image url")
	}

	asset, err := c.fetch(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	if asset.Width == 0 {
		asset.Width, asset.Height = decoded.Usage.Width, decoded.Usage.Height
	}
	c.log.Debug().
		Str("model", c.model).
		Str("request_id", req.RequestID).
		Str("dashscope_request_id", decoded.RequestID).
		Int("bytes", len(asset.Data)).
		Msg("qwen image generated")
	return asset, nil
}

func (c *Client) payload(prompt string, req ImageRequest) dashscopeRequest {
	watermark := false
	size := strings.TrimSpace(req.Size)
	if size == "" {
		size = SquareSize
	}
	p := dashscopeRequest{
		Model: c.model,
		Input: dashscopeInput{Messages: []dashscopeMessage{{
			Role:    "user",
			Content: []dashscopePart{{Text: prompt}},
		}}},
		Parameters: dashscopeParams{
			NegativePrompt: strings.TrimSpace(req.NegativePrompt),
			Size:           size,
			Watermark:      &watermark,
		},
	}
	if c.promptExtend {
		extend := true
		p.Parameters.PromptExtend = &extend
	}
	if req.Seed > 0 {
		seed := req.Seed
		p.Parameters.Seed = &seed
	}
	return p
}

// fetch downloads the generated image and reads its real dimensions.
func (c *Client) fetch(ctx context.Context, imageURL string) (*ImageAsset, error) {
	parsed, err := url.Parse(imageURL)
	if err != nil || (parsed.Scheme != "https" && parsed.Scheme != "http") {
		return nil, providers.BadResponse(Adapter, "invalid image url: "+imageURL)
	}
	resp, data, err := c.send(ctx, http.MethodGet, parsed.String(), nil, maxImageBytes)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, providers.StatusError(Adapter, resp.StatusCode, "download image")
	}
	format := resp.Header.Get("Content-Type")
	if format == "" {
		format = http.DetectContentType(data)
	}
	if !strings.HasPrefix(format, "image/") {
		return nil, providers.BadResponse(Adapter, "download is "+format+", not an image")
	}
	asset := &ImageAsset{URL: imageURL, Data: data, Format: format}
	if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		asset.Width, asset.Height = cfg.Width, cfg.Height
	}
	return asset, nil
}

// send performs one request and reads at most limit bytes of the body.
// Authorization is only attached to calls against the API itself.
func (c *Client) send(ctx context.Context, method, target string, body []byte, limit int64) (*http.Response, []byte, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, rd)
	if err != nil {
		return nil, nil, fmt.Errorf("qwen: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.HasPrefix(target, c.baseURL) {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, providers.TransportError(Adapter, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, nil, providers.TransportError(Adapter, err)
	}
	if int64(len(raw)) > limit {
		return nil, nil, providers.BadResponse(Adapter, fmt.Sprintf("response exceeds %d bytes", limit))
	}
	return resp, raw, nil
}

func statusError(status int, raw []byte) error {
	var detail struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &detail); err == nil && detail.Message != "" {
		return providers.StatusError(Adapter, status, fmt.Sprintf("%s (%s)", detail.Message, detail.Code))
	}
	return providers.StatusError(Adapter, status, string(raw))
}
