// Package gemini talks to the Gemini REST API for media generation and keeps
// the deterministic synthetic renderers used when no key is configured.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
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

const (
	ImageAdapter = "gemini-image"
	VideoAdapter = "gemini-video"

	defaultBaseURL      = "https://generativelanguage.googleapis.com/v1beta"
	defaultImageModel   = "gemini-2.5-flash-image"
	defaultVideoModel   = "veo-3.0-fast-generate-001"
	defaultPollInterval = 5 * time.Second
	maxDownloadBytes    = 64 << 20
)

// Options controls how the Gemini client is configured.
type Options struct {
	APIKey       string
	BaseURL      string
	ImageModel   string
	VideoModel   string
	HTTPClient   *http.Client
	PollInterval time.Duration
	Logger       zerolog.Logger
}

// Client is a thin REST facade over the Gemini image and Veo video endpoints.
type Client struct {
	apiKey       string
	baseURL      string
	imageModel   string
	videoModel   string
	httpClient   *http.Client
	pollInterval time.Duration
	logger       zerolog.Logger
}

type ImageRequest struct {
	Prompt    string
	RequestID string
}

type VideoRequest struct {
	Prompt          string
	DurationSeconds int
	AspectRatio     string
	RequestID       string
}

// ImageAsset is a decoded image returned by the API.
type ImageAsset struct {
	Format string
	Width  int
	Height int
	Data   []byte
}

// VideoAsset is a downloaded video returned by the API.
type VideoAsset struct {
	Format          string
	DurationSeconds int
	Data            []byte
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts,omitempty"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

type geminiImageConfig struct {
	AspectRatio string `json:"aspectRatio,omitempty"`
}

type geminiGenerationConfig struct {
	CandidateCount     int                `json:"candidateCount,omitempty"`
	ResponseModalities []string           `json:"responseModalities,omitempty"`
	ImageConfig        *geminiImageConfig `json:"imageConfig,omitempty"`
}

type geminiGenerateContentRequest struct {
	Contents         []geminiContent         `json:"contents"`
	GenerationConfig *geminiGenerationConfig `json:"generationConfig,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiGenerateContentResponse struct {
	Candidates     []geminiCandidate `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason,omitempty"`
	} `json:"promptFeedback,omitempty"`
}

type geminiErrorResponse struct {
	Error struct {
		Code    int    `json:"code,omitempty"`
		Message string `json:"message,omitempty"`
	} `json:"error"`
}

type veoRequest struct {
	Instances  []veoInstance `json:"instances"`
	Parameters veoParameters `json:"parameters"`
}

type veoInstance struct {
	Prompt string `json:"prompt"`
}

type veoParameters struct {
	AspectRatio     string `json:"aspectRatio,omitempty"`
	DurationSeconds int    `json:"durationSeconds,omitempty"`
	SampleCount     int    `json:"sampleCount,omitempty"`
}

type veoOperation struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
	Response *struct {
		GenerateVideoResponse struct {
			GeneratedSamples []struct {
				Video struct {
					URI string `json:"uri"`
				} `json:"video"`
			} `json:"generatedSamples"`
			RaiMediaFilteredReasons []string `json:"raiMediaFilteredReasons,omitempty"`
		} `json:"generateVideoResponse"`
	} `json:"response,omitempty"`
}

// NewClient constructs a Gemini client with sane defaults. Callers may provide
// a nil HTTP client; a reusable one will be created.
func NewClient(opts Options) *Client {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	imageModel := strings.TrimSpace(opts.ImageModel)
	if imageModel == "" {
		imageModel = defaultImageModel
	}
	videoModel := strings.TrimSpace(opts.VideoModel)
	if videoModel == "" {
		videoModel = defaultVideoModel
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &Client{
		apiKey:       strings.TrimSpace(opts.APIKey),
		baseURL:      baseURL,
		imageModel:   imageModel,
		videoModel:   videoModel,
		httpClient:   client,
		pollInterval: poll,
		logger:       opts.Logger,
	}
}

// Configured reports whether an API key is present.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// GenerateImage requests one square image.
func (c *Client) GenerateImage(ctx context.Context, req ImageRequest) (*ImageAsset, error) {
	payload := geminiGenerateContentRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: req.Prompt}},
		}},
		GenerationConfig: &geminiGenerationConfig{
			CandidateCount:     1,
			ResponseModalities: []string{"IMAGE"},
			ImageConfig:        &geminiImageConfig{AspectRatio: "1:1"},
		},
	}
	var resp geminiGenerateContentResponse
	path := fmt.Sprintf("/models/%s:generateContent", url.PathEscape(c.imageModel))
	if err := c.invoke(ctx, ImageAdapter, http.MethodPost, path, payload, &resp); err != nil {
		return nil, err
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, domain.NewServiceError(ImageAdapter, domain.CodeRejected, "prompt blocked: "+resp.PromptFeedback.BlockReason, false)
	}
	for _, cand := range resp.Candidates {
		for _, part := range cand.Content.Parts {
			if part.InlineData == nil || part.InlineData.Data == "" {
				continue
			}
			data, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
			if err != nil {
				return nil, providers.BadResponse(ImageAdapter, "decode inline data: "+err.Error())
			}
			w, h := decodeImageDimensions(data)
			c.logger.Debug().
				Str("request_id", req.RequestID).
				Str("model", c.imageModel).
				Int("bytes", len(data)).
				Msg("gemini: generated image")
			return &ImageAsset{
				Format: firstNonEmpty(part.InlineData.MimeType, http.DetectContentType(data)),
				Width:  w,
				Height: h,
				Data:   data,
			}, nil
		}
		if cand.FinishReason == "SAFETY" || cand.FinishReason == "PROHIBITED_CONTENT" || cand.FinishReason == "IMAGE_SAFETY" {
			return nil, domain.NewServiceError(ImageAdapter, domain.CodeRejected, "image blocked: "+cand.FinishReason, false)
		}
	}
	return nil, providers.BadResponse(ImageAdapter, "no image content returned")
}

// GenerateVideo starts a Veo operation, polls it to completion and downloads
// the first sample.
func (c *Client) GenerateVideo(ctx context.Context, req VideoRequest) (*VideoAsset, error) {
	payload := veoRequest{
		Instances: []veoInstance{{Prompt: req.Prompt}},
		Parameters: veoParameters{
			AspectRatio:     firstNonEmpty(req.AspectRatio, "16:9"),
			DurationSeconds: req.DurationSeconds,
			SampleCount:     1,
		},
	}
	var op veoOperation
	path := fmt.Sprintf("/models/%s:predictLongRunning", url.PathEscape(c.videoModel))
	if err := c.invoke(ctx, VideoAdapter, http.MethodPost, path, payload, &op); err != nil {
		return nil, err
	}
	if op.Name == "" && !op.Done {
		return nil, providers.BadResponse(VideoAdapter, "operation name missing")
	}

	for !op.Done {
		t := time.NewTimer(c.pollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
		name := op.Name
		op = veoOperation{}
		if err := c.invoke(ctx, VideoAdapter, http.MethodGet, "/"+strings.TrimLeft(name, "/"), nil, &op); err != nil {
			return nil, err
		}
		if op.Name == "" {
			op.Name = name
		}
	}

	if op.Error != nil {
		return nil, providers.StatusError(VideoAdapter, rpcToHTTP(op.Error.Code), op.Error.Message)
	}
	if op.Response == nil || len(op.Response.GenerateVideoResponse.GeneratedSamples) == 0 {
		if op.Response != nil && len(op.Response.GenerateVideoResponse.RaiMediaFilteredReasons) > 0 {
			reason := strings.Join(op.Response.GenerateVideoResponse.RaiMediaFilteredReasons, "; ")
			return nil, domain.NewServiceError(VideoAdapter, domain.CodeRejected, "video filtered: "+reason, false)
		}
		return nil, providers.BadResponse(VideoAdapter, "no video samples returned")
	}
	uri := op.Response.GenerateVideoResponse.GeneratedSamples[0].Video.URI
	data, mime, err := c.downloadFile(ctx, uri)
	if err != nil {
		return nil, err
	}
	c.logger.Debug().
		Str("request_id", req.RequestID).
		Str("model", c.videoModel).
		Int("bytes", len(data)).
		Msg("gemini: generated video")
	return &VideoAsset{
		Format:          firstNonEmpty(mime, domain.VideoFormat),
		DurationSeconds: req.DurationSeconds,
		Data:            data,
	}, nil
}

func (c *Client) invoke(ctx context.Context, adapter, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return providers.TransportError(adapter, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr geminiErrorResponse
		if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
			return providers.StatusError(adapter, resp.StatusCode, apiErr.Error.Message)
		}
		return providers.StatusError(adapter, resp.StatusCode, string(data))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return providers.BadResponse(adapter, "decode response: "+err.Error())
	}
	return nil
}

func (c *Client) downloadFile(ctx context.Context, uri string) ([]byte, string, error) {
	if uri == "" {
		return nil, "", providers.BadResponse(VideoAdapter, "empty video uri")
	}
	target := uri
	if !strings.HasPrefix(uri, "http://") && !strings.HasPrefix(uri, "https://") {
		target = c.baseURL + "/" + strings.TrimLeft(uri, "/")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("create download request: %w", err)
	}
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", providers.TransportError(VideoAdapter, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, "", providers.StatusError(VideoAdapter, resp.StatusCode, string(data))
	}
	blob, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, "", providers.TransportError(VideoAdapter, err)
	}
	return blob, resp.Header.Get("Content-Type"), nil
}

// rpcToHTTP maps google.rpc codes carried by long running operations onto
// HTTP statuses so they classify the same way.
func rpcToHTTP(code int) int {
	switch code {
	case 3, 9, 11: // invalid argument, failed precondition, out of range
		return http.StatusBadRequest
	case 7, 16:
		return http.StatusForbidden
	case 8:
		return http.StatusTooManyRequests
	case 4:
		return http.StatusGatewayTimeout
	case 0:
		return http.StatusInternalServerError
	default:
		return http.StatusServiceUnavailable
	}
}

func decodeImageDimensions(data []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
