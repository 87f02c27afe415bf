package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/domain"
	"studio/internal/providers"
)

const cloudTTSProviderName = "cloud-tts"

type CloudTTSOptions struct {
	APIKey     string
	BaseURL    string
	Gender     string
	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// CloudTTS calls the Google Cloud Text-to-Speech REST API.
type CloudTTS struct {
	apiKey  string
	baseURL string
	gender  string
	client  *http.Client
	logger  zerolog.Logger
}

type ttsRequest struct {
	Input       ttsInput       `json:"input"`
	Voice       ttsVoice       `json:"voice"`
	AudioConfig ttsAudioConfig `json:"audioConfig"`
}

type ttsInput struct {
	SSML string `json:"ssml"`
}

type ttsVoice struct {
	LanguageCode string `json:"languageCode"`
	SSMLGender   string `json:"ssmlGender,omitempty"`
}

type ttsAudioConfig struct {
	AudioEncoding string  `json:"audioEncoding"`
	SpeakingRate  float64 `json:"speakingRate,omitempty"`
}

type ttsResponse struct {
	AudioContent string `json:"audioContent"`
}

type ttsErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func NewCloudTTS(opts CloudTTSOptions) (*CloudTTS, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("text-to-speech api key is required")
	}
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://texttospeech.googleapis.com"
	}
	gender := strings.ToUpper(strings.TrimSpace(opts.Gender))
	if gender == "" {
		gender = "FEMALE"
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &CloudTTS{
		apiKey:  strings.TrimSpace(opts.APIKey),
		baseURL: baseURL,
		gender:  gender,
		client:  client,
		logger:  opts.Logger,
	}, nil
}

func (c *CloudTTS) Name() string { return cloudTTSProviderName }

func (c *CloudTTS) Synthesize(ctx context.Context, req Request) (*Clip, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, domain.NewServiceError(cloudTTSProviderName, domain.CodeRejected, "text is required", false)
	}
	p := planDuration(req.Text)
	payload := ttsRequest{
		Input: ttsInput{SSML: buildSSML(p)},
		Voice: ttsVoice{
			LanguageCode: req.Language.Locale(),
			SSMLGender:   c.gender,
		},
		AudioConfig: ttsAudioConfig{AudioEncoding: "MP3", SpeakingRate: p.rate},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode tts request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/text:synthesize", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build tts request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, providers.TransportError(cloudTTSProviderName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		var apiErr ttsErrorResponse
		if err := json.Unmarshal(raw, &apiErr); err == nil && apiErr.Error.Message != "" {
			return nil, providers.StatusError(cloudTTSProviderName, resp.StatusCode, apiErr.Error.Message)
		}
		return nil, providers.StatusError(cloudTTSProviderName, resp.StatusCode, string(raw))
	}

	var out ttsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, providers.BadResponse(cloudTTSProviderName, "decode response: "+err.Error())
	}
	audio, err := base64.StdEncoding.DecodeString(out.AudioContent)
	if err != nil {
		return nil, providers.BadResponse(cloudTTSProviderName, "decode audio: "+err.Error())
	}
	if len(audio) == 0 {
		return nil, providers.BadResponse(cloudTTSProviderName, "empty audio content")
	}
	c.logger.Debug().
		Str("language", req.Language.Locale()).
		Float64("rate", p.rate).
		Int("pad_seconds", p.pad).
		Int("bytes", len(audio)).
		Msg("tts: synthesized clip")
	return &Clip{Format: domain.AudioFormat, DurationSeconds: p.seconds, Data: audio}, nil
}

func buildSSML(p plan) string {
	var b strings.Builder
	b.WriteString("<speak>")
	_ = xml.EscapeText(&b, []byte(p.text))
	if p.pad > 0 {
		fmt.Fprintf(&b, `<break time="%ds"/>`, p.pad)
	}
	b.WriteString("</speak>")
	return b.String()
}

var _ Synthesizer = (*CloudTTS)(nil)
