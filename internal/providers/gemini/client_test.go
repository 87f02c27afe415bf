package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func respond(status int, contentType, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{contentType}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func newTestClient(rt roundTripFunc) *Client {
	return NewClient(Options{
		APIKey:       "dummy",
		BaseURL:      "https://gemini.test/v1beta",
		HTTPClient:   &http.Client{Transport: rt},
		PollInterval: time.Millisecond,
		Logger:       zerolog.Nop(),
	})
}

func TestGenerateImageDecodesInlineData(t *testing.T) {
	png, err := RenderSquarePNG(64, Seed("chai"))
	if err != nil {
		t.Fatalf("RenderSquarePNG returned error: %v", err)
	}
	encoded := base64.StdEncoding.EncodeToString(png)
	var gotPath string
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		gotPath = r.URL.Path
		body := fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"text":"here"},{"inlineData":{"mimeType":"image/png","data":%q}}]},"finishReason":"STOP"}]}`, encoded)
		return respond(http.StatusOK, "application/json", body), nil
	})

	asset, err := client.GenerateImage(context.Background(), ImageRequest{Prompt: "tea stall"})
	if err != nil {
		t.Fatalf("GenerateImage returned error: %v", err)
	}
	if asset.Width != 64 || asset.Height != 64 {
		t.Fatalf("dimensions = %dx%d", asset.Width, asset.Height)
	}
	if asset.Format != "image/png" {
		t.Fatalf("Format = %q", asset.Format)
	}
	if gotPath != "/v1beta/models/gemini-2.5-flash-image:generateContent" {
		t.Fatalf("path = %q", gotPath)
	}
}

func TestGenerateImageSafetyBlockIsNotRetryable(t *testing.T) {
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		return respond(http.StatusOK, "application/json", `{"candidates":[{"content":{"parts":[]},"finishReason":"SAFETY"}]}`), nil
	})
	_, err := client.GenerateImage(context.Background(), ImageRequest{Prompt: "x"})
	svcErr, ok := domain.AsServiceError(err)
	if !ok || svcErr.Retryable || svcErr.Code != domain.CodeRejected {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGenerateImageRateLimited(t *testing.T) {
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		return respond(http.StatusTooManyRequests, "application/json", `{"error":{"code":429,"message":"quota"}}`), nil
	})
	_, err := client.GenerateImage(context.Background(), ImageRequest{Prompt: "x"})
	svcErr, ok := domain.AsServiceError(err)
	if !ok || !svcErr.Retryable || svcErr.Code != domain.CodeRateLimited {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(svcErr.Message, "quota") {
		t.Fatalf("message = %q", svcErr.Message)
	}
}

func TestGenerateVideoPollsOperation(t *testing.T) {
	var polls int32
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":predictLongRunning"):
			return respond(http.StatusOK, "application/json", `{"name":"models/veo/operations/op1"}`), nil
		case r.Method == http.MethodGet && strings.HasSuffix(r.URL.Path, "/operations/op1"):
			if atomic.AddInt32(&polls, 1) < 2 {
				return respond(http.StatusOK, "application/json", `{"name":"models/veo/operations/op1","done":false}`), nil
			}
			return respond(http.StatusOK, "application/json", `{"name":"models/veo/operations/op1","done":true,"response":{"generateVideoResponse":{"generatedSamples":[{"video":{"uri":"https://files.test/v1/video.mp4"}}]}}}`), nil
		case r.URL.Host == "files.test":
			return respond(http.StatusOK, "video/mp4", "mp4-bytes"), nil
		}
		return respond(http.StatusNotFound, "text/plain", "unexpected "+r.URL.String()), nil
	})

	asset, err := client.GenerateVideo(context.Background(), VideoRequest{Prompt: "chai", DurationSeconds: 8})
	if err != nil {
		t.Fatalf("GenerateVideo returned error: %v", err)
	}
	if string(asset.Data) != "mp4-bytes" || asset.Format != "video/mp4" || asset.DurationSeconds != 8 {
		t.Fatalf("unexpected asset: %+v", asset)
	}
	if atomic.LoadInt32(&polls) != 2 {
		t.Fatalf("polls = %d", polls)
	}
}

func TestGenerateVideoOperationError(t *testing.T) {
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		return respond(http.StatusOK, "application/json", `{"name":"op","done":true,"error":{"code":3,"message":"bad prompt"}}`), nil
	})
	_, err := client.GenerateVideo(context.Background(), VideoRequest{Prompt: "x", DurationSeconds: 8})
	svcErr, ok := domain.AsServiceError(err)
	if !ok || svcErr.Retryable || svcErr.Adapter != VideoAdapter {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestGenerateVideoHonoursContext(t *testing.T) {
	client := newTestClient(func(r *http.Request) (*http.Response, error) {
		return respond(http.StatusOK, "application/json", `{"name":"op","done":false}`), nil
	})
	client.pollInterval = time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := client.GenerateVideo(ctx, VideoRequest{Prompt: "x"}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestRenderPlaceholderMP4(t *testing.T) {
	data := RenderPlaceholderMP4(Seed("x"), "prompt", 8)
	if got := http.DetectContentType(data); got != "video/mp4" {
		t.Fatalf("DetectContentType = %q", got)
	}
}
