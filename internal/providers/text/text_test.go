package text

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"

	"studio/internal/domain"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func teaStall() domain.Category {
	return domain.Category{Kind: domain.CategoryTeaStall}
}

func TestEnhancedFromModelHandlesCodeFence(t *testing.T) {
	raw := "```json\n{\"caption\":\"Hot chai from 6am to 10pm!\",\"hashtags\":[\"chai\",\"#Chai\",\" tea time \"]}\n```"
	got, err := enhancedFromModel("gemini-text", raw)
	if err != nil {
		t.Fatalf("enhancedFromModel returned error: %v", err)
	}
	if got.Caption != "Hot chai from 6am to 10pm!" {
		t.Fatalf("Caption = %q", got.Caption)
	}
	if len(got.Hashtags) != 2 || got.Hashtags[0] != "#chai" || got.Hashtags[1] != "#teatime" {
		t.Fatalf("Hashtags = %v", got.Hashtags)
	}
	if !strings.HasSuffix(got.Text, "#chai #teatime") {
		t.Fatalf("Text = %q", got.Text)
	}
}

func TestEnhancedFromModelRejectsEmptyCaption(t *testing.T) {
	if _, err := enhancedFromModel("gemini-text", `{"caption":"  "}`); err == nil {
		t.Fatal("expected error for empty caption")
	}
	if _, err := enhancedFromModel("gemini-text", "sorry, I cannot help"); err == nil {
		t.Fatal("expected error for non-json output")
	}
}

func TestStaticEnhancer(t *testing.T) {
	res, err := NewStaticEnhancer().Enhance(context.Background(), EnhanceRequest{
		Message:  "chai garam milta hai subah 6 se raat 10 tak",
		Category: teaStall(),
	})
	if err != nil {
		t.Fatalf("Enhance returned error: %v", err)
	}
	if !strings.HasPrefix(res.Caption, "Tea Stall: chai garam") {
		t.Fatalf("Caption = %q", res.Caption)
	}
	if res.Provider != staticProviderName {
		t.Fatalf("Provider = %q", res.Provider)
	}
	if len(res.Hashtags) == 0 || res.Hashtags[0] != "#TeaStall" {
		t.Fatalf("Hashtags = %v", res.Hashtags)
	}
}

func TestStaticTranslator(t *testing.T) {
	res, err := NewStaticTranslator().Translate(context.Background(), TranslateRequest{Text: "Hot chai", Language: domain.LanguageHindi})
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if res.Text != "[Hindi] Hot chai" {
		t.Fatalf("Text = %q", res.Text)
	}
}

func TestGeminiClientEnhance(t *testing.T) {
	var gotKey string
	client, err := NewGeminiClient(context.Background(), GeminiOptions{
		APIKey:  "dummy",
		BaseURL: "https://gemini.test",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			gotKey = r.Header.Get("x-goog-api-key")
			return jsonResponse(http.StatusOK, `{"candidates":[{"content":{"role":"model","parts":[{"text":"{\"caption\":\"Fresh masala chai all day\",\"hashtags\":[\"chai\"]}"}]},"finishReason":"STOP"}]}`), nil
		})},
	})
	if err != nil {
		t.Fatalf("NewGeminiClient returned error: %v", err)
	}
	res, err := client.Enhance(context.Background(), EnhanceRequest{Message: "chai", Category: teaStall()})
	if err != nil {
		t.Fatalf("Enhance returned error: %v", err)
	}
	if res.Caption != "Fresh masala chai all day" {
		t.Fatalf("Caption = %q", res.Caption)
	}
	if gotKey != "dummy" {
		t.Fatalf("api key header = %q", gotKey)
	}
}

func TestGeminiClientClassifiesServerError(t *testing.T) {
	client, err := NewGeminiClient(context.Background(), GeminiOptions{
		APIKey:  "dummy",
		BaseURL: "https://gemini.test",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusServiceUnavailable, `{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`), nil
		})},
	})
	if err != nil {
		t.Fatalf("NewGeminiClient returned error: %v", err)
	}
	_, err = client.Translate(context.Background(), TranslateRequest{Text: "hi", Language: domain.LanguageTamil})
	svcErr, ok := domain.AsServiceError(err)
	if !ok {
		t.Fatalf("expected ServiceError, got %v", err)
	}
	if !svcErr.Retryable || svcErr.Code != domain.CodeUnavailable {
		t.Fatalf("unexpected classification: %+v", svcErr)
	}
}

func TestAnthropicClientTranslate(t *testing.T) {
	client, err := NewAnthropicClient(AnthropicOptions{
		APIKey:  "dummy",
		BaseURL: "https://anthropic.test",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			return jsonResponse(http.StatusOK, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest","content":[{"type":"text","text":"{\"translation\":\"गरम चाय\"}"}],"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":5}}`), nil
		})},
	})
	if err != nil {
		t.Fatalf("NewAnthropicClient returned error: %v", err)
	}
	res, err := client.Translate(context.Background(), TranslateRequest{Text: "Hot tea", Language: domain.LanguageHindi})
	if err != nil {
		t.Fatalf("Translate returned error: %v", err)
	}
	if res.Text != "गरम चाय" || res.Language != domain.LanguageHindi {
		t.Fatalf("unexpected translation: %+v", res)
	}
}

func TestAnthropicClientRateLimited(t *testing.T) {
	calls := 0
	client, err := NewAnthropicClient(AnthropicOptions{
		APIKey:  "dummy",
		BaseURL: "https://anthropic.test",
		HTTPClient: &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
			calls++
			return jsonResponse(http.StatusTooManyRequests, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`), nil
		})},
	})
	if err != nil {
		t.Fatalf("NewAnthropicClient returned error: %v", err)
	}
	_, err = client.Enhance(context.Background(), EnhanceRequest{Message: "chai", Category: teaStall()})
	svcErr, ok := domain.AsServiceError(err)
	if !ok || svcErr.Code != domain.CodeRateLimited || !svcErr.Retryable {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Fatalf("sdk retried internally: %d calls", calls)
	}
}
