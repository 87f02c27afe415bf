package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"studio/internal/domain"
	"studio/internal/providers/image"
	"studio/internal/providers/speech"
	"studio/internal/providers/text"
	"studio/internal/providers/video"
	"studio/internal/resilience"
)

type fakeEnhancer struct {
	calls atomic.Int32
	fn    func(ctx context.Context, req text.EnhanceRequest) (*text.Enhanced, error)
}

func (f *fakeEnhancer) Name() string { return "fake-enhancer" }

func (f *fakeEnhancer) Enhance(ctx context.Context, req text.EnhanceRequest) (*text.Enhanced, error) {
	f.calls.Add(1)
	return f.fn(ctx, req)
}

type fakeTranslator struct {
	calls atomic.Int32
	fn    func(ctx context.Context, req text.TranslateRequest) (*text.Translated, error)
}

func (f *fakeTranslator) Name() string { return "fake-translator" }

func (f *fakeTranslator) Translate(ctx context.Context, req text.TranslateRequest) (*text.Translated, error) {
	f.calls.Add(1)
	return f.fn(ctx, req)
}

type fakeSpeech struct {
	calls atomic.Int32
	mu    sync.Mutex
	last  speech.Request
	fn    func(ctx context.Context, req speech.Request) (*speech.Clip, error)
}

func (f *fakeSpeech) Name() string { return "fake-speech" }

func (f *fakeSpeech) Synthesize(ctx context.Context, req speech.Request) (*speech.Clip, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.last = req
	f.mu.Unlock()
	return f.fn(ctx, req)
}

func (f *fakeSpeech) lastRequest() speech.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type fakeImage struct {
	calls atomic.Int32
	fn    func(ctx context.Context, req image.GenerateRequest) (*image.Asset, error)
}

func (f *fakeImage) Name() string { return "fake-image" }

func (f *fakeImage) Generate(ctx context.Context, req image.GenerateRequest) (*image.Asset, error) {
	f.calls.Add(1)
	return f.fn(ctx, req)
}

type fakeVideo struct {
	calls atomic.Int32
	fn    func(ctx context.Context, req video.GenerateRequest) (*video.Asset, error)
}

func (f *fakeVideo) Name() string { return "fake-video" }

func (f *fakeVideo) Generate(ctx context.Context, req video.GenerateRequest) (*video.Asset, error) {
	f.calls.Add(1)
	return f.fn(ctx, req)
}

type memStore struct {
	calls atomic.Int32
	put   func(ctx context.Context, key string, data []byte, contentType string) (string, error)

	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memStore) Name() string { return "mem-store" }

func (m *memStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	m.calls.Add(1)
	if m.put != nil {
		return m.put(ctx, key, data, contentType)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string][]byte)
	}
	m.objects[key] = data
	return "https://cdn.test/" + key, nil
}

type fakes struct {
	enhancer   *fakeEnhancer
	translator *fakeTranslator
	speech     *fakeSpeech
	image      *fakeImage
	video      *fakeVideo
	store      *memStore
}

func (f *fakes) adapters() Adapters {
	return Adapters{
		Enhancer:   f.enhancer,
		Translator: f.translator,
		Speech:     f.speech,
		Image:      f.image,
		Video:      f.video,
		Store:      f.store,
	}
}

const enhancedCaption = "Fresh, hot chai every day from 6 AM to 10 PM. Stop by for your cup!\n\n#Chai #TeaStall"

// healthyFakes returns adapters that all succeed within their contracts.
func healthyFakes() *fakes {
	return &fakes{
		enhancer: &fakeEnhancer{fn: func(ctx context.Context, req text.EnhanceRequest) (*text.Enhanced, error) {
			return &text.Enhanced{Text: enhancedCaption, Caption: "Fresh, hot chai", Hashtags: []string{"#Chai"}, Provider: "fake-enhancer"}, nil
		}},
		translator: &fakeTranslator{fn: func(ctx context.Context, req text.TranslateRequest) (*text.Translated, error) {
			return &text.Translated{Text: "सुबह 6 से रात 10 बजे तक गरमा गरम चाय!", Language: req.Language, Provider: "fake-translator"}, nil
		}},
		speech: &fakeSpeech{fn: func(ctx context.Context, req speech.Request) (*speech.Clip, error) {
			return &speech.Clip{Format: domain.AudioFormat, DurationSeconds: 12, Data: []byte("ID3audio")}, nil
		}},
		image: &fakeImage{fn: func(ctx context.Context, req image.GenerateRequest) (*image.Asset, error) {
			return &image.Asset{Format: "image/png", Width: 1024, Height: 1024, Data: []byte("\x89PNG")}, nil
		}},
		video: &fakeVideo{fn: func(ctx context.Context, req video.GenerateRequest) (*video.Asset, error) {
			return &video.Asset{Format: domain.VideoFormat, DurationSeconds: 8, Width: 1280, Height: 720, Data: []byte("ftypmp4")}, nil
		}},
		store: &memStore{},
	}
}

func fastPolicy() resilience.Policy {
	return resilience.Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		Multiplier:  2,
	}
}

func newTestPipeline(t *testing.T, a Adapters, policy resilience.Policy, budget time.Duration) (*Pipeline, *resilience.Registry) {
	t.Helper()
	reg := resilience.NewRegistry(resilience.BreakerConfig{FailureThreshold: 5, Cooldown: time.Minute}, zerolog.Nop())
	caller := resilience.NewCaller(reg, policy, zerolog.Nop())
	p, err := NewPipeline(PipelineOptions{
		Adapters: a,
		Caller:   caller,
		Budget:   budget,
		Logger:   zerolog.Nop(),
	})
	require.NoError(t, err)
	return p, reg
}

func teaStallRequest(lang string) domain.GenerationRequest {
	return domain.NewGenerationRequest(domain.RequestInput{
		Category:       "tea-stall",
		RawMessage:     "chai garam milta hai subah 6 se raat 10 tak",
		TargetLanguage: lang,
	}, time.Now())
}

type recorder struct {
	mu     sync.Mutex
	events []ProgressEvent
}

func (r *recorder) OnProgress(ev ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) all() []ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ProgressEvent(nil), r.events...)
}
