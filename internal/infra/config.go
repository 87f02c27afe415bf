package infra

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config represents application configuration. Values come from an optional
// YAML file (CONFIG_PATH), overridden by environment variables, falling back
// to the env-default tags.
type Config struct {
	App       AppConfig       `yaml:"app"`
	HTTP      HTTPConfig      `yaml:"http"`
	CORS      CORSConfig      `yaml:"cors"`
	Storage   StorageConfig   `yaml:"storage"`
	Providers ProvidersConfig `yaml:"providers"`
	Database  DatabaseConfig  `yaml:"database"`
	GeoIP     GeoIPConfig     `yaml:"geoip"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
}

type AppConfig struct {
	Env      string `yaml:"env"       env:"APP_ENV"   env-default:"development"`
	Port     string `yaml:"port"      env:"PORT"      env-default:"8080"`
	LogLevel string `yaml:"log_level" env:"LOG_LEVEL"`
}

type HTTPConfig struct {
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"HTTP_READ_TIMEOUT"     env-default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"HTTP_WRITE_TIMEOUT"    env-default:"150s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"HTTP_IDLE_TIMEOUT"     env-default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"HTTP_SHUTDOWN_TIMEOUT" env-default:"15s"`
	RateLimitPerMin int           `yaml:"rate_limit"       env:"RATE_LIMIT_PER_MINUTE" env-default:"30"`
	ResultTTL       time.Duration `yaml:"result_ttl"       env:"RESULT_TTL"            env-default:"10m"`

	// TrustProxyHeaders honors X-Forwarded-For/X-Real-IP for client
	// addresses. Only safe behind a proxy that sets them.
	TrustProxyHeaders bool `yaml:"trust_proxy_headers" env:"TRUST_PROXY_HEADERS" env-default:"false"`
}

type CORSConfig struct {
	AllowedOrigins string `yaml:"allowed_origins" env:"CORS_ALLOWED_ORIGINS" env-default:"*"`
}

// Origins splits AllowedOrigins on commas.
func (c CORSConfig) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

const (
	StorageFilesystem = "filesystem"
	StorageGCS        = "gcs"
)

// StorageConfig selects where generated media is published. BaseURL is the
// public prefix of stored objects; for the filesystem driver it defaults to
// the API's own /static route.
type StorageConfig struct {
	Driver          string `yaml:"driver"           env:"STORAGE_DRIVER"           env-default:"filesystem"`
	Path            string `yaml:"path"             env:"STORAGE_PATH"             env-default:"./data/assets"`
	BaseURL         string `yaml:"base_url"         env:"STORAGE_BASE_URL"`
	Bucket          string `yaml:"bucket"           env:"GCS_BUCKET"`
	CredentialsFile string `yaml:"credentials_file" env:"GOOGLE_APPLICATION_CREDENTIALS"`
}

const (
	TextProviderGemini    = "gemini"
	TextProviderAnthropic = "anthropic"
	TextProviderStatic    = "static"

	ImageProviderGemini = "gemini"
	ImageProviderQwen   = "qwen"
)

type ProvidersConfig struct {
	Text  string `yaml:"text"  env:"TEXT_PROVIDER"  env-default:"gemini"`
	Image string `yaml:"image" env:"IMAGE_PROVIDER" env-default:"gemini"`

	GeminiAPIKey     string `yaml:"gemini_api_key"     env:"GEMINI_API_KEY"`
	GeminiBaseURL    string `yaml:"gemini_base_url"    env:"GEMINI_BASE_URL"    env-default:"https://generativelanguage.googleapis.com/v1beta"`
	GeminiTextModel  string `yaml:"gemini_text_model"  env:"GEMINI_MODEL"       env-default:"gemini-2.5-flash"`
	GeminiImageModel string `yaml:"gemini_image_model" env:"GEMINI_IMAGE_MODEL" env-default:"gemini-2.5-flash-image"`
	GeminiVideoModel string `yaml:"gemini_video_model" env:"GEMINI_VIDEO_MODEL" env-default:"veo-3.0-fast-generate-001"`

	AnthropicAPIKey  string `yaml:"anthropic_api_key"  env:"ANTHROPIC_API_KEY"`
	AnthropicModel   string `yaml:"anthropic_model"    env:"ANTHROPIC_MODEL"    env-default:"claude-3-5-haiku-latest"`
	AnthropicBaseURL string `yaml:"anthropic_base_url" env:"ANTHROPIC_BASE_URL"`

	QwenAPIKey  string `yaml:"qwen_api_key"  env:"QWEN_API_KEY"`
	QwenBaseURL string `yaml:"qwen_base_url" env:"QWEN_BASE_URL"`
	QwenModel   string `yaml:"qwen_model"    env:"QWEN_MODEL"    env-default:"qwen-image"`

	TTSAPIKey  string `yaml:"tts_api_key"  env:"TTS_API_KEY"`
	TTSBaseURL string `yaml:"tts_base_url" env:"TTS_BASE_URL" env-default:"https://texttospeech.googleapis.com"`
	TTSGender  string `yaml:"tts_gender"   env:"TTS_VOICE_GENDER" env-default:"FEMALE"`
}

type DatabaseConfig struct {
	URL      string `yaml:"url"       env:"DATABASE_URL"`
	MaxConns int32  `yaml:"max_conns" env:"DATABASE_MAX_CONNS" env-default:"5"`
}

type GeoIPConfig struct {
	DBPath          string `yaml:"db_path"          env:"GEOIP_DB_PATH"`
	DefaultLanguage string `yaml:"default_language" env:"DEFAULT_TARGET_LANGUAGE" env-default:"english"`
}

type PipelineConfig struct {
	Budget           time.Duration `yaml:"budget"            env:"PIPELINE_BUDGET"            env-default:"110s"`
	AttemptTimeout   time.Duration `yaml:"attempt_timeout"   env:"PIPELINE_ATTEMPT_TIMEOUT"   env-default:"45s"`
	RetryAttempts    int           `yaml:"retry_attempts"    env:"PIPELINE_RETRY_ATTEMPTS"    env-default:"3"`
	RetryBaseDelay   time.Duration `yaml:"retry_base_delay"  env:"PIPELINE_RETRY_BASE_DELAY"  env-default:"500ms"`
	RetryMaxDelay    time.Duration `yaml:"retry_max_delay"   env:"PIPELINE_RETRY_MAX_DELAY"   env-default:"4s"`
	BreakerThreshold int           `yaml:"breaker_threshold" env:"PIPELINE_BREAKER_THRESHOLD" env-default:"5"`
	BreakerCooldown  time.Duration `yaml:"breaker_cooldown"  env:"PIPELINE_BREAKER_COOLDOWN"  env-default:"30s"`
	QueueCapacity    int           `yaml:"queue_capacity"    env:"PIPELINE_QUEUE_CAPACITY"    env-default:"16"`
}

// LoadConfig reads .env (when present), then CONFIG_PATH or ./config.yaml,
// then the environment, and validates the result.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	path := os.Getenv("CONFIG_PATH")
	explicit := path != ""
	if !explicit {
		path = "./config.yaml"
	}
	if _, err := os.Stat(path); err == nil {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config: file %s: %w", path, err)
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}

	if cfg.Storage.Driver == StorageFilesystem && strings.TrimSpace(cfg.Storage.BaseURL) == "" {
		cfg.Storage.BaseURL = fmt.Sprintf("http://localhost:%s/static", cfg.App.Port)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}
	return &cfg, nil
}

// Validate checks cross-field rules the tags cannot express.
func (c *Config) Validate() error {
	var errs []error
	switch c.Storage.Driver {
	case StorageFilesystem:
		if strings.TrimSpace(c.Storage.Path) == "" {
			errs = append(errs, errors.New("storage.path is required for the filesystem driver"))
		}
	case StorageGCS:
		if strings.TrimSpace(c.Storage.Bucket) == "" {
			errs = append(errs, errors.New("storage.bucket is required for the gcs driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver))
	}
	if _, err := url.Parse(c.Storage.BaseURL); err != nil {
		errs = append(errs, fmt.Errorf("storage.base_url: %w", err))
	}
	switch c.Providers.Text {
	case TextProviderGemini, TextProviderAnthropic, TextProviderStatic:
	default:
		errs = append(errs, fmt.Errorf("providers.text %q is not supported", c.Providers.Text))
	}
	switch c.Providers.Image {
	case ImageProviderGemini, ImageProviderQwen:
	default:
		errs = append(errs, fmt.Errorf("providers.image %q is not supported", c.Providers.Image))
	}

	p := c.Pipeline
	if p.Budget <= 0 {
		errs = append(errs, errors.New("pipeline.budget must be positive"))
	}
	if p.AttemptTimeout < 0 || (p.Budget > 0 && p.AttemptTimeout > p.Budget) {
		errs = append(errs, fmt.Errorf("pipeline.attempt_timeout must be within the budget (got %s)", p.AttemptTimeout))
	}
	if p.RetryAttempts < 1 {
		errs = append(errs, fmt.Errorf("pipeline.retry_attempts must be >= 1 (got %d)", p.RetryAttempts))
	}
	if p.RetryBaseDelay < 0 || p.RetryMaxDelay < p.RetryBaseDelay {
		errs = append(errs, errors.New("pipeline.retry_max_delay must be >= retry_base_delay >= 0"))
	}
	if p.BreakerThreshold < 1 {
		errs = append(errs, fmt.Errorf("pipeline.breaker_threshold must be >= 1 (got %d)", p.BreakerThreshold))
	}
	if p.BreakerCooldown <= 0 {
		errs = append(errs, errors.New("pipeline.breaker_cooldown must be positive"))
	}
	if p.QueueCapacity < 0 {
		errs = append(errs, fmt.Errorf("pipeline.queue_capacity must be >= 0 (got %d)", p.QueueCapacity))
	}
	if c.HTTP.RateLimitPerMin <= 0 {
		errs = append(errs, errors.New("http.rate_limit must be positive"))
	}
	return errors.Join(errs...)
}

// IsDevelopment reports whether the service runs in a local environment.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}
