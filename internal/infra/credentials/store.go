// Package credentials keeps provider API keys in Postgres so operators can
// rotate them without redeploying.
package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"studio/internal/infra"
)

const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderQwen      = "qwen"
	ProviderTTS       = "tts"
)

// Providers lists every key the store accepts.
var Providers = []string{ProviderGemini, ProviderAnthropic, ProviderQwen, ProviderTTS}

// Lookup is the read side used while wiring adapters.
type Lookup interface {
	Token(ctx context.Context, provider string) (string, error)
}

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Migrate creates the backing table when missing.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.sql.Exec(ctx, Schema)
	return err
}

// Token returns the stored key for provider, or "" when none is stored.
func (s *Store) Token(ctx context.Context, provider string) (string, error) {
	var token string
	if err := s.sql.QueryRow(ctx, qSelectProviderKey, provider).Scan(&token); err != nil {
		if infra.IsNoRows(err) {
			return "", nil
		}
		return "", fmt.Errorf("credentials: load %s: %w", provider, err)
	}
	return strings.TrimSpace(token), nil
}

// SetToken stores or replaces the key for a known provider.
func (s *Store) SetToken(ctx context.Context, provider, token string, props map[string]any) error {
	if !Known(provider) {
		return fmt.Errorf("credentials: unknown provider %q", provider)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return fmt.Errorf("credentials: %s key is required", provider)
	}
	if props == nil {
		props = map[string]any{}
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return err
	}
	if _, err := s.sql.Exec(ctx, qUpsertProviderKey, provider, token, raw); err != nil {
		return fmt.Errorf("credentials: store %s: %w", provider, err)
	}
	return nil
}

// Known reports whether provider is one the store accepts.
func Known(provider string) bool {
	for _, p := range Providers {
		if p == provider {
			return true
		}
	}
	return false
}

// Resolve prefers the configured key and falls back to the lookup. A nil
// lookup or a lookup error yields the configured value unchanged.
func Resolve(ctx context.Context, lookup Lookup, provider, configured string) (string, error) {
	if v := strings.TrimSpace(configured); v != "" || lookup == nil {
		return v, nil
	}
	return lookup.Token(ctx, provider)
}
