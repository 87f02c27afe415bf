package domain

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestGenerationRequestValidate(t *testing.T) {
	tests := []struct {
		name  string
		in    RequestInput
		field string
	}{
		{
			name: "valid tea stall",
			in:   RequestInput{Category: "tea-stall", RawMessage: "chai garam milta hai subah 6 se raat 10 tak", TargetLanguage: "hindi"},
		},
		{
			name: "valid other with description",
			in:   RequestInput{Category: "other", CategoryOther: "flower vendor", RawMessage: "fresh marigold daily", TargetLanguage: "english"},
		},
		{
			name:  "missing category",
			in:    RequestInput{RawMessage: "hello", TargetLanguage: "hindi"},
			field: "category",
		},
		{
			name:  "unknown category",
			in:    RequestInput{Category: "spaceport", RawMessage: "hello", TargetLanguage: "hindi"},
			field: "category",
		},
		{
			name:  "other without description",
			in:    RequestInput{Category: "other", RawMessage: "hello", TargetLanguage: "hindi"},
			field: "categoryOther",
		},
		{
			name:  "blank message",
			in:    RequestInput{Category: "bakery", RawMessage: "   ", TargetLanguage: "hindi"},
			field: "rawMessage",
		},
		{
			name:  "message too long",
			in:    RequestInput{Category: "bakery", RawMessage: strings.Repeat("a", MaxMessageRunes+1), TargetLanguage: "hindi"},
			field: "rawMessage",
		},
		{
			name:  "missing language",
			in:    RequestInput{Category: "bakery", RawMessage: "cakes"},
			field: "targetLanguage",
		},
		{
			name:  "unsupported language",
			in:    RequestInput{Category: "bakery", RawMessage: "cakes", TargetLanguage: "klingon"},
			field: "targetLanguage",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := NewGenerationRequest(tt.in, time.Now())
			err := req.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Validate returned error: %v", err)
				}
				return
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if vErr.Field != tt.field {
				t.Fatalf("Field = %q, want %q", vErr.Field, tt.field)
			}
			if !errors.Is(err, ErrValidation) {
				t.Fatal("expected error to wrap ErrValidation")
			}
		})
	}
}

func TestNewGenerationRequestNormalizes(t *testing.T) {
	req := NewGenerationRequest(RequestInput{
		Category:       " Tea_Stall ",
		RawMessage:     "  chai  ",
		TargetLanguage: "hi-IN",
	}, time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("IST", 19800)))

	if req.Category.Kind != CategoryTeaStall {
		t.Fatalf("Kind = %q", req.Category.Kind)
	}
	if req.RawMessage != "chai" {
		t.Fatalf("RawMessage = %q", req.RawMessage)
	}
	if req.TargetLanguage != LanguageHindi {
		t.Fatalf("TargetLanguage = %q", req.TargetLanguage)
	}
	if req.CreatedAt.Location() != time.UTC {
		t.Fatalf("CreatedAt not UTC: %v", req.CreatedAt)
	}
	if req.ID == "" {
		t.Fatal("expected request ID")
	}
	if !req.NeedsTranslation() {
		t.Fatal("hindi request should need translation")
	}
}

func TestLanguageLocale(t *testing.T) {
	if got := LanguageTamil.Locale(); got != "ta-IN" {
		t.Fatalf("Locale = %q, want ta-IN", got)
	}
	if got := ParseLanguage("or"); got != LanguageOdia {
		t.Fatalf("ParseLanguage(or) = %q", got)
	}
	if got := Language("nope").Locale(); got != "en-IN" {
		t.Fatalf("fallback locale = %q", got)
	}
}

func TestSnippet(t *testing.T) {
	long := strings.Repeat("क", snippetRunes+10)
	got := Snippet(long)
	if n := len([]rune(got)); n != snippetRunes+1 {
		t.Fatalf("snippet runes = %d", n)
	}
	if Snippet("short") != "short" {
		t.Fatal("short strings must be unchanged")
	}
}
