package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// MaxMessageRunes caps the raw message accepted from a business owner.
const MaxMessageRunes = 1000

// GenerationRequest is the immutable input of one generation workflow.
type GenerationRequest struct {
	ID             string    `json:"id"`
	Category       Category  `json:"category"`
	RawMessage     string    `json:"rawMessage"`
	TargetLanguage Language  `json:"targetLanguage"`
	CreatedAt      time.Time `json:"createdAt"`
}

// RequestInput carries the caller supplied fields before validation.
type RequestInput struct {
	Category       string
	CategoryOther  string
	RawMessage     string
	TargetLanguage string
}

// NewGenerationRequest builds a request stamped with a fresh ID and creation
// time. The input is normalized (trimmed, lower-cased enums) but not
// validated; Validate reports problems so that the orchestrator can turn them
// into a failed result.
func NewGenerationRequest(in RequestInput, now time.Time) GenerationRequest {
	return GenerationRequest{
		ID:             uuid.NewString(),
		Category:       ParseCategory(in.Category, in.CategoryOther),
		RawMessage:     strings.TrimSpace(in.RawMessage),
		TargetLanguage: ParseLanguage(in.TargetLanguage),
		CreatedAt:      now.UTC(),
	}
}

// Validate checks the presence and enum membership of every required field.
func (r GenerationRequest) Validate() error {
	if err := r.Category.Validate(); err != nil {
		return err
	}
	msg := strings.TrimSpace(r.RawMessage)
	if msg == "" {
		return &ValidationError{Field: "rawMessage", Reason: "is required"}
	}
	if utf8.RuneCountInString(msg) > MaxMessageRunes {
		return &ValidationError{Field: "rawMessage", Reason: "exceeds 1000 characters"}
	}
	if r.TargetLanguage == "" {
		return &ValidationError{Field: "targetLanguage", Reason: "is required"}
	}
	if !r.TargetLanguage.Valid() {
		return &ValidationError{Field: "targetLanguage", Reason: "is not supported"}
	}
	return nil
}

// NeedsTranslation reports whether the target differs from the working
// language of the pipeline.
func (r GenerationRequest) NeedsTranslation() bool {
	return r.TargetLanguage != WorkingLanguage
}
