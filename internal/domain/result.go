package domain

import (
	"time"
	"unicode/utf8"
)

// Stage names as they appear in steps and errors.
const (
	StageValidation  = "validation"
	StageEnhancement = "enhancement"
	StageTranslation = "translation"
	StageAudio       = "audio"
	StageImage       = "image"
	StageVideo       = "video"
	StageAggregation = "aggregation"
)

// ResultStatus enumerates terminal workflow outcomes.
type ResultStatus string

const (
	StatusCompleted ResultStatus = "completed"
	StatusPartial   ResultStatus = "partial"
	StatusFailed    ResultStatus = "failed"
)

// StepStatus records whether a stage execution succeeded.
type StepStatus string

const (
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
)

const snippetRunes = 160

// ProcessingStep is the append-only record of one stage execution.
type ProcessingStep struct {
	Stage     string     `json:"stage"`
	Adapter   string     `json:"adapter"`
	Status    StepStatus `json:"status"`
	Input     string     `json:"input"`
	Output    string     `json:"output,omitempty"`
	Attempts  int        `json:"attempts"`
	Duration  int64      `json:"durationMs"`
	Timestamp time.Time  `json:"timestamp"`
}

// ProcessedContent holds the text produced along the pipeline.
type ProcessedContent struct {
	OriginalMessage   string `json:"originalMessage"`
	EnhancedMessage   string `json:"enhancedMessage,omitempty"`
	TranslatedMessage string `json:"translatedMessage,omitempty"`
	FinalCaption      string `json:"finalCaption,omitempty"`
}

// GenerationResult is the terminal artifact of one workflow.
type GenerationResult struct {
	Request     GenerationRequest `json:"request"`
	Content     ProcessedContent  `json:"processedContent"`
	MediaAssets []MediaAsset      `json:"mediaAssets"`
	Steps       []ProcessingStep  `json:"processingSteps"`
	Status      ResultStatus      `json:"status"`
	Errors      []ServiceError    `json:"errors"`
	CreatedAt   time.Time         `json:"createdAt"`
	CompletedAt time.Time         `json:"completedAt"`
}

// Asset returns the media asset of the given kind, if present.
func (r *GenerationResult) Asset(kind AssetKind) (MediaAsset, bool) {
	for _, a := range r.MediaAssets {
		if a.Kind == kind {
			return a, true
		}
	}
	return MediaAsset{}, false
}

// ErrorFor returns the error recorded for stage, if any.
func (r *GenerationResult) ErrorFor(stage string) (ServiceError, bool) {
	for _, e := range r.Errors {
		if e.Stage == stage {
			return e, true
		}
	}
	return ServiceError{}, false
}

// Snippet truncates s to a short preview suitable for step history.
func Snippet(s string) string {
	if utf8.RuneCountInString(s) <= snippetRunes {
		return s
	}
	r := []rune(s)
	return string(r[:snippetRunes]) + "…"
}
