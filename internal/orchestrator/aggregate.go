package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"studio/internal/domain"
)

const (
	validatorName  = "request-validator"
	aggregatorName = "result-aggregator"
)

// Outcome collects what the pipeline learned about one request before it is
// turned into a result.
type Outcome struct {
	// Validation is set when the request was rejected before any stage ran.
	Validation error
	// Enhancement is nil only when validation failed.
	Enhancement *StageResult
	// Translation is nil when the stage was skipped.
	Translation *StageResult
	Content     domain.ProcessedContent
	Media       []MediaOutcome
}

var mediaOrder = []domain.AssetKind{domain.AssetKindAudio, domain.AssetKindImage, domain.AssetKindVideo}

// Aggregator builds the terminal result from stage outcomes.
type Aggregator struct {
	now func() time.Time
}

func NewAggregator() *Aggregator {
	return &Aggregator{now: time.Now}
}

// Build applies the status rule: failed when validation or enhancement
// failed, completed when every stage succeeded (translation may be skipped),
// partial otherwise. Assets are ordered audio, image, video whatever order
// the stages finished in. An outcome the pipeline could not have produced
// yields an AggregationError.
func (a *Aggregator) Build(req domain.GenerationRequest, steps []domain.ProcessingStep, out Outcome) (*domain.GenerationResult, error) {
	res := &domain.GenerationResult{
		Request:     req,
		Content:     out.Content,
		MediaAssets: []domain.MediaAsset{},
		Steps:       steps,
		Errors:      []domain.ServiceError{},
		CreatedAt:   req.CreatedAt,
		CompletedAt: a.now().UTC(),
	}
	res.Content.OriginalMessage = req.RawMessage

	if out.Validation != nil {
		if out.Enhancement != nil || out.Translation != nil || len(out.Media) > 0 {
			return nil, &domain.AggregationError{Reason: "stages ran after validation failed"}
		}
		res.Content = domain.ProcessedContent{OriginalMessage: req.RawMessage}
		res.Status = domain.StatusFailed
		verr := domain.NewServiceError(validatorName, domain.CodeValidation, out.Validation.Error(), false)
		verr.Stage = domain.StageValidation
		res.Errors = append(res.Errors, *verr)
		return res, nil
	}

	if out.Enhancement == nil {
		return nil, &domain.AggregationError{Reason: "enhancement outcome missing"}
	}
	if !out.Enhancement.OK() {
		if out.Translation != nil || len(out.Media) > 0 {
			return nil, &domain.AggregationError{Reason: "stages ran after enhancement failed"}
		}
		res.Content = domain.ProcessedContent{OriginalMessage: req.RawMessage}
		res.Status = domain.StatusFailed
		res.Errors = append(res.Errors, *out.Enhancement.Err)
		return res, nil
	}

	if strings.TrimSpace(out.Content.EnhancedMessage) == "" || strings.TrimSpace(out.Content.FinalCaption) == "" {
		return nil, &domain.AggregationError{Reason: "no caption after successful enhancement"}
	}
	if out.Translation == nil && req.NeedsTranslation() {
		return nil, &domain.AggregationError{Reason: fmt.Sprintf("translation to %s was not attempted", req.TargetLanguage)}
	}

	degraded := false
	if t := out.Translation; t != nil && !t.OK() {
		degraded = true
		res.Errors = append(res.Errors, *t.Err)
	}

	byKind := make(map[domain.AssetKind]MediaOutcome, len(out.Media))
	for _, m := range out.Media {
		if _, dup := byKind[m.Kind]; dup {
			return nil, &domain.AggregationError{Reason: fmt.Sprintf("duplicate %s outcome", m.Kind)}
		}
		byKind[m.Kind] = m
	}
	for _, kind := range mediaOrder {
		m, ok := byKind[kind]
		if !ok {
			return nil, &domain.AggregationError{Reason: fmt.Sprintf("%s outcome missing", kind)}
		}
		if !m.Result.OK() {
			degraded = true
			res.Errors = append(res.Errors, *m.Result.Err)
			continue
		}
		if m.Asset == nil || m.Asset.URL == "" {
			return nil, &domain.AggregationError{Reason: fmt.Sprintf("successful %s stage without a stored asset", kind)}
		}
		if m.Asset.Kind != kind {
			return nil, &domain.AggregationError{Reason: fmt.Sprintf("%s stage produced a %s asset", kind, m.Asset.Kind)}
		}
		res.MediaAssets = append(res.MediaAssets, *m.Asset)
	}
	if len(byKind) != len(mediaOrder) {
		return nil, &domain.AggregationError{Reason: "unexpected media outcome"}
	}

	res.Status = domain.StatusCompleted
	if degraded {
		res.Status = domain.StatusPartial
	}
	return res, nil
}

// Failed turns an aggregation error into a failed result that keeps the step
// history for diagnosis.
func (a *Aggregator) Failed(req domain.GenerationRequest, steps []domain.ProcessingStep, cause error) *domain.GenerationResult {
	svcErr := domain.NewServiceError(aggregatorName, domain.CodeInternal, cause.Error(), false)
	svcErr.Stage = domain.StageAggregation
	return &domain.GenerationResult{
		Request:     req,
		Content:     domain.ProcessedContent{OriginalMessage: req.RawMessage},
		MediaAssets: []domain.MediaAsset{},
		Steps:       steps,
		Status:      domain.StatusFailed,
		Errors:      []domain.ServiceError{*svcErr},
		CreatedAt:   req.CreatedAt,
		CompletedAt: a.now().UTC(),
	}
}
