package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path"

	"studio/internal/domain"
	"studio/internal/providers"
	"studio/internal/providers/image"
	"studio/internal/providers/speech"
	"studio/internal/providers/video"
	"studio/internal/storage"
)

// MediaOutcome is the result of one media sub-stage. Asset is set only when
// the stage succeeded.
type MediaOutcome struct {
	Kind   domain.AssetKind
	Result StageResult
	Asset  *domain.MediaAsset
}

// rendered is provider output that passed the contract checks and is ready
// to publish.
type rendered struct {
	data    []byte
	format  string
	seconds int
	width   int
	height  int
}

type mediaJob struct {
	kind     domain.AssetKind
	stage    string
	adapter  string
	input    string
	generate func(ctx context.Context) (*rendered, error)
}

func (p *Pipeline) mediaJobs(req domain.GenerationRequest, caption string, voice domain.Language) []mediaJob {
	a := p.adapters
	return []mediaJob{
		{
			kind:    domain.AssetKindAudio,
			stage:   domain.StageAudio,
			adapter: a.Speech.Name(),
			input:   caption,
			generate: func(ctx context.Context) (*rendered, error) {
				clip, err := a.Speech.Synthesize(ctx, speech.Request{Text: caption, Language: voice})
				if err != nil {
					return nil, err
				}
				if clip == nil || len(clip.Data) == 0 {
					return nil, providers.ContractViolation(a.Speech.Name(), "empty audio clip")
				}
				if clip.Format != domain.AudioFormat {
					return nil, providers.ContractViolation(a.Speech.Name(), fmt.Sprintf("unsupported audio format %q", clip.Format))
				}
				return &rendered{
					data:    clip.Data,
					format:  clip.Format,
					seconds: domain.ClampSeconds(clip.DurationSeconds, domain.MinAudioSeconds, domain.MaxAudioSeconds),
				}, nil
			},
		},
		{
			kind:    domain.AssetKindImage,
			stage:   domain.StageImage,
			adapter: a.Image.Name(),
			input:   caption,
			generate: func(ctx context.Context) (*rendered, error) {
				img, err := a.Image.Generate(ctx, image.GenerateRequest{Caption: caption, Category: req.Category, RequestID: req.ID})
				if err != nil {
					return nil, err
				}
				if img == nil || len(img.Data) == 0 {
					return nil, providers.ContractViolation(a.Image.Name(), "empty image")
				}
				if img.Width <= 0 || img.Width != img.Height {
					return nil, providers.ContractViolation(a.Image.Name(), fmt.Sprintf("image is %dx%d, want square", img.Width, img.Height))
				}
				return &rendered{data: img.Data, format: img.Format, width: img.Width, height: img.Height}, nil
			},
		},
		{
			kind:    domain.AssetKindVideo,
			stage:   domain.StageVideo,
			adapter: a.Video.Name(),
			input:   caption,
			generate: func(ctx context.Context) (*rendered, error) {
				clip, err := a.Video.Generate(ctx, video.GenerateRequest{Caption: caption, Category: req.Category, RequestID: req.ID})
				if err != nil {
					return nil, err
				}
				if clip == nil || len(clip.Data) == 0 {
					return nil, providers.ContractViolation(a.Video.Name(), "empty video")
				}
				if clip.Format != domain.VideoFormat {
					return nil, providers.ContractViolation(a.Video.Name(), fmt.Sprintf("unsupported video format %q", clip.Format))
				}
				return &rendered{
					data:    clip.Data,
					format:  clip.Format,
					seconds: domain.ClampSeconds(clip.DurationSeconds, domain.MinVideoSeconds, domain.MaxVideoSeconds),
					width:   clip.Width,
					height:  clip.Height,
				}, nil
			},
		},
	}
}

// runMedia generates and publishes one asset as a single stage. Generated
// bytes survive across attempts so a failed upload is retried without
// regenerating.
func (p *Pipeline) runMedia(ctx context.Context, exec *StageExecutor, em *emitter, req domain.GenerationRequest, job mediaJob) MediaOutcome {
	em.emit(StateGeneratingMedia, job.stage, EventStarted, fmt.Sprintf("generating %s", job.kind))

	var cache latch[*rendered]
	asset, res := runStage(ctx, exec, job.stage, job.adapter, job.input, func(actx context.Context) (*domain.MediaAsset, error) {
		r, ok := cache.load()
		if !ok {
			out, err := job.generate(actx)
			if err != nil {
				return nil, err
			}
			cache.store(actx, out)
			r = out
		}
		key := storage.AssetKey(req.ID, string(job.kind), r.format, p.now())
		url, err := p.adapters.Store.Put(actx, key, r.data, r.format)
		if err != nil {
			return nil, p.storageError(err)
		}
		return &domain.MediaAsset{
			Kind:            job.kind,
			URL:             url,
			Key:             key,
			Filename:        path.Base(key),
			Bytes:           int64(len(r.data)),
			Format:          r.format,
			DurationSeconds: r.seconds,
			Width:           r.width,
			Height:          r.height,
			GeneratedAt:     p.now().UTC(),
		}, nil
	}, func(a *domain.MediaAsset) string { return a.URL })

	out := MediaOutcome{Kind: job.kind, Result: res}
	if res.OK() {
		out.Asset = asset
		em.emit(StateGeneratingMedia, job.stage, EventSucceeded, fmt.Sprintf("%s ready", job.kind))
	} else {
		em.emit(StateGeneratingMedia, job.stage, EventFailed, res.Err.Message)
	}
	return out
}

func (p *Pipeline) storageError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if svcErr, ok := domain.AsServiceError(err); ok {
		return svcErr
	}
	return domain.NewServiceError(p.adapters.Store.Name(), domain.CodeStorage, err.Error(), true)
}
