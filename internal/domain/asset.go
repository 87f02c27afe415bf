package domain

import "time"

// AssetKind enumerates media asset types.
type AssetKind string

const (
	AssetKindAudio AssetKind = "audio"
	AssetKindImage AssetKind = "image"
	AssetKindVideo AssetKind = "video"
)

// Media contract bounds.
const (
	MinAudioSeconds = 10
	MaxAudioSeconds = 20
	MinVideoSeconds = 5
	MaxVideoSeconds = 10

	AudioFormat = "audio/mpeg"
	VideoFormat = "video/mp4"
)

// MediaAsset is a stored artifact produced by a successful media stage.
type MediaAsset struct {
	Kind            AssetKind `json:"kind"`
	URL             string    `json:"url"`
	Key             string    `json:"key"`
	Filename        string    `json:"filename"`
	Bytes           int64     `json:"bytes"`
	Format          string    `json:"format"`
	DurationSeconds int       `json:"durationSeconds,omitempty"`
	Width           int       `json:"width,omitempty"`
	Height          int       `json:"height,omitempty"`
	GeneratedAt     time.Time `json:"generatedAt"`
}

// ClampSeconds bounds a reported duration to [lo, hi].
func ClampSeconds(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
