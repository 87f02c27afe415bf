package speech

import (
	"bytes"
	"context"

	"studio/internal/domain"
)

const syntheticProviderName = "synthetic-speech"

// MPEG-1 Layer III, 128 kbit/s, 44.1 kHz, no padding, no CRC.
var silentFrameHeader = []byte{0xFF, 0xFB, 0x90, 0x44}

const (
	frameBytes      = 417
	framesPerSecond = 44100.0 / 1152.0
)

// SyntheticSynthesizer emits silent mp3 frames whose length follows the
// caption. It keeps the pipeline runnable without speech credentials.
type SyntheticSynthesizer struct{}

func NewSyntheticSynthesizer() *SyntheticSynthesizer {
	return &SyntheticSynthesizer{}
}

func (s *SyntheticSynthesizer) Name() string { return syntheticProviderName }

func (s *SyntheticSynthesizer) Synthesize(ctx context.Context, req Request) (*Clip, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := planDuration(req.Text)
	return &Clip{
		Format:          domain.AudioFormat,
		DurationSeconds: p.seconds,
		Data:            silentMP3(p.seconds),
	}, nil
}

func silentMP3(seconds int) []byte {
	frames := int(float64(seconds)*framesPerSecond + 0.5)
	frame := make([]byte, frameBytes)
	copy(frame, silentFrameHeader)
	var buf bytes.Buffer
	buf.Grow(frames * frameBytes)
	for i := 0; i < frames; i++ {
		buf.Write(frame)
	}
	return buf.Bytes()
}

var _ Synthesizer = (*SyntheticSynthesizer)(nil)
