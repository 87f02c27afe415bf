// Package speech adapts text-to-speech services.
package speech

import (
	"context"
	"math"
	"strings"
	"unicode/utf8"

	"studio/internal/domain"
)

type Request struct {
	Text     string
	Language domain.Language
}

// Clip is synthesized audio in domain.AudioFormat.
type Clip struct {
	Format          string
	DurationSeconds int
	Data            []byte
}

// Synthesizer voices a caption as a 10 to 20 second mp3 clip.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, req Request) (*Clip, error)
}

const (
	wordsPerSecond = 2.5
	// runesPerWord approximates word length for scripts without spaces.
	runesPerWord = 5
	maxRate      = 2.0
)

// plan is the speaking rate and trailing silence needed to land the spoken
// caption inside the contract window.
type plan struct {
	text    string
	rate    float64
	pad     int
	seconds int
}

func planDuration(text string) plan {
	text = strings.Join(strings.Fields(text), " ")
	budget := float64(domain.MaxAudioSeconds-1) * wordsPerSecond * maxRate
	for estimateWords(text) > budget {
		cut := strings.LastIndex(text, " ")
		if cut <= 0 {
			r := []rune(text)
			text = string(r[:int(budget*runesPerWord)])
			break
		}
		text = text[:cut]
	}

	spoken := estimateWords(text) / wordsPerSecond
	p := plan{text: text, rate: 1}
	switch {
	case spoken > domain.MaxAudioSeconds-1:
		p.rate = math.Min(spoken/float64(domain.MaxAudioSeconds-1), maxRate)
		spoken /= p.rate
	case spoken < domain.MinAudioSeconds:
		p.pad = int(math.Ceil(domain.MinAudioSeconds - spoken))
		spoken += float64(p.pad)
	}
	p.seconds = domain.ClampSeconds(int(math.Round(spoken)), domain.MinAudioSeconds, domain.MaxAudioSeconds)
	return p
}

func estimateWords(text string) float64 {
	words := float64(len(strings.Fields(text)))
	if alt := float64(utf8.RuneCountInString(text)) / runesPerWord; alt > words {
		words = alt
	}
	return words
}
