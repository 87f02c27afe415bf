package resilience

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"studio/internal/domain"
)

// State is the circuit state of one adapter.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// BreakerConfig controls when a breaker opens and how long it stays open.
type BreakerConfig struct {
	FailureThreshold int
	Cooldown         time.Duration
}

// DefaultBreakerConfig opens after five consecutive failures for 30 seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, Cooldown: 30 * time.Second}
}

// Snapshot is a point-in-time view of a breaker.
type Snapshot struct {
	Adapter             string    `json:"adapter"`
	State               State     `json:"state"`
	ConsecutiveFailures int       `json:"consecutiveFailures"`
	OpenedAt            time.Time `json:"openedAt,omitzero"`
	RetryAt             time.Time `json:"retryAt,omitzero"`
}

// Breaker tracks consecutive terminal failures of one adapter.
type Breaker struct {
	name string
	cfg  BreakerConfig
	now  func() time.Time
	log  zerolog.Logger

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	trial    bool
}

// Allow reports whether a call may proceed. While open it returns a
// non-retryable circuit_open error; after the cooldown it admits exactly one
// trial call and rejects the rest until that trial is recorded.
func (b *Breaker) Allow() *domain.ServiceError {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.Cooldown {
			return b.openError()
		}
		b.state = StateHalfOpen
		b.trial = true
		b.log.Info().Str("adapter", b.name).Msg("circuit half-open, admitting trial call")
		return nil
	default:
		if b.trial {
			return b.openError()
		}
		b.trial = true
		return nil
	}
}

func (b *Breaker) openError() *domain.ServiceError {
	retryAt := b.openedAt.Add(b.cfg.Cooldown)
	msg := fmt.Sprintf("circuit open until %s", retryAt.UTC().Format(time.RFC3339))
	return domain.NewServiceError(b.name, domain.CodeCircuitOpen, msg, false)
}

// Success closes the breaker and resets the failure count.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state != StateClosed {
		b.log.Info().Str("adapter", b.name).Msg("circuit closed")
	}
	b.state = StateClosed
	b.failures = 0
	b.trial = false
	b.openedAt = time.Time{}
}

// Failure counts one terminal failure. A failed trial reopens the breaker
// immediately.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.trial = false
	if b.state == StateHalfOpen || b.failures >= b.cfg.FailureThreshold {
		if b.state != StateOpen {
			b.log.Warn().
				Str("adapter", b.name).
				Int("consecutive_failures", b.failures).
				Dur("cooldown", b.cfg.Cooldown).
				Msg("circuit opened")
		}
		b.state = StateOpen
		b.openedAt = b.now()
	}
}

// Release gives back a half-open trial slot without counting an outcome,
// used when the caller abandoned the call.
func (b *Breaker) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.state == StateHalfOpen {
		b.trial = false
	}
}

// Snapshot returns the current breaker state.
func (b *Breaker) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := Snapshot{Adapter: b.name, State: b.state, ConsecutiveFailures: b.failures}
	if b.state == StateOpen {
		s.OpenedAt = b.openedAt
		s.RetryAt = b.openedAt.Add(b.cfg.Cooldown)
	}
	return s
}

// Registry owns one breaker per adapter name for the life of the process.
type Registry struct {
	cfg BreakerConfig
	log zerolog.Logger
	now func() time.Time

	mu       sync.Mutex
	breakers map[string]*Breaker
}

func NewRegistry(cfg BreakerConfig, log zerolog.Logger) *Registry {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultBreakerConfig().FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultBreakerConfig().Cooldown
	}
	return &Registry{
		cfg:      cfg,
		log:      log,
		now:      time.Now,
		breakers: make(map[string]*Breaker),
	}
}

// Breaker returns the breaker for adapter, creating it closed on first use.
func (r *Registry) Breaker(adapter string) *Breaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.breakers[adapter]
	if !ok {
		b = &Breaker{
			name:  adapter,
			cfg:   r.cfg,
			now:   r.now,
			log:   r.log,
			state: StateClosed,
		}
		r.breakers[adapter] = b
	}
	return b
}

// Snapshot lists every known breaker sorted by adapter name.
func (r *Registry) Snapshot() []Snapshot {
	r.mu.Lock()
	list := make([]*Breaker, 0, len(r.breakers))
	for _, b := range r.breakers {
		list = append(list, b)
	}
	r.mu.Unlock()

	out := make([]Snapshot, 0, len(list))
	for _, b := range list {
		out = append(out, b.Snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Adapter < out[j].Adapter })
	return out
}
