package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"studio/internal/domain"
)

// Runner executes one workflow to completion.
type Runner interface {
	Run(ctx context.Context, req domain.GenerationRequest, obs ProgressObserver) *domain.GenerationResult
}

// Stats is a point-in-time view of the admission queue.
type Stats struct {
	Running  int `json:"running"`
	Queued   int `json:"queued"`
	Capacity int `json:"capacity"`
}

// Sequencer admits one workflow at a time. A request's place in line is
// fixed when it is admitted and the slot is handed directly to the head of
// the line, so waiters run in arrival order. Once capacity requests are
// waiting further ones are rejected with domain.ErrCapacity.
type Sequencer struct {
	runner   Runner
	capacity int
	running  atomic.Int64
	log      zerolog.Logger

	mu      sync.Mutex
	busy    bool
	waiters []*waiter
}

// waiter is one queued request. ready is closed when the slot is handed to
// it; granted records the hand-off under Sequencer.mu.
type waiter struct {
	ready   chan struct{}
	granted bool
}

// ticket is the result of admission: either the slot itself (w == nil) or a
// place in line.
type ticket struct {
	w *waiter
}

func NewSequencer(runner Runner, capacity int, log zerolog.Logger) *Sequencer {
	if capacity < 0 {
		capacity = 0
	}
	return &Sequencer{
		runner:   runner,
		capacity: capacity,
		log:      log,
	}
}

// Submit blocks until req has run and returns its result. A caller whose ctx
// ends while waiting leaves the queue with ctx.Err(). The slot is released
// only once the runner has returned a terminal result.
func (s *Sequencer) Submit(ctx context.Context, req domain.GenerationRequest, obs ProgressObserver) (*domain.GenerationResult, error) {
	if obs == nil {
		obs = NopObserver{}
	}
	t, err := s.admit(req, obs)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, req, obs, t)
}

// Enqueue performs admission synchronously and runs req on its own
// goroutine. It returns domain.ErrCapacity when the queue is full; otherwise
// done is called exactly once with what Submit would have returned. Requests
// enqueued one after another run in that order.
func (s *Sequencer) Enqueue(ctx context.Context, req domain.GenerationRequest, obs ProgressObserver, done func(*domain.GenerationResult, error)) error {
	if obs == nil {
		obs = NopObserver{}
	}
	t, err := s.admit(req, obs)
	if err != nil {
		return err
	}
	go func() {
		res, err := s.run(ctx, req, obs, t)
		if done != nil {
			done(res, err)
		}
	}()
	return nil
}

// admit takes the slot when it is free and nobody is waiting, or appends req
// to the line. Both decisions are made under one lock.
func (s *Sequencer) admit(req domain.GenerationRequest, obs ProgressObserver) (ticket, error) {
	s.mu.Lock()
	if !s.busy && len(s.waiters) == 0 {
		s.busy = true
		s.mu.Unlock()
		return ticket{}, nil
	}
	if len(s.waiters) >= s.capacity {
		s.mu.Unlock()
		s.log.Warn().Str("request_id", req.ID).Int("capacity", s.capacity).Msg("generation queue full")
		return ticket{}, domain.ErrCapacity
	}
	w := &waiter{ready: make(chan struct{})}
	s.waiters = append(s.waiters, w)
	s.mu.Unlock()

	obs.OnProgress(ProgressEvent{
		RequestID: req.ID,
		State:     StateQueued,
		Status:    EventStarted,
		Message:   "waiting for the current generation to finish",
		Timestamp: req.CreatedAt,
	})
	return ticket{w: w}, nil
}

func (s *Sequencer) run(ctx context.Context, req domain.GenerationRequest, obs ProgressObserver, t ticket) (*domain.GenerationResult, error) {
	if t.w != nil {
		if err := s.wait(ctx, t.w); err != nil {
			s.log.Info().Str("request_id", req.ID).Err(err).Msg("left generation queue")
			return nil, err
		}
	}
	defer s.release()

	s.running.Add(1)
	defer s.running.Add(-1)
	return s.runner.Run(ctx, req, obs), nil
}

// wait blocks until w is handed the slot or ctx ends. A waiter canceled after
// the hand-off passes the slot on to the next in line.
func (s *Sequencer) wait(ctx context.Context, w *waiter) error {
	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
	}
	s.mu.Lock()
	if w.granted {
		s.mu.Unlock()
		s.release()
		return ctx.Err()
	}
	for i, other := range s.waiters {
		if other == w {
			s.waiters = append(s.waiters[:i], s.waiters[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	return ctx.Err()
}

// release hands the slot to the head of the line, or frees it.
func (s *Sequencer) release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.waiters) == 0 {
		s.busy = false
		return
	}
	next := s.waiters[0]
	s.waiters[0] = nil
	s.waiters = s.waiters[1:]
	next.granted = true
	close(next.ready)
}

// Stats reports the number of running and waiting workflows.
func (s *Sequencer) Stats() Stats {
	s.mu.Lock()
	queued := len(s.waiters)
	s.mu.Unlock()
	return Stats{
		Running:  int(s.running.Load()),
		Queued:   queued,
		Capacity: s.capacity,
	}
}
