package handlers

import (
	"sync"
	"time"

	"studio/internal/domain"
	"studio/internal/orchestrator"
)

// Tracker keeps per-generation progress for HTTP callers. Terminal entries
// are evicted ttl after they finish.
type Tracker struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]*Generation
}

func NewTracker(ttl time.Duration) *Tracker {
	return &Tracker{ttl: ttl, now: time.Now, entries: make(map[string]*Generation)}
}

// Track registers a new generation and returns its observer.
func (t *Tracker) Track(req domain.GenerationRequest) *Generation {
	g := &Generation{
		id:       req.ID,
		reporter: orchestrator.NewProgressReporter(),
		tracker:  t,
	}
	t.mu.Lock()
	t.sweep()
	t.entries[req.ID] = g
	t.mu.Unlock()
	return g
}

// Get returns the generation with id, or nil when unknown or expired.
func (t *Tracker) Get(id string) *Generation {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sweep()
	return t.entries[id]
}

// Forget drops a generation that was never admitted.
func (t *Tracker) Forget(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if g, ok := t.entries[id]; ok {
		g.reporter.Close()
		delete(t.entries, id)
	}
}

// Len reports how many generations are held.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *Tracker) sweep() {
	now := t.now()
	for id, g := range t.entries {
		if g.expired(now) {
			delete(t.entries, id)
		}
	}
}

// Generation is the HTTP view of one workflow. It implements
// orchestrator.ProgressObserver.
type Generation struct {
	id       string
	reporter *orchestrator.ProgressReporter
	tracker  *Tracker

	mu       sync.Mutex
	events   []orchestrator.ProgressEvent
	result   *domain.GenerationResult
	err      error
	done     bool
	finished time.Time
}

func (g *Generation) ID() string { return g.id }

// OnProgress records ev and forwards it to live subscribers.
func (g *Generation) OnProgress(ev orchestrator.ProgressEvent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return
	}
	g.events = append(g.events, ev)
	g.reporter.OnProgress(ev)
}

// Finish stores the terminal outcome and closes every subscription. Its
// signature matches the Sequencer.Enqueue callback.
func (g *Generation) Finish(res *domain.GenerationResult, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.done {
		return
	}
	g.result, g.err, g.done = res, err, true
	g.finished = g.tracker.now()
	g.reporter.Close()
}

// Subscribe returns the events seen so far and a channel carrying the rest.
// The channel is closed once the generation finishes.
func (g *Generation) Subscribe() ([]orchestrator.ProgressEvent, <-chan orchestrator.ProgressEvent, func()) {
	g.mu.Lock()
	defer g.mu.Unlock()
	history := append([]orchestrator.ProgressEvent(nil), g.events...)
	ch, cancel := g.reporter.Subscribe()
	return history, ch, cancel
}

// Snapshot is a copy of a generation's state.
type Snapshot struct {
	Events []orchestrator.ProgressEvent
	Result *domain.GenerationResult
	Err    error
	Done   bool
}

// Snapshot returns the recorded events and, once finished, the outcome.
func (g *Generation) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return Snapshot{
		Events: append([]orchestrator.ProgressEvent(nil), g.events...),
		Result: g.result,
		Err:    g.err,
		Done:   g.done,
	}
}

// Phase summarizes a pending generation as "queued" or "running".
func (g *Generation) Phase() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, ev := range g.events {
		if ev.State != orchestrator.StateQueued {
			return "running"
		}
	}
	return "queued"
}

func (g *Generation) expired(now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.done && g.tracker.ttl > 0 && now.Sub(g.finished) >= g.tracker.ttl
}
