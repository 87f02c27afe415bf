package orchestrator

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// State is the workflow state a progress event belongs to.
type State string

const (
	StateQueued          State = "queued"
	StateValidating      State = "validating"
	StateEnhancing       State = "enhancing_text"
	StateTranslating     State = "translating"
	StateGeneratingMedia State = "generating_media"
	StateAggregating     State = "aggregating"
	StateCompleted       State = "completed"
	StatePartial         State = "partial"
	StateFailed          State = "failed"
)

// IsTerminal reports whether no further events follow s.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StatePartial || s == StateFailed
}

// EventStatus describes what happened to the stage named by an event.
type EventStatus string

const (
	EventStarted   EventStatus = "started"
	EventSucceeded EventStatus = "succeeded"
	EventFailed    EventStatus = "failed"
	EventSkipped   EventStatus = "skipped"
)

// ProgressEvent is one state transition of a workflow. Sequence increases by
// one per event within a request.
type ProgressEvent struct {
	RequestID string      `json:"requestId"`
	Sequence  int         `json:"sequence"`
	State     State       `json:"state"`
	Stage     string      `json:"stage,omitempty"`
	Status    EventStatus `json:"status"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
}

// ProgressObserver receives events synchronously from the pipeline.
// Implementations must return quickly.
type ProgressObserver interface {
	OnProgress(ProgressEvent)
}

// ObserverFunc adapts a function to ProgressObserver.
type ObserverFunc func(ProgressEvent)

func (f ObserverFunc) OnProgress(ev ProgressEvent) { f(ev) }

// NopObserver discards every event.
type NopObserver struct{}

func (NopObserver) OnProgress(ProgressEvent) {}

// emitter numbers and serializes events of one request; media stages report
// from several goroutines at once.
type emitter struct {
	mu        sync.Mutex
	requestID string
	seq       int
	obs       ProgressObserver
	now       func() time.Time
}

func newEmitter(requestID string, obs ProgressObserver, now func() time.Time) *emitter {
	if obs == nil {
		obs = NopObserver{}
	}
	return &emitter{requestID: requestID, obs: obs, now: now}
}

func (e *emitter) emit(state State, stage string, status EventStatus, msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seq++
	e.obs.OnProgress(ProgressEvent{
		RequestID: e.requestID,
		Sequence:  e.seq,
		State:     state,
		Stage:     stage,
		Status:    status,
		Message:   msg,
		Timestamp: e.now().UTC(),
	})
}

const subscriberBuffer = 64

// ProgressReporter fans events out to any number of subscribers. Emission
// never blocks: an event is dropped for a subscriber whose buffer is full.
type ProgressReporter struct {
	mu      sync.Mutex
	subs    map[int]chan ProgressEvent
	nextID  int
	closed  bool
	dropped atomic.Int64
}

func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{subs: make(map[int]chan ProgressEvent)}
}

// OnProgress implements ProgressObserver.
func (r *ProgressReporter) OnProgress(ev ProgressEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	for _, ch := range r.subs {
		select {
		case ch <- ev:
		default:
			r.dropped.Add(1)
		}
	}
}

// Subscribe registers a new consumer. The returned cancel func unregisters
// it and closes the channel. Subscribing to a closed reporter yields a closed
// channel.
func (r *ProgressReporter) Subscribe() (<-chan ProgressEvent, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch := make(chan ProgressEvent, subscriberBuffer)
	if r.closed {
		close(ch)
		return ch, func() {}
	}
	id := r.nextID
	r.nextID++
	r.subs[id] = ch
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if c, ok := r.subs[id]; ok {
				delete(r.subs, id)
				close(c)
			}
		})
	}
}

// Close closes every subscriber channel. Later events are ignored.
func (r *ProgressReporter) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for id, ch := range r.subs {
		close(ch)
		delete(r.subs, id)
	}
}

// Dropped returns how many deliveries were skipped because a subscriber was
// too slow.
func (r *ProgressReporter) Dropped() int64 {
	return r.dropped.Load()
}

// FormatProgress renders an event as a single status line.
func FormatProgress(ev ProgressEvent) string {
	label := string(ev.State)
	if ev.Stage != "" {
		label = ev.Stage
	}
	switch ev.Status {
	case EventStarted:
		return fmt.Sprintf("  ● %s: %s", label, ev.Message)
	case EventSucceeded:
		return fmt.Sprintf("  ✓ %s: %s", label, ev.Message)
	case EventFailed:
		return fmt.Sprintf("  ✗ %s: %s", label, ev.Message)
	case EventSkipped:
		return fmt.Sprintf("  ○ %s: %s", label, ev.Message)
	default:
		return fmt.Sprintf("  ? %s: %s", label, ev.Message)
	}
}
