package progress

import (
	"sync"
	"time"
)

type State string

const (
	StateIdle          State = "idle"
	StateIntrospecting State = "introspecting"
	StateGenerating    State = "generating"
	StateExecuting     State = "executing"
	StateSynthesizing  State = "synthesizing"
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Event reports one transition of the per-database state machine or one
// processed record.
type Event struct {
	RunID    string    `json:"run_id"`
	DBID     string    `json:"db_id"`
	State    State     `json:"state"`
	RecordID *int      `json:"record_id,omitempty"`
	Index    int       `json:"index"`
	Total    int       `json:"total"`
	Outcome  string    `json:"outcome,omitempty"`
	Message  string    `json:"message,omitempty"`
	Time     time.Time `json:"time"`
}

// Observer receives events synchronously; implementations must not block.
type Observer interface {
	Observe(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Multi fans an event out to every non-nil observer.
type Multi []Observer

func (m Multi) Observe(e Event) {
	for _, o := range m {
		if o != nil {
			o.Observe(e)
		}
	}
}

// Recorder keeps every event; useful in tests and for run summaries.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Observe(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// States returns the distinct consecutive states seen for dbID.
func (r *Recorder) States(dbID string) []State {
	var states []State
	for _, e := range r.Events() {
		if e.DBID != dbID {
			continue
		}
		if len(states) == 0 || states[len(states)-1] != e.State {
			states = append(states, e.State)
		}
	}
	return states
}
