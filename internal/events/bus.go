package events

import (
	"sync"
	"time"
)

// Event describes a job transition published for observers.
type Event struct {
	Type     string    `json:"type"`
	JobID    int64     `json:"job_id"`
	ReportID string    `json:"report_id"`
	Stage    string    `json:"stage,omitempty"`
	Status   string    `json:"status"`
	Message  string    `json:"message,omitempty"`
	Time     time.Time `json:"time"`
}

// Bus provides simple in-process pub/sub for observability.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

func NewBus() *Bus { return &Bus{subs: make(map[chan Event]struct{})} }

// Subscribe registers a buffered listener. Slow listeners miss events.
func (b *Bus) Subscribe() <-chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a listener returned by Subscribe.
func (b *Bus) Unsubscribe(sub <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		if ch == sub {
			delete(b.subs, ch)
			close(ch)
			return
		}
	}
}

func (b *Bus) Publish(ev Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
