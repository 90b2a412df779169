// Package eventbus is a small in-memory fanout used to decouple the
// reminder engine from presentation concerns (status lines, digest
// counters, log mirrors).
package eventbus

import (
	"sync"
	"sync/atomic"
	"time"
)

// Topics published by remindbot components.
const (
	TopicReminderArmed   = "reminder.armed"
	TopicReminderFired   = "reminder.fired"
	TopicReminderError   = "reminder.error"
	TopicReminderSkipped = "reminder.skipped"
	TopicDigestSent      = "digest.sent"
)

// Event is a lightweight, in-memory signal.
//
// Contract:
//   - Publish MUST be non-blocking.
//   - Slow subscribers may drop events (bounded backpressure).
//
// Data should be small and ideally JSON-serializable.
type Event struct {
	Topic string
	Time  time.Time
	Data  any
}

type Bus interface {
	Publish(e Event)
	// Subscribe delivers every event. Topics, when given, restrict
	// delivery to the named topics.
	Subscribe(buffer int, topics ...string) (ch <-chan Event, unsubscribe func())
}

// New returns a fanout bus. It owns no background goroutines.
func New() Bus {
	return &memBus{subs: map[uint64]*subscriber{}}
}

type subscriber struct {
	ch     chan Event
	topics map[string]struct{} // nil means all topics
}

func (s *subscriber) wants(topic string) bool {
	if s.topics == nil {
		return true
	}
	_, ok := s.topics[topic]
	return ok
}

type memBus struct {
	mu   sync.RWMutex
	subs map[uint64]*subscriber
	seq  atomic.Uint64
}

func (b *memBus) Publish(e Event) {
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	// Snapshot subscribers so Publish doesn't hold locks while sending.
	b.mu.RLock()
	targets := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		if s.wants(e.Topic) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	for _, s := range targets {
		// Non-blocking delivery; a concurrent Unsubscribe may close the
		// channel, so recover from the send panic.
		func() {
			defer func() { _ = recover() }()
			select {
			case s.ch <- e:
			default:
			}
		}()
	}
}

func (b *memBus) Subscribe(buffer int, topics ...string) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 8
	}
	sub := &subscriber{ch: make(chan Event, buffer)}
	if len(topics) > 0 {
		sub.topics = make(map[string]struct{}, len(topics))
		for _, t := range topics {
			sub.topics[t] = struct{}{}
		}
	}
	id := b.seq.Add(1)

	b.mu.Lock()
	b.subs[id] = sub
	b.mu.Unlock()

	var once sync.Once
	unsub := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			// Safe because Publish recovers from send panics.
			close(sub.ch)
		})
	}
	return sub.ch, unsub
}
