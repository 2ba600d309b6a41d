package task

import (
	"sync"

	"dataset-manager/internal/logging"
)

// Event is one progress update. Every processed file produces an event, and
// a final event carries the terminal status.
type Event struct {
	Snapshot
}

const subscriberBuffer = 256

// eventBus fans task events out to subscribers. Slow subscribers lose
// intermediate events rather than stalling the runner; the current state is
// always available from Runner.Get.
type eventBus struct {
	mu   sync.Mutex
	next int
	subs map[int]chan Event
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[int]chan Event)}
}

// subscribe registers a new listener. The returned cancel func must be
// called to release the channel.
func (b *eventBus) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, subscriberBuffer)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (b *eventBus) publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			logging.Debug("Dropping task event for slow subscriber %d (task %s)", id, ev.ID)
		}
	}
}
