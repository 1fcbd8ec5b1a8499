package core

import "sync"

// listenerBuffer is the per-subscriber channel depth. A subscriber that
// falls further behind misses intermediate snapshots, never the latest one
// once it drains.
const listenerBuffer = 16

// broadcaster fans snapshots out to subscribers without blocking the sender.
type broadcaster struct {
	mu        sync.Mutex
	next      int
	listeners map[int]chan Snapshot
}

func newBroadcaster() *broadcaster {
	return &broadcaster{listeners: make(map[int]chan Snapshot)}
}

// subscribe registers a listener primed with the current snapshot.
func (b *broadcaster) subscribe(current func() Snapshot) (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, listenerBuffer)

	b.mu.Lock()
	ch <- current()
	id := b.next
	b.next++
	b.listeners[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.listeners[id]; ok {
				delete(b.listeners, id)
				close(ch)
			}
		})
	}
	return ch, cancel
}

// publish takes the snapshot under the broadcaster lock so concurrent
// publishers deliver in the order their snapshots were taken.
func (b *broadcaster) publish(current func() Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s := current()
	for _, ch := range b.listeners {
		select {
		case ch <- s:
		default:
			// Slow listener: drop the oldest pending snapshot and retry once.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

func (b *broadcaster) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for id, ch := range b.listeners {
		close(ch)
		delete(b.listeners, id)
	}
}
