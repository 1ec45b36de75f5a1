package events

import (
	"context"
	"sync"
)

// Bus is an in-process Broadcaster for embedded deployments and tests.
// Delivery is per-subscriber FIFO; a subscriber that falls behind its
// buffer loses events, the same contract the pub/sub path has.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[int]chan Event
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]chan Event)}
}

// Subscribe registers for one auction's events. The returned cancel
// func closes the channel; callers must stop reading after cancel.
func (b *Bus) Subscribe(auctionID string, buf int) (<-chan Event, func()) {
	if buf <= 0 {
		buf = 16
	}
	ch := make(chan Event, buf)

	b.mu.Lock()
	id := b.next
	b.next++
	if b.subs[auctionID] == nil {
		b.subs[auctionID] = make(map[int]chan Event)
	}
	b.subs[auctionID][id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[auctionID], id)
			if len(b.subs[auctionID]) == 0 {
				delete(b.subs, auctionID)
			}
			close(ch)
			b.mu.Unlock()
		})
	}
	return ch, cancel
}

// Publish sends under the read lock so a concurrent cancel cannot close
// a channel mid-send. Sends never block, they drop instead.
func (b *Bus) Publish(_ context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs[ev.AuctionID] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}
