package events

import (
	"sync"
	"time"
)

// ReloadEvent announces that a new dataset snapshot is live.
type ReloadEvent struct {
	LoadID        string    `json:"load_id"`
	Trigger       string    `json:"trigger"`
	Source        string    `json:"source"`
	Buildings     int       `json:"buildings"`
	Extinguishers int       `json:"extinguishers"`
	LoadedAt      time.Time `json:"loaded_at"`
}

// Bus provides simple in-process pub/sub for reload notifications.
// Slow subscribers miss events rather than block publishers.
type Bus struct {
	mu   sync.RWMutex
	subs map[chan ReloadEvent]struct{}
}

func NewBus() *Bus { return &Bus{subs: make(map[chan ReloadEvent]struct{})} }

func (b *Bus) Subscribe() <-chan ReloadEvent {
	ch := make(chan ReloadEvent, 16)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe removes and closes a channel returned by Subscribe.
func (b *Bus) Unsubscribe(sub <-chan ReloadEvent) {
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

func (b *Bus) Publish(ev ReloadEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the current subscriber count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
