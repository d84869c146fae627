package api

import (
	"context"
	"sync"

	"goadc/host/client"
)

const subBufferSize = 16

// Event is one device notification as delivered to HTTP subscribers.
type Event struct {
	Name string           `json:"name"`
	Args map[string]int64 `json:"args"`
}

func eventOf(m client.Message) Event {
	e := Event{Name: m.Name, Args: make(map[string]int64, len(m.Args))}
	for _, a := range m.Args {
		if a.Bytes == nil {
			e.Args[a.Name] = a.Int
		}
	}
	return e
}

// Bus fans device events out to subscribers. Slow subscribers lose events.
type Bus struct {
	mu   sync.Mutex
	subs map[string]chan Event
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]chan Event)}
}

func (b *Bus) Subscribe(id string) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, subBufferSize)
	b.subs[id] = ch
	return ch
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ch, ok := b.subs[id]; ok {
		delete(b.subs, id)
		close(ch)
	}
}

func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Pump publishes every message from src until ctx is done or src closes.
func (b *Bus) Pump(ctx context.Context, src <-chan client.Message) {
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-src:
			if !ok {
				return
			}
			b.Publish(eventOf(m))
		}
	}
}
