// Copyright 2026 The Gantry Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"context"
	"sync"
)

// MemoryPublisher records events in memory and fans them out to
// subscribers. It exists for tests: assertions inspect Events, and
// blocking tests receive from Subscribe channels.
type MemoryPublisher struct {
	mu          sync.Mutex
	events      []Event
	subscribers []chan Event
	closed      bool
}

var _ Publisher = (*MemoryPublisher)(nil)

// NewMemoryPublisher creates an empty in-memory publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish records the event and delivers it to every subscriber
// channel. Delivery never blocks: a subscriber that has fallen more
// than the channel buffer behind misses the event.
func (p *MemoryPublisher) Publish(ctx context.Context, event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)
	for _, subscriber := range p.subscribers {
		select {
		case subscriber <- event:
		default:
		}
	}
	return nil
}

// Subscribe returns a channel receiving every event published after
// the call. The channel is buffered (16 events) and closed by Close.
func (p *MemoryPublisher) Subscribe() <-chan Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	subscriber := make(chan Event, 16)
	p.subscribers = append(p.subscribers, subscriber)
	return subscriber
}

// Events returns a copy of all recorded events in publication order.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	events := make([]Event, len(p.events))
	copy(events, p.events)
	return events
}

// EventsOfType returns the recorded events with the given type.
func (p *MemoryPublisher) EventsOfType(eventType string) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()

	var matched []Event
	for _, event := range p.events {
		if event.Type == eventType {
			matched = append(matched, event)
		}
	}
	return matched
}

// Close closes all subscriber channels. Idempotent.
func (p *MemoryPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true
	for _, subscriber := range p.subscribers {
		close(subscriber)
	}
	p.subscribers = nil
	return nil
}
