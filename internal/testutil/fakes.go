package testutil

import (
	"context"
	"sync"

	"github.com/dom/stream-games/internal/broadcast"
)

// RecordingAnnouncer keeps every announced text in memory.
type RecordingAnnouncer struct {
	mu       sync.Mutex
	messages []string
	Err      error
	CheckErr error
}

func (a *RecordingAnnouncer) Announce(_ context.Context, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.Err != nil {
		return a.Err
	}
	a.messages = append(a.messages, text)
	return nil
}

func (a *RecordingAnnouncer) Check(_ context.Context) error {
	return a.CheckErr
}

func (a *RecordingAnnouncer) Close() error {
	return nil
}

// Messages returns a copy of everything announced so far.
func (a *RecordingAnnouncer) Messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.messages))
	copy(out, a.messages)
	return out
}

// PublishedEvent is one call captured by RecordingPublisher.
type PublishedEvent struct {
	Pool    broadcast.Pool
	Name    string
	Payload interface{}
}

// RecordingPublisher captures hub publications instead of delivering them.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []PublishedEvent
}

func (p *RecordingPublisher) PublishJSON(pool broadcast.Pool, name string, payload interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, PublishedEvent{Pool: pool, Name: name, Payload: payload})
}

// Events returns the captured events, optionally filtered to one pool.
func (p *RecordingPublisher) Events(pools ...broadcast.Pool) []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []PublishedEvent
	for _, e := range p.events {
		if len(pools) == 0 {
			out = append(out, e)
			continue
		}
		for _, pool := range pools {
			if e.Pool == pool {
				out = append(out, e)
				break
			}
		}
	}
	return out
}

// Names lists event names published to pool, in order.
func (p *RecordingPublisher) Names(pool broadcast.Pool) []string {
	var names []string
	for _, e := range p.Events(pool) {
		names = append(names, e.Name)
	}
	return names
}

func (p *RecordingPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}
