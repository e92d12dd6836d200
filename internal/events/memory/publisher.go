package memory

import (
	"sync"

	"github.com/NeoArcanjo/ex-banking/internal/interfaces"
)

// Published is one recorded event.
type Published struct {
	Topic string
	Event any
}

// Publisher records events in memory. It is the default publisher wiring
// and doubles as a probe in tests.
type Publisher struct {
	mu     sync.Mutex
	events []Published
}

// NewPublisher returns an empty in-memory publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Publish records the event.
func (p *Publisher) Publish(topic string, event any) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, Published{Topic: topic, Event: event})

	return nil
}

// Events returns a copy of everything published so far.
func (p *Publisher) Events() []Published {
	p.mu.Lock()
	defer p.mu.Unlock()

	copied := make([]Published, len(p.events))
	copy(copied, p.events)

	return copied
}

var _ interfaces.EventPublisher = (*Publisher)(nil)
