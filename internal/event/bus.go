package event

import (
	"log/slog"
	"slices"
	"sync"
)

const defaultChannelSize = 64

// Bus is an event bus.
type Bus struct {
	consumers map[Name][]chan Event
	mu        sync.Mutex
	logger    *slog.Logger
}

// NewBus returns a new event bus.
func NewBus(logger *slog.Logger) *Bus {
	return &Bus{
		consumers: make(map[Name][]chan Event),
		logger:    logger,
	}
}

// Register registers a consumer for the given events.
func (b *Bus) Register(names ...Name) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, defaultChannelSize)
	for _, name := range names {
		b.consumers[name] = append(b.consumers[name], ch)
	}
	return ch
}

// Deregister deregisters a consumer and closes its channel.
func (b *Bus) Deregister(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	var found chan Event
	for name, chans := range b.consumers {
		b.consumers[name] = slices.DeleteFunc(chans, func(other chan Event) bool {
			if (<-chan Event)(other) == ch {
				found = other
				return true
			}
			return false
		})
	}

	if found != nil {
		close(found)
	}
}

// Send sends an event to all registered consumers.
func (b *Bus) Send(evt Event) {
	// The mutex is needed to ensure the backing array of b.consumers cannot be
	// modified under our feet.
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.consumers[evt.name()] {
		select {
		case ch <- evt:
		default:
			b.logger.Warn("Event dropped", "name", evt.name())
		}
	}
}
