package events

import (
	"sync"

	"github.com/rs/zerolog"
)

// Dispatcher hands events to a bus from one background goroutine, keeping
// publish order. Publish never blocks; when the queue is full the event is
// dropped and logged.
type Dispatcher struct {
	bus    *EventBus
	queue  chan Event
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
	logger *zerolog.Logger
}

// NewDispatcher starts the delivery goroutine. Close stops it.
func NewDispatcher(bus *EventBus, size int, logger *zerolog.Logger) *Dispatcher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if size <= 0 {
		size = 256
	}
	d := &Dispatcher{
		bus:    bus,
		queue:  make(chan Event, size),
		done:   make(chan struct{}),
		logger: logger,
	}
	go d.run()
	return d
}

func (d *Dispatcher) run() {
	defer close(d.done)
	for e := range d.queue {
		d.bus.Publish(e)
	}
}

// Publish enqueues the event for delivery.
func (d *Dispatcher) Publish(e Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Warn().Str("event_id", e.ID).Str("event_type", e.Type).Msg("dispatcher closed, event dropped")
		return
	}
	select {
	case d.queue <- e:
	default:
		d.logger.Warn().Str("event_id", e.ID).Str("event_type", e.Type).Msg("event queue full, event dropped")
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	<-d.done
}
