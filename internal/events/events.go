package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"techsched/internal/model"
)

const (
	BookingCreated   = "booking.created"
	BookingCancelled = "booking.cancelled"
)

// Event represents a lightweight domain event.
type Event struct {
	ID        string
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// BookingPayload is the JSON body of booking events.
type BookingPayload struct {
	Booking    model.Booking    `json:"booking"`
	Technician model.Technician `json:"technician"`
}

// NewBookingEvent builds an event carrying the booking and its technician.
func NewBookingEvent(eventType string, b model.Booking, t model.Technician) (Event, error) {
	data, err := json.Marshal(BookingPayload{Booking: b, Technician: t})
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Payload:   data,
		CreatedAt: time.Now(),
	}, nil
}

// DecodeBooking parses the payload of a booking event.
func (e Event) DecodeBooking() (*BookingPayload, error) {
	var p BookingPayload
	if err := json.Unmarshal(e.Payload, &p); err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return &p, nil
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	logger      *zerolog.Logger
}

// NewEventBus constructs an empty bus.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &EventBus{subscribers: make(map[string][]EventHandler), logger: logger}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish notifies subscribers of the event type. Handler errors are logged
// and do not stop later handlers.
func (b *EventBus) Publish(event Event) {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	for _, handler := range handlers {
		// Handlers run synchronously; caller decides concurrency model.
		if err := handler(event); err != nil {
			b.logger.Warn().Err(err).Str("event_id", event.ID).Str("event_type", event.Type).Msg("event handler failed")
		}
	}
}
