package events

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techsched/internal/model"
)

func sampleEvent(t *testing.T, eventType string) Event {
	t.Helper()
	b := model.Booking{ID: 7, TechnicianID: 1, BookingTime: time.Date(2025, 10, 15, 10, 0, 0, 0, time.UTC), Status: model.StatusBooked}
	tech := model.Technician{ID: 1, Name: "Nicolas Woollett", Type: "Plumber", WorkingHoursStart: 9, WorkingHoursEnd: 17, IsActive: true}
	e, err := NewBookingEvent(eventType, b, tech)
	require.NoError(t, err)
	return e
}

func TestEventBus_PublishToMatchingSubscribers(t *testing.T) {
	bus := NewEventBus(nil)

	var created, cancelled []string
	bus.Subscribe(BookingCreated, func(e Event) error {
		created = append(created, e.ID)
		return errors.New("handler failure is logged")
	})
	bus.Subscribe(BookingCreated, func(e Event) error {
		created = append(created, e.ID)
		return nil
	})
	bus.Subscribe(BookingCancelled, func(e Event) error {
		cancelled = append(cancelled, e.ID)
		return nil
	})

	e := sampleEvent(t, BookingCreated)
	bus.Publish(e)

	assert.Equal(t, []string{e.ID, e.ID}, created)
	assert.Empty(t, cancelled)
}

func TestNewBookingEvent_RoundTrip(t *testing.T) {
	e := sampleEvent(t, BookingCancelled)
	assert.NotEmpty(t, e.ID)
	assert.False(t, e.CreatedAt.IsZero())

	p, err := e.DecodeBooking()
	require.NoError(t, err)
	assert.Equal(t, int64(7), p.Booking.ID)
	assert.Equal(t, "Nicolas Woollett", p.Technician.Name)
}

type fakePublisher struct {
	subjects []string
	bodies   [][]byte
	err      error
}

func (f *fakePublisher) Publish(subject string, data []byte) error {
	if f.err != nil {
		return f.err
	}
	f.subjects = append(f.subjects, subject)
	f.bodies = append(f.bodies, data)
	return nil
}

func TestNATSForwarder_Envelope(t *testing.T) {
	pub := &fakePublisher{}
	bus := NewEventBus(nil)
	NewNATSForwarder(pub, "techsched.events", nil).Attach(bus)

	e := sampleEvent(t, BookingCreated)
	bus.Publish(e)

	require.Equal(t, []string{"techsched.events.booking.created"}, pub.subjects)

	var msg natsMessage
	require.NoError(t, json.Unmarshal(pub.bodies[0], &msg))
	assert.Equal(t, e.ID, msg.MessageID)
	assert.Equal(t, BookingCreated, msg.EventType)
	assert.JSONEq(t, string(e.Payload), string(msg.Payload))
}

func TestNATSForwarder_PublishError(t *testing.T) {
	f := NewNATSForwarder(&fakePublisher{err: errors.New("nats: connection closed")}, "p", nil)
	err := f.Handle(sampleEvent(t, BookingCancelled))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish p.booking.cancelled")
	assert.NoError(t, f.Close())
}
