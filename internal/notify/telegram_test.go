package notify

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"techsched/internal/events"
	"techsched/internal/model"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	fail map[int64]bool
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	msg := c.(tgbotapi.MessageConfig)
	if f.fail[msg.ChatID] {
		return tgbotapi.Message{}, errors.New("forbidden")
	}
	f.sent = append(f.sent, msg)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func bookingEvent(t *testing.T, eventType string) events.Event {
	t.Helper()
	b := model.Booking{
		ID:           4,
		TechnicianID: 2,
		BookingTime:  time.Date(2025, 10, 16, 15, 0, 0, 0, time.UTC),
		Status:       model.StatusBooked,
	}
	tech := model.Technician{ID: 2, Name: "Franky Flay", Type: "Electrician"}
	e, err := events.NewBookingEvent(eventType, b, tech)
	require.NoError(t, err)
	return e
}

func TestTelegramNotifier_Messages(t *testing.T) {
	tests := []struct {
		eventType string
		want      string
	}{
		{events.BookingCreated, "New booking #4: Franky Flay (Electrician) at 16.10.2025 15:00"},
		{events.BookingCancelled, "Booking #4 cancelled: Franky Flay (Electrician) at 16.10.2025 15:00"},
	}

	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			sender := &fakeSender{}
			n := NewTelegramNotifier(sender, []int64{10, 20}, time.UTC, nil)

			require.NoError(t, n.Handle(bookingEvent(t, tt.eventType)))
			require.Len(t, sender.sent, 2)
			assert.Equal(t, int64(10), sender.sent[0].ChatID)
			assert.Equal(t, int64(20), sender.sent[1].ChatID)
			assert.Equal(t, tt.want, sender.sent[0].Text)
		})
	}
}

func TestTelegramNotifier_PartialFailure(t *testing.T) {
	sender := &fakeSender{fail: map[int64]bool{10: true}}
	n := NewTelegramNotifier(sender, []int64{10, 20}, time.UTC, nil)

	err := n.Handle(bookingEvent(t, events.BookingCreated))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send to 10")
	require.Len(t, sender.sent, 1)
	assert.Equal(t, int64(20), sender.sent[0].ChatID)
}

func TestTelegramNotifier_AttachedToBus(t *testing.T) {
	sender := &fakeSender{}
	bus := events.NewEventBus(nil)
	NewTelegramNotifier(sender, []int64{7}, time.UTC, nil).Attach(bus)

	bus.Publish(bookingEvent(t, events.BookingCancelled))
	bus.Publish(events.Event{Type: "other"})

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Text, "cancelled")
}

func TestTelegramNotifier_BadPayload(t *testing.T) {
	sender := &fakeSender{}
	n := NewTelegramNotifier(sender, []int64{7}, time.UTC, nil)

	err := n.Handle(events.Event{Type: events.BookingCreated, Payload: []byte("{")})
	require.Error(t, err)
	assert.Empty(t, sender.sent)
}

func TestTelegramBot_SendTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/getMe") {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"techsched","username":"techsched_bot"}}`))
			return
		}
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	api, err := newTelegramBot("token", srv.URL+"/bot%s/%s", 100*time.Millisecond)
	require.NoError(t, err)

	n := NewTelegramNotifier(api, []int64{7}, time.UTC, nil)
	start := time.Now()
	err = n.Handle(bookingEvent(t, events.BookingCreated))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
