package notify

import (
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"techsched/internal/events"
)

// Sender delivers a chat message. *tgbotapi.BotAPI satisfies it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts booking events to a fixed set of chats.
type TelegramNotifier struct {
	sender  Sender
	chatIDs []int64
	loc     *time.Location
	logger  *zerolog.Logger
}

// DefaultSendTimeout bounds every Bot API request.
const DefaultSendTimeout = 10 * time.Second

// NewTelegramBot authenticates against the Bot API with the given token.
// Requests give up after timeout.
func NewTelegramBot(token string, timeout time.Duration) (*tgbotapi.BotAPI, error) {
	return newTelegramBot(token, tgbotapi.APIEndpoint, timeout)
}

func newTelegramBot(token, endpoint string, timeout time.Duration) (*tgbotapi.BotAPI, error) {
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return api, nil
}

func NewTelegramNotifier(sender Sender, chatIDs []int64, loc *time.Location, logger *zerolog.Logger) *TelegramNotifier {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	if loc == nil {
		loc = time.Local
	}
	return &TelegramNotifier{sender: sender, chatIDs: chatIDs, loc: loc, logger: logger}
}

// Attach subscribes the notifier to booking events on the bus.
func (n *TelegramNotifier) Attach(bus *events.EventBus) {
	bus.Subscribe(events.BookingCreated, n.Handle)
	bus.Subscribe(events.BookingCancelled, n.Handle)
}

// Handle sends one message per configured chat. The first send error is
// returned after all chats have been tried.
func (n *TelegramNotifier) Handle(e events.Event) error {
	text, err := n.format(e)
	if err != nil {
		return err
	}

	var firstErr error
	for _, chatID := range n.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.sender.Send(msg); err != nil {
			n.logger.Warn().Err(err).Int64("chat_id", chatID).Str("event_type", e.Type).Msg("telegram send failed")
			if firstErr == nil {
				firstErr = fmt.Errorf("send to %d: %w", chatID, err)
			}
		}
	}
	return firstErr
}

func (n *TelegramNotifier) format(e events.Event) (string, error) {
	p, err := e.DecodeBooking()
	if err != nil {
		return "", err
	}
	when := p.Booking.BookingTime.In(n.loc).Format("02.01.2006 15:04")

	switch e.Type {
	case events.BookingCreated:
		return fmt.Sprintf("New booking #%d: %s (%s) at %s", p.Booking.ID, p.Technician.Name, p.Technician.Type, when), nil
	case events.BookingCancelled:
		return fmt.Sprintf("Booking #%d cancelled: %s (%s) at %s", p.Booking.ID, p.Technician.Name, p.Technician.Type, when), nil
	default:
		return "", fmt.Errorf("unsupported event type %q", e.Type)
	}
}
