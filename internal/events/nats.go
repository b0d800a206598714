package events

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Publisher is the part of *nats.Conn the forwarder uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSForwarder republishes bus events on NATS subjects "<prefix>.<type>".
type NATSForwarder struct {
	pub    Publisher
	conn   *nats.Conn
	prefix string
	nodeID string
	logger *zerolog.Logger
}

// natsMessage represents a message published to NATS.
type natsMessage struct {
	MessageID string          `json:"message_id"`
	EventType string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
	NodeID    string          `json:"node_id"`
}

// ConnectNATS dials url and returns a forwarder owning the connection.
func ConnectNATS(url, prefix string, logger *zerolog.Logger) (*NATSForwarder, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	conn, err := nats.Connect(url,
		nats.Name("techsched"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	f := NewNATSForwarder(conn, prefix, logger)
	f.conn = conn
	return f, nil
}

// NewNATSForwarder wraps an existing publisher.
func NewNATSForwarder(pub Publisher, prefix string, logger *zerolog.Logger) *NATSForwarder {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	host, _ := os.Hostname()
	return &NATSForwarder{pub: pub, prefix: prefix, nodeID: host, logger: logger}
}

// Attach subscribes the forwarder to every booking event type on bus.
func (f *NATSForwarder) Attach(bus *EventBus) {
	for _, t := range []string{BookingCreated, BookingCancelled} {
		bus.Subscribe(t, f.Handle)
	}
}

// Handle publishes one event.
func (f *NATSForwarder) Handle(e Event) error {
	data, err := json.Marshal(natsMessage{
		MessageID: e.ID,
		EventType: e.Type,
		Payload:   json.RawMessage(e.Payload),
		Timestamp: e.CreatedAt,
		NodeID:    f.nodeID,
	})
	if err != nil {
		return fmt.Errorf("marshal nats message: %w", err)
	}
	subject := f.prefix + "." + e.Type
	if err := f.pub.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	f.logger.Debug().Str("subject", subject).Str("message_id", e.ID).Msg("event forwarded to NATS")
	return nil
}

// Close drains the owned connection, if any.
func (f *NATSForwarder) Close() error {
	if f.conn == nil {
		return nil
	}
	return f.conn.Drain()
}
