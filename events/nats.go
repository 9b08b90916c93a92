package events

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// NATSNotifier publishes events as JSON payloads on their subject. Delivery
// is fire-and-forget core NATS; observers that need replay should bridge the
// subjects into a stream on their side.
type NATSNotifier struct {
	conn *nats.Conn
}

// NewNATSNotifier wraps an established NATS connection. The notifier does
// not own the connection and never closes it.
func NewNATSNotifier(conn *nats.Conn) *NATSNotifier {
	return &NATSNotifier{conn: conn}
}

func (n *NATSNotifier) Publish(e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event for %s: %w", e.Subject(), err)
	}
	if err := n.conn.Publish(e.Subject(), data); err != nil {
		return fmt.Errorf("publish to %s: %w", e.Subject(), err)
	}
	return nil
}
