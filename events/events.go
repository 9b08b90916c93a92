// Package events carries the market's outbound notifications. Events are
// emitted after an operation has fully committed and are best-effort: a
// notifier failure never fails the operation that produced the event.
package events

import (
	"log"
	"time"
)

// Subjects, one per event type. The NATS notifier publishes on these
// verbatim; other notifiers may use them as routing keys.
const (
	SubjectItemCreated = "market.events.item_created"
	SubjectBidAccepted = "market.events.bid_accepted"
	SubjectItemSettled = "market.events.item_settled"
)

// Event is anything the market can announce to external observers.
type Event interface {
	Subject() string
}

// ItemCreated is emitted once per successful listing.
type ItemCreated struct {
	EventID   string    `json:"event_id"`
	ItemID    string    `json:"item_id"`
	Seller    string    `json:"seller"`
	Owner     string    `json:"owner"`
	Price     float64   `json:"price"`
	Sold      bool      `json:"sold"`
	Timestamp time.Time `json:"timestamp"`
}

func (ItemCreated) Subject() string { return SubjectItemCreated }

// BidAccepted is emitted for each bid the ledger accepts.
type BidAccepted struct {
	EventID   string    `json:"event_id"`
	ItemID    string    `json:"item_id"`
	Bidder    string    `json:"bidder"`
	Amount    float64   `json:"amount"`
	BidCount  int       `json:"bid_count"`
	Timestamp time.Time `json:"timestamp"`
}

func (BidAccepted) Subject() string { return SubjectBidAccepted }

// ItemSettled is emitted once per completed settlement.
type ItemSettled struct {
	EventID       string    `json:"event_id"`
	ItemID        string    `json:"item_id"`
	Seller        string    `json:"seller"`
	PreviousOwner string    `json:"previous_owner"`
	NewOwner      string    `json:"new_owner"`
	Price         float64   `json:"price"`
	Royalty       float64   `json:"royalty"`
	RefundedBids  int       `json:"refunded_bids"`
	Timestamp     time.Time `json:"timestamp"`
}

func (ItemSettled) Subject() string { return SubjectItemSettled }

// Notifier delivers events to external observers.
type Notifier interface {
	Publish(e Event) error
}

// LogNotifier writes events to the process log. It is the default notifier
// when no message broker is configured.
type LogNotifier struct{}

func (LogNotifier) Publish(e Event) error {
	log.Printf("INFO: Event %s: %+v", e.Subject(), e)
	return nil
}

// Discard drops every event. Useful in tests that do not care about
// notifications.
var Discard Notifier = discard{}

type discard struct{}

func (discard) Publish(Event) error { return nil }
