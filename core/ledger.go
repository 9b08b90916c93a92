package core

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/auctionhouse/events"
)

// PlaceBid records a bid on an open, biddable item. An accepted bid becomes
// the leading bid: the item's price is raised to the bid amount and the
// bidder is recorded as the current winner.
//
// A bid equal to the current price is accepted; no strict increase is
// required, and the last equal bid leads.
//
// No funds move here. All accepted bids stay escrowed, including the
// displaced leader's, until settlement refunds every non-winning bidder.
func (m *Market) PlaceBid(id, bidder string, amount decimal.Decimal, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.store.item(id)
	if !ok {
		return fmt.Errorf("item %s: %w", id, ErrUnknownItem)
	}
	if !now.Before(item.Deadline) {
		return fmt.Errorf("bidding on item %s closed at %s: %w", id, item.Deadline.Format(time.RFC3339), ErrAuctionNotOpen)
	}
	if !item.Biddable {
		return fmt.Errorf("item %s: %w", id, ErrNotBiddable)
	}
	if amount.LessThan(item.Price) {
		return fmt.Errorf("bid %s below current price %s: %w", amount, item.Price, ErrInsufficientFunds)
	}

	m.store.appendBid(id, &Bid{
		Bidder:    bidder,
		Amount:    amount,
		Timestamp: now,
	})
	item.Bids++
	item.Price = amount
	item.Winner = bidder

	m.notify(events.BidAccepted{
		EventID:   uuid.New().String(),
		ItemID:    id,
		Bidder:    bidder,
		Amount:    amount.InexactFloat64(),
		BidCount:  item.Bids,
		Timestamp: now,
	})

	return nil
}

// ListBids returns the item's bid sequence in insertion order, as detached
// snapshots.
func (m *Market) ListBids(id string) []Bid {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := m.store.bidsFor(id)
	out := make([]Bid, len(stored))
	for i, b := range stored {
		out[i] = *b
	}
	return out
}
