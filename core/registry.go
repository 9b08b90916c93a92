package core

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/auctionhouse/events"
)

// CreateItem lists a new item for auction and returns its id along with the
// fee actually charged, so the caller can settle any surplus it attached
// without re-reading a fee that may have changed since.
//
// The attached fee must cover the current listing fee; the fee is forwarded
// to the admin account and the item's backing token is minted into market
// custody. The stored record starts with owner = seller, sold = false, no
// bids, and deadline = now + the configured bidding window.
func (m *Market) CreateItem(ctx context.Context, l Listing, now time.Time) (string, decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if l.Price.Sign() <= 0 {
		return "", decimal.Zero, fmt.Errorf("listing price %s: %w", l.Price, ErrInvalidPrice)
	}
	fee := m.cfg.ListingFee
	if l.AttachedFee.LessThan(fee) {
		return "", decimal.Zero, fmt.Errorf("attached %s, listing fee is %s: %w", l.AttachedFee, fee, ErrInsufficientFee)
	}

	id := uuid.New().String()

	session, err := m.funds.Begin(ctx)
	if err != nil {
		return "", decimal.Zero, fmt.Errorf("%w: begin fee transfer: %v", ErrPaymentFailed, err)
	}
	if err := session.Send(m.cfg.Admin, fee); err != nil {
		abortSession(session)
		return "", decimal.Zero, fmt.Errorf("%w: forward listing fee: %v", ErrPaymentFailed, err)
	}

	if err := m.tokens.Mint(ctx, m.cfg.Custody, id, l.MetadataRef); err != nil {
		abortSession(session)
		return "", decimal.Zero, fmt.Errorf("mint item token: %w", err)
	}

	if err := session.Execute(); err != nil {
		// The token was already minted; burn it so a failed creation
		// leaves nothing behind.
		if berr := m.tokens.Burn(ctx, m.cfg.Custody, id); berr != nil {
			log.Printf("ERROR: Failed to burn token %s after failed creation: %v", id, berr)
		}
		return "", decimal.Zero, fmt.Errorf("%w: forward listing fee: %v", ErrPaymentFailed, err)
	}

	item := &AuctionItem{
		ID:          id,
		Name:        l.Name,
		Description: l.Description,
		ImageRef:    l.ImageRef,
		MetadataRef: l.MetadataRef,
		Price:       l.Price,
		Seller:      l.Seller,
		Owner:       l.Seller,
		Sold:        false,
		Live:        true,
		Biddable:    l.Biddable,
		Bids:        0,
		Deadline:    now.Add(m.cfg.BiddingWindow),
		CreatedAt:   now,
	}
	m.store.putItem(item)

	m.notify(events.ItemCreated{
		EventID:   uuid.New().String(),
		ItemID:    id,
		Seller:    item.Seller,
		Owner:     item.Owner,
		Price:     item.Price.InexactFloat64(),
		Sold:      item.Sold,
		Timestamp: now,
	})

	return id, fee, nil
}

// ChangePrice updates the ask of an item the caller owns. Only permitted
// once the bidding window has closed, so a live leading bid can never be
// undercut.
func (m *Market) ChangePrice(id string, newPrice decimal.Decimal, caller string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.store.item(id)
	if !ok {
		return fmt.Errorf("item %s: %w", id, ErrUnknownItem)
	}
	if caller != item.Owner {
		return fmt.Errorf("caller %s does not own item %s: %w", caller, id, ErrUnauthorized)
	}
	if !now.After(item.Deadline) {
		return fmt.Errorf("item %s accepts bids until %s: %w", id, item.Deadline.Format(time.RFC3339), ErrAuctionStillLive)
	}
	if newPrice.Sign() <= 0 {
		return fmt.Errorf("new price %s: %w", newPrice, ErrInvalidPrice)
	}

	item.Price = newPrice
	return nil
}

// ListUnsold returns snapshots of every item that has not been settled.
func (m *Market) ListUnsold() []AuctionItem {
	return m.selectItems(func(it *AuctionItem) bool { return !it.Sold })
}

// ListSold returns snapshots of every settled item. Together with ListUnsold
// it partitions the full item set.
func (m *Market) ListSold() []AuctionItem {
	return m.selectItems(func(it *AuctionItem) bool { return it.Sold })
}

// ListByOwner returns snapshots of every item the caller currently owns.
func (m *Market) ListByOwner(caller string) []AuctionItem {
	return m.selectItems(func(it *AuctionItem) bool { return it.Owner == caller })
}

// ListLive returns snapshots of every item still in its live cycle.
func (m *Market) ListLive() []AuctionItem {
	return m.selectItems(func(it *AuctionItem) bool { return it.Live })
}

// selectItems materializes a fresh sequence of matching item snapshots. The
// scan is O(n) per call and the copies are detached: later mutation is
// invisible to a previously returned sequence.
func (m *Market) selectItems(match func(*AuctionItem) bool) []AuctionItem {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]AuctionItem, 0)
	for _, it := range m.store.items {
		if match(it) {
			out = append(out, *it)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// abortSession discards a session, logging rather than propagating the
// rarely useful abort error.
func abortSession(s TransferSession) {
	if err := s.Abort(); err != nil {
		log.Printf("ERROR: Failed to abort transfer session: %v", err)
	}
}
