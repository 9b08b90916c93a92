// Package core implements the auction lifecycle and settlement engine: the
// item registry, the per-item bid ledger, and the settlement path that
// transfers custody and distributes funds. Every state-modifying operation
// runs under one exclusive lock and is all-or-nothing: either all of its
// mutations and external transfers commit, or none do.
package core

import (
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cloudx-io/auctionhouse/events"
)

// Config carries the process-wide market parameters.
type Config struct {
	// Admin receives listing fees and is the only account allowed to
	// change them.
	Admin string

	// Custody is the account that holds minted item tokens between
	// creation and settlement.
	Custody string

	// ListingFee is charged on every creation and forwarded to Admin.
	ListingFee decimal.Decimal

	// RoyaltyFeePercent of the settlement price goes to the original
	// lister; the remainder goes to the owner at settlement time.
	RoyaltyFeePercent int64

	// BiddingWindow is how long after creation an item accepts bids. The
	// window length is an explicit parameter; the deadline is fixed at
	// creation and never extended.
	BiddingWindow time.Duration
}

// Market is the single authority over items, bids, and settlement. It owns a
// MarketStore and reaches payment and token backends only through their
// ports.
type Market struct {
	// mu serializes every state-modifying operation for its full duration,
	// released on every exit path. Combined with committing internal state
	// before any external transfer, this closes the reentrancy window: a
	// re-entered settlement observes the post-settlement state and is
	// rejected by the winner/deadline guards.
	mu sync.Mutex

	cfg      Config
	store    *MarketStore
	funds    ValueTransfer
	tokens   IdentityRegistry
	notifier events.Notifier
}

// NewMarket assembles a market over an explicitly owned store. A nil
// notifier discards events.
func NewMarket(cfg Config, store *MarketStore, funds ValueTransfer, tokens IdentityRegistry, notifier events.Notifier) *Market {
	if notifier == nil {
		notifier = events.Discard
	}
	return &Market{
		cfg:      cfg,
		store:    store,
		funds:    funds,
		tokens:   tokens,
		notifier: notifier,
	}
}

// ListingFee returns the current process-wide listing fee.
func (m *Market) ListingFee() decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.ListingFee
}

// SetListingFee updates the process-wide listing fee. Only the admin account
// may call it.
func (m *Market) SetListingFee(newFee decimal.Decimal, caller string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if caller != m.cfg.Admin {
		return ErrUnauthorized
	}
	m.cfg.ListingFee = newFee
	return nil
}

// notify delivers an event best-effort. Operations have already committed by
// the time they notify, so a delivery failure is logged and swallowed.
func (m *Market) notify(e events.Event) {
	if err := m.notifier.Publish(e); err != nil {
		log.Printf("WARNING: Failed to publish %s event: %v", e.Subject(), err)
	}
}
