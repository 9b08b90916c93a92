package core

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/cloudx-io/auctionhouse/events"
)

// ClaimPrize settles an ended auction. The recorded winner receives custody
// of the item; the winning funds are split between the owner at settlement
// time and the original lister (the royalty); every other bidder is refunded
// exactly its escrowed amount; and the item's bid sequence is destroyed.
//
// bidIndex names the bid record to mark as won. The indexed bid must belong
// to the caller.
//
// Mutation ordering is load-bearing: every internal state transition is
// committed before any external transfer is issued, so a reentrant call
// triggered by a receiving party observes live=false and a cleared winner
// and is rejected by the guards below. The per-market lock additionally
// holds for the call's full duration.
//
// The operation is all-or-nothing. Fund movement is staged against one
// transfer session and only executed once every step has been accepted; any
// failure aborts the session, restores the captured pre-claim state, and
// reports PaymentFailed.
func (m *Market) ClaimPrize(ctx context.Context, id string, bidIndex int, caller string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.store.item(id)
	if !ok {
		return fmt.Errorf("item %s: %w", id, ErrUnknownItem)
	}
	if !now.After(item.Deadline) {
		return fmt.Errorf("item %s accepts bids until %s: %w", id, item.Deadline.Format(time.RFC3339), ErrAuctionStillLive)
	}
	if caller == "" || caller != item.Winner {
		return fmt.Errorf("caller %s: %w", caller, ErrNotWinner)
	}

	bids := m.store.bidsFor(id)
	if bidIndex < 0 || bidIndex >= len(bids) || bids[bidIndex].Bidder != caller {
		return fmt.Errorf("bid index %d does not reference a bid by %s: %w", bidIndex, caller, ErrNotWinner)
	}

	// Capture everything a rollback needs before the first mutation.
	itemSnap, bidSnaps := m.store.captureItem(id)
	price := item.Price
	sellerAtListing := item.Seller
	ownerAtClaim := item.Owner

	// Internal state goes to its post-settlement values first; external
	// transfers come after.
	item.Winner = ""
	item.Live = false
	item.Sold = true
	item.Bids = 0
	item.Deadline = now

	ownerShare, royalty := SettlementSplit(price, m.cfg.RoyaltyFeePercent)

	session, err := m.funds.Begin(ctx)
	if err != nil {
		m.store.restoreItem(itemSnap, bidSnaps)
		return fmt.Errorf("%w: begin settlement transfers: %v", ErrPaymentFailed, err)
	}

	fail := func(tokenMoved bool, cause error) error {
		abortSession(session)
		if tokenMoved {
			// Custody was already re-pointed; put it back. A failure
			// here leaves the token stranded with the claimer and is
			// the one inconsistency this path cannot repair itself.
			if err := m.tokens.Transfer(ctx, caller, m.cfg.Custody, id); err != nil {
				log.Printf("ERROR: Failed to return token %s to custody during rollback: %v", id, err)
			}
		}
		m.store.restoreItem(itemSnap, bidSnaps)
		return fmt.Errorf("%w: %v", ErrPaymentFailed, cause)
	}

	if err := session.Send(ownerAtClaim, ownerShare); err != nil {
		return fail(false, fmt.Errorf("pay owner %s: %w", ownerAtClaim, err))
	}
	if err := session.Send(sellerAtListing, royalty); err != nil {
		return fail(false, fmt.Errorf("pay royalty to %s: %w", sellerAtListing, err))
	}

	if err := m.tokens.Transfer(ctx, m.cfg.Custody, caller, id); err != nil {
		return fail(false, fmt.Errorf("transfer token to %s: %w", caller, err))
	}
	item.Owner = caller

	bids[bidIndex].Won = true

	refunded, err := m.refundBids(session, bids, caller, now)
	if err != nil {
		return fail(true, err)
	}
	m.store.clearBids(id)

	if err := session.Execute(); err != nil {
		return fail(true, fmt.Errorf("execute settlement transfers: %w", err))
	}

	m.notify(events.ItemSettled{
		EventID:       uuid.New().String(),
		ItemID:        id,
		Seller:        sellerAtListing,
		PreviousOwner: ownerAtClaim,
		NewOwner:      caller,
		Price:         price.InexactFloat64(),
		Royalty:       royalty.InexactFloat64(),
		RefundedBids:  refunded,
		Timestamp:     now,
	})

	return nil
}

// refundBids runs the refund phase of a claim. Invoked only from within
// ClaimPrize, never directly. Every bid not placed by the claimer is staged
// for refund of exactly its escrowed amount and marked refunded; the
// claimer's own bids are marked won instead, which overlaps the explicit
// bidIndex marking done by ClaimPrize. Every processed bid is stamped with
// the settlement time.
func (m *Market) refundBids(session TransferSession, bids []*Bid, caller string, now time.Time) (refunded int, err error) {
	for i, b := range bids {
		if b.Bidder != caller {
			if err := session.Send(b.Bidder, b.Amount); err != nil {
				return refunded, fmt.Errorf("refund bid %d to %s: %w", i, b.Bidder, err)
			}
			b.Refunded = true
			refunded++
		} else {
			b.Won = true
		}
		b.Timestamp = now
	}
	return refunded, nil
}
