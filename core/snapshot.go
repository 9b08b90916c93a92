package core

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/shopspring/decimal"
)

// marketSnapshot is the CBOR shape of the market's durable state: item
// records, per-item bid sequences, and the mutable listing fee. Static
// configuration (admin, custody, royalty, bidding window) is not part of the
// snapshot; it belongs to the process.
// snapshotEncMode keeps sub-second precision on deadlines and bid
// timestamps; the default CBOR time encoding truncates to whole seconds.
var snapshotEncMode, _ = cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()

type marketSnapshot struct {
	Items      map[string]AuctionItem `cbor:"items"`
	Bids       map[string][]Bid       `cbor:"bids"`
	ListingFee decimal.Decimal        `cbor:"listing_fee"`
}

// WriteSnapshot serializes the market's durable state to w. Taken under the
// market lock, so the snapshot is a consistent cut between transactions.
func (m *Market) WriteSnapshot(w io.Writer) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := marketSnapshot{
		Items:      make(map[string]AuctionItem, len(m.store.items)),
		Bids:       make(map[string][]Bid, len(m.store.bids)),
		ListingFee: m.cfg.ListingFee,
	}
	for id, it := range m.store.items {
		snap.Items[id] = *it
	}
	for id, bids := range m.store.bids {
		vals := make([]Bid, len(bids))
		for i, b := range bids {
			vals[i] = *b
		}
		snap.Bids[id] = vals
	}

	if err := snapshotEncMode.NewEncoder(w).Encode(snap); err != nil {
		return fmt.Errorf("encode market snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot replaces the market's durable state with a previously written
// snapshot.
func (m *Market) ReadSnapshot(r io.Reader) error {
	var snap marketSnapshot
	if err := cbor.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("decode market snapshot: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.store.items = make(map[string]*AuctionItem, len(snap.Items))
	m.store.bids = make(map[string][]*Bid, len(snap.Bids))
	for id := range snap.Items {
		it := snap.Items[id]
		m.store.putItem(&it)
	}
	for id, bids := range snap.Bids {
		for i := range bids {
			b := bids[i]
			m.store.appendBid(id, &b)
		}
	}
	m.cfg.ListingFee = snap.ListingFee
	return nil
}
