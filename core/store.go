package core

// MarketStore owns the durable maps of item records and per-item bid
// sequences. It is an explicitly owned object handed to the Market rather
// than an ambient singleton, which keeps ownership and testability explicit.
// All access goes through the Market's operations; the store itself does no
// locking.
type MarketStore struct {
	items map[string]*AuctionItem
	bids  map[string][]*Bid
}

// NewMarketStore returns an empty store.
func NewMarketStore() *MarketStore {
	return &MarketStore{
		items: make(map[string]*AuctionItem),
		bids:  make(map[string][]*Bid),
	}
}

func (s *MarketStore) item(id string) (*AuctionItem, bool) {
	it, ok := s.items[id]
	return it, ok
}

func (s *MarketStore) putItem(it *AuctionItem) {
	s.items[it.ID] = it
}

func (s *MarketStore) removeItem(id string) {
	delete(s.items, id)
	delete(s.bids, id)
}

func (s *MarketStore) appendBid(id string, b *Bid) {
	s.bids[id] = append(s.bids[id], b)
}

func (s *MarketStore) bidsFor(id string) []*Bid {
	return s.bids[id]
}

// clearBids destroys the entire bid sequence for an item. This is the
// arena-style drain at the end of settlement: bounded storage is bought by
// giving up the post-settlement audit trail.
func (s *MarketStore) clearBids(id string) {
	delete(s.bids, id)
}

// captureItem takes value copies of an item and its bid sequence so a failed
// operation can roll back to them.
func (s *MarketStore) captureItem(id string) (AuctionItem, []Bid) {
	it := s.items[id]
	bids := make([]Bid, len(s.bids[id]))
	for i, b := range s.bids[id] {
		bids[i] = *b
	}
	return *it, bids
}

// restoreItem reinstates a previously captured item state, discarding every
// mutation made since the capture.
func (s *MarketStore) restoreItem(snap AuctionItem, bids []Bid) {
	it := snap
	s.items[snap.ID] = &it

	restored := make([]*Bid, len(bids))
	for i := range bids {
		b := bids[i]
		restored[i] = &b
	}
	if len(restored) == 0 {
		delete(s.bids, snap.ID)
		return
	}
	s.bids[snap.ID] = restored
}
