package main

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/auctionhouse/core"
	"github.com/cloudx-io/auctionhouse/escrow"
	"github.com/cloudx-io/auctionhouse/events"
	"github.com/cloudx-io/auctionhouse/token"
)

func newTestServer(t *testing.T) *MarketServer {
	t.Helper()
	cfg := serverConfig{
		maxWorkers:     4,
		admin:          "admin",
		listingFee:     decimal.NewFromFloat(0.1),
		royaltyPercent: 10,
		biddingWindow:  100 * time.Millisecond,
	}
	book := escrow.NewBalanceBook()
	tokens := token.NewRegistry()
	market := core.NewMarket(core.Config{
		Admin:             cfg.admin,
		Custody:           custodyAccount,
		ListingFee:        cfg.listingFee,
		RoyaltyFeePercent: cfg.royaltyPercent,
		BiddingWindow:     cfg.biddingWindow,
	}, core.NewMarketStore(), book, tokens, events.Discard)
	return &MarketServer{cfg: cfg, market: market, book: book, tokens: tokens}
}

func request(t *testing.T, s *MarketServer, doc string) MarketResponseView {
	t.Helper()
	resp := s.dispatch([]byte(doc))
	raw, err := json.Marshal(resp)
	assert.Nil(t, err)
	var view MarketResponseView
	assert.Nil(t, json.Unmarshal(raw, &view))
	return view
}

// MarketResponseView re-decodes responses through JSON so the tests observe
// exactly what a client on the wire would see.
type MarketResponseView struct {
	Type       string   `json:"type"`
	Success    bool     `json:"success"`
	Message    string   `json:"message"`
	ItemID     string   `json:"item_id"`
	ListingFee *float64 `json:"listing_fee"`
	Items      []struct {
		ID     string  `json:"id"`
		Name   string  `json:"name"`
		Price  float64 `json:"price"`
		Owner  string  `json:"owner"`
		Seller string  `json:"seller"`
		Sold   bool    `json:"sold"`
		Live   bool    `json:"live"`
	} `json:"items"`
	Bids []struct {
		Bidder   string  `json:"bidder"`
		Amount   float64 `json:"amount"`
		Refunded bool    `json:"refunded"`
		Won      bool    `json:"won"`
	} `json:"bids"`
}

func TestDispatch_Ping(t *testing.T) {
	s := newTestServer(t)
	resp := request(t, s, `{"type":"ping"}`)
	check.True(t, resp.Success)
	check.Equal(t, "pong", resp.Type)
}

func TestDispatch_MalformedJSON(t *testing.T) {
	s := newTestServer(t)
	resp := request(t, s, `{"type":`)
	check.False(t, resp.Success)
	check.Equal(t, "error_response", resp.Type)
}

func TestDispatch_UnknownType(t *testing.T) {
	s := newTestServer(t)
	resp := request(t, s, `{"type":"drop_tables"}`)
	check.False(t, resp.Success)
}

func TestDispatch_CreateAuction(t *testing.T) {
	s := newTestServer(t)

	resp := request(t, s, `{"type":"create_auction","name":"vase","description":"ming","price":1.0,"seller":"alice","attached_fee":0.1,"biddable":true}`)
	assert.True(t, resp.Success)
	assert.NotEqual(t, "", resp.ItemID)

	// The listing fee moved to the admin account, leaving escrow empty.
	check.True(t, s.book.EscrowBalance().IsZero())
	check.True(t, s.book.Balance("admin").Equal(decimal.NewFromFloat(0.1)))

	live := request(t, s, `{"type":"get_live"}`)
	assert.Equal(t, 1, len(live.Items))
	check.Equal(t, resp.ItemID, live.Items[0].ID)
	check.Equal(t, "alice", live.Items[0].Owner)
	check.False(t, live.Items[0].Sold)
}

func TestDispatch_CreateAuction_FeeSurplusReturned(t *testing.T) {
	s := newTestServer(t)

	resp := request(t, s, `{"type":"create_auction","name":"vase","price":1.0,"seller":"alice","attached_fee":0.5,"biddable":true}`)
	assert.True(t, resp.Success)

	// Only the listing fee is kept; the surplus leaves escrow again.
	check.True(t, s.book.EscrowBalance().IsZero())
	check.True(t, s.book.Balance("admin").Equal(decimal.NewFromFloat(0.1)))
}

func TestDispatch_CreateAuction_RejectedFeeReturned(t *testing.T) {
	s := newTestServer(t)

	resp := request(t, s, `{"type":"create_auction","name":"vase","price":0,"seller":"alice","attached_fee":0.1,"biddable":true}`)
	check.False(t, resp.Success)
	check.True(t, s.book.EscrowBalance().IsZero())
	check.True(t, s.book.Balance("admin").IsZero())
}

func TestDispatch_PlaceBid_EscrowsAmount(t *testing.T) {
	s := newTestServer(t)
	created := request(t, s, `{"type":"create_auction","name":"vase","price":1.0,"seller":"alice","attached_fee":0.1,"biddable":true}`)
	assert.True(t, created.Success)

	resp := request(t, s, fmt.Sprintf(`{"type":"place_bid","item_id":%q,"bidder":"bob","amount":2.0}`, created.ItemID))
	assert.True(t, resp.Success)
	check.True(t, s.book.EscrowBalance().Equal(decimal.NewFromInt(2)))

	bidders := request(t, s, fmt.Sprintf(`{"type":"get_bidders","item_id":%q}`, created.ItemID))
	assert.Equal(t, 1, len(bidders.Bids))
	check.Equal(t, "bob", bidders.Bids[0].Bidder)
	check.Equal(t, 2.0, bidders.Bids[0].Amount)
}

func TestDispatch_PlaceBid_RejectedAmountReturned(t *testing.T) {
	s := newTestServer(t)
	created := request(t, s, `{"type":"create_auction","name":"vase","price":1.0,"seller":"alice","attached_fee":0.1,"biddable":true}`)
	assert.True(t, created.Success)

	// Below the ask: the bid fails and the escrowed amount comes back out.
	resp := request(t, s, fmt.Sprintf(`{"type":"place_bid","item_id":%q,"bidder":"bob","amount":0.5}`, created.ItemID))
	check.False(t, resp.Success)
	check.True(t, s.book.EscrowBalance().IsZero())
}

func TestDispatch_FullAuctionCycle(t *testing.T) {
	s := newTestServer(t)

	created := request(t, s, `{"type":"create_auction","name":"vase","price":1.0,"seller":"alice","attached_fee":0.1,"biddable":true}`)
	assert.True(t, created.Success)
	id := created.ItemID

	for _, bid := range []string{
		fmt.Sprintf(`{"type":"place_bid","item_id":%q,"bidder":"bob","amount":2.0}`, id),
		fmt.Sprintf(`{"type":"place_bid","item_id":%q,"bidder":"carol","amount":3.0}`, id),
	} {
		assert.True(t, request(t, s, bid).Success)
	}

	// The configured bidding window is short enough for the auction to close
	// on its own.
	time.Sleep(150 * time.Millisecond)

	claim := request(t, s, fmt.Sprintf(`{"type":"claim_prize","item_id":%q,"bid_index":1,"caller":"carol"}`, id))
	assert.True(t, claim.Success)

	// Escrow drained completely: sale proceeds split between owner and
	// original seller, losing bid refunded.
	check.True(t, s.book.EscrowBalance().IsZero())
	check.True(t, s.book.Balance("alice").Equal(decimal.NewFromInt(3)))
	check.True(t, s.book.Balance("bob").Equal(decimal.NewFromInt(2)))

	sold := request(t, s, `{"type":"get_sold"}`)
	assert.Equal(t, 1, len(sold.Items))
	check.Equal(t, "carol", sold.Items[0].Owner)
	check.True(t, sold.Items[0].Sold)

	mine := request(t, s, `{"type":"get_my_auctions","caller":"carol"}`)
	assert.Equal(t, 1, len(mine.Items))

	// The bid ledger was drained at settlement.
	bidders := request(t, s, fmt.Sprintf(`{"type":"get_bidders","item_id":%q}`, id))
	check.Equal(t, 0, len(bidders.Bids))
}

func TestDispatch_ClaimPrize_NonWinnerRejected(t *testing.T) {
	s := newTestServer(t)

	created := request(t, s, `{"type":"create_auction","name":"vase","price":1.0,"seller":"alice","attached_fee":0.1,"biddable":true}`)
	assert.True(t, created.Success)
	id := created.ItemID
	assert.True(t, request(t, s, fmt.Sprintf(`{"type":"place_bid","item_id":%q,"bidder":"bob","amount":2.0}`, id)).Success)

	time.Sleep(150 * time.Millisecond)

	resp := request(t, s, fmt.Sprintf(`{"type":"claim_prize","item_id":%q,"bid_index":0,"caller":"mallory"}`, id))
	check.False(t, resp.Success)

	// Nothing moved.
	check.True(t, s.book.EscrowBalance().Equal(decimal.NewFromInt(2)))
	check.True(t, s.book.Balance("alice").IsZero())
}

func TestDispatch_SetAndGetListingFee(t *testing.T) {
	s := newTestServer(t)

	resp := request(t, s, `{"type":"set_listing_fee","new_fee":0.25,"caller":"mallory"}`)
	check.False(t, resp.Success)

	resp = request(t, s, `{"type":"set_listing_fee","new_fee":0.25,"caller":"admin"}`)
	assert.True(t, resp.Success)

	got := request(t, s, `{"type":"get_listing_fee"}`)
	assert.True(t, got.Success)
	assert.NotEqual(t, nil, got.ListingFee)
	check.Equal(t, 0.25, *got.ListingFee)
}

func TestDispatch_ChangePrice(t *testing.T) {
	s := newTestServer(t)

	created := request(t, s, `{"type":"create_auction","name":"vase","price":1.0,"seller":"alice","attached_fee":0.1,"biddable":true}`)
	assert.True(t, created.Success)
	id := created.ItemID

	// Still inside the bidding window.
	resp := request(t, s, fmt.Sprintf(`{"type":"change_price","item_id":%q,"new_price":9.0,"caller":"alice"}`, id))
	check.False(t, resp.Success)

	time.Sleep(150 * time.Millisecond)

	resp = request(t, s, fmt.Sprintf(`{"type":"change_price","item_id":%q,"new_price":9.0,"caller":"alice"}`, id))
	assert.True(t, resp.Success)

	unsold := request(t, s, `{"type":"get_unsold"}`)
	assert.Equal(t, 1, len(unsold.Items))
	check.Equal(t, 9.0, unsold.Items[0].Price)
}
