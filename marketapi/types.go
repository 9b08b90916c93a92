// Package marketapi defines the wire format spoken by marketd. Requests are
// JSON documents discriminated by a "type" field; monetary values travel as
// floats and are normalized to the market's monetary precision on receipt.
package marketapi

import (
	"time"

	"github.com/cloudx-io/auctionhouse/core"
)

// Request type discriminators.
const (
	TypePing          = "ping"
	TypeCreateAuction = "create_auction"
	TypeSetListingFee = "set_listing_fee"
	TypeChangePrice   = "change_price"
	TypePlaceBid      = "place_bid"
	TypeClaimPrize    = "claim_prize"
	TypeGetListingFee = "get_listing_fee"
	TypeGetUnsold     = "get_unsold"
	TypeGetMyAuctions = "get_my_auctions"
	TypeGetSold       = "get_sold"
	TypeGetLive       = "get_live"
	TypeGetBidders    = "get_bidders"
)

// BaseRequest carries only the discriminator, decoded first to route the
// full payload.
type BaseRequest struct {
	Type string `json:"type"`
}

// CreateAuctionRequest lists a new item. AttachedFee is the value attached
// to the request and must cover the listing fee.
type CreateAuctionRequest struct {
	Type        string  `json:"type"`
	Name        string  `json:"name"`
	Description string  `json:"description"`
	ImageRef    string  `json:"image_ref"`
	MetadataRef string  `json:"metadata_ref"`
	Price       float64 `json:"price"`
	Seller      string  `json:"seller"`
	AttachedFee float64 `json:"attached_fee"`
	Biddable    bool    `json:"biddable"`
}

// SetListingFeeRequest updates the process-wide listing fee. Admin only.
type SetListingFeeRequest struct {
	Type   string  `json:"type"`
	NewFee float64 `json:"new_fee"`
	Caller string  `json:"caller"`
}

// ChangePriceRequest re-prices an ended auction. Item owner only.
type ChangePriceRequest struct {
	Type     string  `json:"type"`
	ItemID   string  `json:"item_id"`
	NewPrice float64 `json:"new_price"`
	Caller   string  `json:"caller"`
}

// PlaceBidRequest bids the attached amount on an open item.
type PlaceBidRequest struct {
	Type   string  `json:"type"`
	ItemID string  `json:"item_id"`
	Bidder string  `json:"bidder"`
	Amount float64 `json:"amount"`
}

// ClaimPrizeRequest settles an ended auction. Recorded winner only;
// BidIndex names the caller's winning bid record.
type ClaimPrizeRequest struct {
	Type     string `json:"type"`
	ItemID   string `json:"item_id"`
	BidIndex int    `json:"bid_index"`
	Caller   string `json:"caller"`
}

// QueryRequest covers the read-only operations. Caller scopes
// get_my_auctions; ItemID scopes get_bidders.
type QueryRequest struct {
	Type   string `json:"type"`
	ItemID string `json:"item_id,omitempty"`
	Caller string `json:"caller,omitempty"`
}

// ItemRecord is the wire snapshot of an auction item.
type ItemRecord struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	ImageRef    string    `json:"image_ref"`
	MetadataRef string    `json:"metadata_ref"`
	Price       float64   `json:"price"`
	Seller      string    `json:"seller"`
	Owner       string    `json:"owner"`
	Winner      string    `json:"winner,omitempty"`
	Sold        bool      `json:"sold"`
	Live        bool      `json:"live"`
	Biddable    bool      `json:"biddable"`
	Bids        int       `json:"bids"`
	Deadline    time.Time `json:"deadline"`
	CreatedAt   time.Time `json:"created_at"`
}

// BidRecord is the wire snapshot of one ledger entry.
type BidRecord struct {
	Bidder    string    `json:"bidder"`
	Amount    float64   `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
	Refunded  bool      `json:"refunded"`
	Won       bool      `json:"won"`
}

// MarketResponse is the uniform reply for every request type.
type MarketResponse struct {
	Type       string       `json:"type"`
	Success    bool         `json:"success"`
	Message    string       `json:"message,omitempty"`
	ItemID     string       `json:"item_id,omitempty"`
	ListingFee *float64     `json:"listing_fee,omitempty"`
	Items      []ItemRecord `json:"items,omitempty"`
	Bids       []BidRecord  `json:"bids,omitempty"`
}

// NewItemRecord converts a core snapshot to its wire form.
func NewItemRecord(it core.AuctionItem) ItemRecord {
	return ItemRecord{
		ID:          it.ID,
		Name:        it.Name,
		Description: it.Description,
		ImageRef:    it.ImageRef,
		MetadataRef: it.MetadataRef,
		Price:       it.Price.InexactFloat64(),
		Seller:      it.Seller,
		Owner:       it.Owner,
		Winner:      it.Winner,
		Sold:        it.Sold,
		Live:        it.Live,
		Biddable:    it.Biddable,
		Bids:        it.Bids,
		Deadline:    it.Deadline,
		CreatedAt:   it.CreatedAt,
	}
}

// NewItemRecords converts a snapshot sequence.
func NewItemRecords(items []core.AuctionItem) []ItemRecord {
	out := make([]ItemRecord, len(items))
	for i, it := range items {
		out[i] = NewItemRecord(it)
	}
	return out
}

// NewBidRecords converts a bid sequence.
func NewBidRecords(bids []core.Bid) []BidRecord {
	out := make([]BidRecord, len(bids))
	for i, b := range bids {
		out[i] = BidRecord{
			Bidder:    b.Bidder,
			Amount:    b.Amount.InexactFloat64(),
			Timestamp: b.Timestamp,
			Refunded:  b.Refunded,
			Won:       b.Won,
		}
	}
	return out
}
