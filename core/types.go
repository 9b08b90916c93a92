package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// AuctionItem is the durable record for one listed item.
//
// Seller is fixed at first listing and never changes afterwards: the royalty
// always flows to the original lister, even after the item has been resold.
// Owner is the current custodian and changes only through settlement.
// Collapsing the two into one field would silently break the royalty split
// for resold items.
type AuctionItem struct {
	ID          string
	Name        string
	Description string
	ImageRef    string
	MetadataRef string

	// Price is the current ask, raised to the leading bid amount by each
	// accepted bid. It never decreases while a bidding window is open.
	Price  decimal.Decimal
	Seller string
	Owner  string

	// Winner is the leading bidder, empty when there is none. It is set by
	// each accepted bid and cleared again at settlement.
	Winner string

	Sold     bool
	Live     bool
	Biddable bool

	// Bids counts accepted bids since the last settlement.
	Bids int

	// Deadline is the absolute time after which claiming is permitted and
	// before which bidding and price changes are blocked.
	Deadline  time.Time
	CreatedAt time.Time
}

// Bid is one accepted bid, held in insertion order per item. The sequence for
// an item is destroyed once settlement's refund phase completes.
type Bid struct {
	Bidder    string
	Amount    decimal.Decimal
	Timestamp time.Time
	Refunded  bool
	Won       bool
}

// Listing describes a new item to put up for auction.
type Listing struct {
	Name        string
	Description string
	ImageRef    string
	MetadataRef string
	Price       decimal.Decimal
	Seller      string

	// AttachedFee is the value attached to the creation request. It must
	// cover the market's listing fee.
	AttachedFee decimal.Decimal

	// Biddable is fixed at creation and gates whether bids are accepted.
	Biddable bool
}
