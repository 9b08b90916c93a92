package core

import "errors"

// Each precondition violation maps to exactly one named condition. Failures
// are synchronous and call-scoped: the triggering operation aborts with zero
// observable state change, and retry is entirely the caller's responsibility.
var (
	ErrInvalidPrice      = errors.New("invalid price")
	ErrInsufficientFee   = errors.New("attached value below listing fee")
	ErrInsufficientFunds = errors.New("bid below current price")
	ErrAuctionNotOpen    = errors.New("auction not open for bidding")
	ErrNotBiddable       = errors.New("item is not biddable")
	ErrAuctionStillLive  = errors.New("auction still live")
	ErrUnauthorized      = errors.New("caller not authorized")
	ErrNotWinner         = errors.New("caller is not the recorded winner")
	ErrPaymentFailed     = errors.New("payment failed")

	// ErrUnknownItem is returned for operations that reference an item id
	// the registry has never seen.
	ErrUnknownItem = errors.New("unknown item")
)
