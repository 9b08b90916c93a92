package core

import (
	"context"

	"github.com/shopspring/decimal"
)

// ValueTransfer is the port for moving escrowed funds out of the market.
// The market talks ONLY to this interface, never to a payment backend
// directly.
//
// Settlement spans several transfers that must land together or not at all,
// so the port is session-based: Begin opens a session, sends are staged
// against it, and Execute applies every staged transfer atomically. A staged
// send that the backend cannot honor fails at Send time, while the session
// can still be aborted without any funds having moved.
type ValueTransfer interface {
	Begin(ctx context.Context) (TransferSession, error)
}

// TransferSession stages sends and applies them atomically.
// Sessions are single-use: after Execute or Abort the session is dead.
type TransferSession interface {
	// Send stages a transfer of amount to the named account. A failure
	// here means the backend refused the transfer; nothing has moved yet.
	Send(to string, amount decimal.Decimal) error

	// Execute applies all staged transfers. A failure aborts the session
	// with no transfer applied.
	Execute() error

	// Abort discards all staged transfers.
	Abort() error
}

// IdentityRegistry is the port for the unique tokens backing listed items.
// The token for an item shares the item's id; the 1:1 pairing is established
// once at creation and re-pointed, never re-created, at settlement.
type IdentityRegistry interface {
	// Mint creates the token for a new item, owned by the named account
	// (the market's custody account for every listing).
	Mint(ctx context.Context, owner, id, metadataRef string) error

	// Transfer re-points ownership of an existing token.
	Transfer(ctx context.Context, from, to, id string) error

	// Burn destroys an existing token. The owner must be the current
	// owner. Used to undo a mint when the creation it belongs to fails.
	Burn(ctx context.Context, owner, id string) error
}
