// Package escrow provides the in-process ValueTransfer backend: a balance
// book holding one escrow pool for the market and per-account payout
// balances. Attached value enters the pool when an operation is accepted and
// leaves it only through committed transfer sessions.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/shopspring/decimal"

	"github.com/cloudx-io/auctionhouse/core"
)

// ErrSessionClosed is returned when a dead session is used again.
var ErrSessionClosed = errors.New("transfer session already closed")

// BalanceBook is an in-process implementation of core.ValueTransfer.
type BalanceBook struct {
	mu       sync.Mutex
	escrow   decimal.Decimal
	accounts map[string]decimal.Decimal

	// SendHook, when set, runs before each staged send is accepted and
	// can refuse it. Used to inject transfer failures in tests.
	SendHook func(to string, amount decimal.Decimal) error
}

// NewBalanceBook returns a book with an empty escrow pool.
func NewBalanceBook() *BalanceBook {
	return &BalanceBook{accounts: make(map[string]decimal.Decimal)}
}

// DepositEscrow adds attached value to the escrow pool.
func (b *BalanceBook) DepositEscrow(amount decimal.Decimal) error {
	if amount.Sign() < 0 {
		return fmt.Errorf("negative deposit %s", amount)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.escrow = b.escrow.Add(amount)
	return nil
}

// WithdrawEscrow removes attached value that never got committed, returning
// it to the caller's side.
func (b *BalanceBook) WithdrawEscrow(amount decimal.Decimal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if amount.Sign() < 0 || b.escrow.LessThan(amount) {
		return fmt.Errorf("cannot withdraw %s from escrow of %s", amount, b.escrow)
	}
	b.escrow = b.escrow.Sub(amount)
	return nil
}

// EscrowBalance reports the funds currently held by the market.
func (b *BalanceBook) EscrowBalance() decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.escrow
}

// Balance reports the total paid out to an account.
func (b *BalanceBook) Balance(account string) decimal.Decimal {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v, ok := b.accounts[account]; ok {
		return v
	}
	return decimal.Zero
}

// bookSnapshot is the CBOR shape of the book's durable state. Escrowed funds
// outlive the process that accepted them, so the book must be persisted
// alongside the market state it backs.
type bookSnapshot struct {
	Escrow   decimal.Decimal            `cbor:"escrow"`
	Accounts map[string]decimal.Decimal `cbor:"accounts"`
}

// WriteSnapshot serializes the escrow pool and account balances to w.
func (b *BalanceBook) WriteSnapshot(w io.Writer) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	snap := bookSnapshot{
		Escrow:   b.escrow,
		Accounts: make(map[string]decimal.Decimal, len(b.accounts)),
	}
	for account, v := range b.accounts {
		snap.Accounts[account] = v
	}

	if err := cbor.NewEncoder(w).Encode(snap); err != nil {
		return fmt.Errorf("encode balance book snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot replaces the book's balances with a previously written
// snapshot.
func (b *BalanceBook) ReadSnapshot(r io.Reader) error {
	var snap bookSnapshot
	if err := cbor.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("decode balance book snapshot: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.escrow = snap.Escrow
	b.accounts = make(map[string]decimal.Decimal, len(snap.Accounts))
	for account, v := range snap.Accounts {
		b.accounts[account] = v
	}
	return nil
}

// Begin opens a transfer session against the escrow pool.
func (b *BalanceBook) Begin(ctx context.Context) (core.TransferSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &session{book: b}, nil
}

type staged struct {
	to     string
	amount decimal.Decimal
}

// session stages sends against the book. Staging validates each send against
// the escrow pool minus what the session has already staged, so an
// overdrawing transfer fails at Send time while nothing has moved yet.
type session struct {
	book   *BalanceBook
	staged []staged
	total  decimal.Decimal
	closed bool
}

func (s *session) Send(to string, amount decimal.Decimal) error {
	if s.closed {
		return ErrSessionClosed
	}
	if to == "" {
		return fmt.Errorf("transfer to empty account")
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("negative transfer %s to %s", amount, to)
	}
	if hook := s.book.SendHook; hook != nil {
		if err := hook(to, amount); err != nil {
			return err
		}
	}

	s.book.mu.Lock()
	defer s.book.mu.Unlock()
	if s.book.escrow.Sub(s.total).LessThan(amount) {
		return fmt.Errorf("escrow holds %s, %s already staged, cannot send %s to %s",
			s.book.escrow, s.total, amount, to)
	}
	s.staged = append(s.staged, staged{to: to, amount: amount})
	s.total = s.total.Add(amount)
	return nil
}

func (s *session) Execute() error {
	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true

	s.book.mu.Lock()
	defer s.book.mu.Unlock()
	// Staging already validated against the pool; the invariant can only
	// break if sessions interleave, which the market's lock rules out.
	if s.book.escrow.LessThan(s.total) {
		return fmt.Errorf("escrow holds %s, cannot execute staged total %s", s.book.escrow, s.total)
	}
	for _, st := range s.staged {
		s.book.accounts[st.to] = s.book.accounts[st.to].Add(st.amount)
	}
	s.book.escrow = s.book.escrow.Sub(s.total)
	return nil
}

func (s *session) Abort() error {
	if s.closed {
		return ErrSessionClosed
	}
	s.closed = true
	s.staged = nil
	s.total = decimal.Zero
	return nil
}
