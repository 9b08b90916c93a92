package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cloudx-io/auctionhouse/events"
)

const (
	testAdmin   = "admin"
	testCustody = "market-custody"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type stagedSend struct {
	to     string
	amount decimal.Decimal
}

// fakeFunds implements ValueTransfer with staged sessions and injectable
// failures for testing.
type fakeFunds struct {
	SendFunc   func(to string, amount decimal.Decimal) error // runs before each staged send is accepted
	ExecuteErr error
	BeginErr   error

	paid     map[string]decimal.Decimal // applied transfers per account
	sessions []*fakeSession
}

func newFakeFunds() *fakeFunds {
	return &fakeFunds{paid: make(map[string]decimal.Decimal)}
}

func (f *fakeFunds) Begin(ctx context.Context) (TransferSession, error) {
	if f.BeginErr != nil {
		return nil, f.BeginErr
	}
	s := &fakeSession{funds: f}
	f.sessions = append(f.sessions, s)
	return s, nil
}

func (f *fakeFunds) paidTo(account string) decimal.Decimal {
	if v, ok := f.paid[account]; ok {
		return v
	}
	return decimal.Zero
}

func (f *fakeFunds) totalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, v := range f.paid {
		total = total.Add(v)
	}
	return total
}

type fakeSession struct {
	funds    *fakeFunds
	staged   []stagedSend
	executed bool
	aborted  bool
}

func (s *fakeSession) Send(to string, amount decimal.Decimal) error {
	if s.funds.SendFunc != nil {
		if err := s.funds.SendFunc(to, amount); err != nil {
			return err
		}
	}
	s.staged = append(s.staged, stagedSend{to: to, amount: amount})
	return nil
}

func (s *fakeSession) Execute() error {
	if s.funds.ExecuteErr != nil {
		return s.funds.ExecuteErr
	}
	for _, st := range s.staged {
		s.funds.paid[st.to] = s.funds.paidTo(st.to).Add(st.amount)
	}
	s.executed = true
	return nil
}

func (s *fakeSession) Abort() error {
	s.aborted = true
	s.staged = nil
	return nil
}

// fakeTokens implements IdentityRegistry over a plain owner map with
// injectable failures.
type fakeTokens struct {
	MintFunc     func(owner, id string) error
	TransferFunc func(from, to, id string) error
	BurnFunc     func(owner, id string) error

	owners map[string]string
	meta   map[string]string
}

func newFakeTokens() *fakeTokens {
	return &fakeTokens{
		owners: make(map[string]string),
		meta:   make(map[string]string),
	}
}

func (f *fakeTokens) Mint(ctx context.Context, owner, id, metadataRef string) error {
	if f.MintFunc != nil {
		if err := f.MintFunc(owner, id); err != nil {
			return err
		}
	}
	if _, ok := f.owners[id]; ok {
		return fmt.Errorf("token %s already minted", id)
	}
	f.owners[id] = owner
	f.meta[id] = metadataRef
	return nil
}

func (f *fakeTokens) Transfer(ctx context.Context, from, to, id string) error {
	if f.TransferFunc != nil {
		if err := f.TransferFunc(from, to, id); err != nil {
			return err
		}
	}
	owner, ok := f.owners[id]
	if !ok {
		return fmt.Errorf("token %s not minted", id)
	}
	if owner != from {
		return fmt.Errorf("token %s owned by %s, not %s", id, owner, from)
	}
	f.owners[id] = to
	return nil
}

func (f *fakeTokens) Burn(ctx context.Context, owner, id string) error {
	if f.BurnFunc != nil {
		if err := f.BurnFunc(owner, id); err != nil {
			return err
		}
	}
	cur, ok := f.owners[id]
	if !ok {
		return fmt.Errorf("token %s not minted", id)
	}
	if cur != owner {
		return fmt.Errorf("token %s owned by %s, not %s", id, cur, owner)
	}
	delete(f.owners, id)
	delete(f.meta, id)
	return nil
}

// captureNotifier records published events in order.
type captureNotifier struct {
	published []events.Event
}

func (c *captureNotifier) Publish(e events.Event) error {
	c.published = append(c.published, e)
	return nil
}

func testConfig() Config {
	return Config{
		Admin:             testAdmin,
		Custody:           testCustody,
		ListingFee:        dec("0.1"),
		RoyaltyFeePercent: 10,
		BiddingWindow:     time.Hour,
	}
}

func newTestMarket(t *testing.T) (*Market, *fakeFunds, *fakeTokens) {
	t.Helper()
	funds := newFakeFunds()
	tokens := newFakeTokens()
	return NewMarket(testConfig(), NewMarketStore(), funds, tokens, events.Discard), funds, tokens
}

// listItem creates a biddable item and fails the test on error.
func listItem(t *testing.T, m *Market, seller, price string, now time.Time) string {
	t.Helper()
	id, _, err := m.CreateItem(context.Background(), Listing{
		Name:        "test item",
		Description: "a test item",
		ImageRef:    "ipfs://image",
		MetadataRef: "ipfs://metadata",
		Price:       dec(price),
		Seller:      seller,
		AttachedFee: dec("0.1"),
		Biddable:    true,
	}, now)
	if err != nil {
		t.Fatalf("failed to create item: %v", err)
	}
	return id
}
