package events

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func TestSubjects(t *testing.T) {
	check.Equal(t, "market.events.item_created", ItemCreated{}.Subject())
	check.Equal(t, "market.events.bid_accepted", BidAccepted{}.Subject())
	check.Equal(t, "market.events.item_settled", ItemSettled{}.Subject())
}

func TestItemCreated_WireShape(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	data, err := json.Marshal(ItemCreated{
		EventID:   "ev-1",
		ItemID:    "item-1",
		Seller:    "alice",
		Owner:     "alice",
		Price:     1.5,
		Timestamp: ts,
	})
	assert.Nil(t, err)

	var decoded map[string]any
	assert.Nil(t, json.Unmarshal(data, &decoded))
	check.Equal(t, "ev-1", decoded["event_id"])
	check.Equal(t, "item-1", decoded["item_id"])
	check.Equal(t, "alice", decoded["seller"])
	check.Equal(t, 1.5, decoded["price"])
	check.Equal(t, false, decoded["sold"])
	check.Equal(t, "2025-06-01T12:00:00Z", decoded["timestamp"])
}

func TestBidAccepted_WireShape(t *testing.T) {
	data, err := json.Marshal(BidAccepted{
		EventID:  "ev-2",
		ItemID:   "item-1",
		Bidder:   "bob",
		Amount:   2.0,
		BidCount: 3,
	})
	assert.Nil(t, err)

	var decoded map[string]any
	assert.Nil(t, json.Unmarshal(data, &decoded))
	check.Equal(t, "bob", decoded["bidder"])
	check.Equal(t, 2.0, decoded["amount"])
	check.Equal(t, 3.0, decoded["bid_count"])
}

func TestItemSettled_WireShape(t *testing.T) {
	data, err := json.Marshal(ItemSettled{
		EventID:       "ev-3",
		ItemID:        "item-1",
		Seller:        "alice",
		PreviousOwner: "alice",
		NewOwner:      "carol",
		Price:         3.0,
		Royalty:       0.3,
		RefundedBids:  2,
	})
	assert.Nil(t, err)

	var decoded map[string]any
	assert.Nil(t, json.Unmarshal(data, &decoded))
	check.Equal(t, "carol", decoded["new_owner"])
	check.Equal(t, "alice", decoded["previous_owner"])
	check.Equal(t, 0.3, decoded["royalty"])
	check.Equal(t, 2.0, decoded["refunded_bids"])
}

func TestLogNotifierAndDiscard(t *testing.T) {
	check.Nil(t, LogNotifier{}.Publish(ItemCreated{ItemID: "item-1"}))
	check.Nil(t, Discard.Publish(BidAccepted{ItemID: "item-1"}))
}
