package auction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombineDropsSelfSellerVersions(t *testing.T) {
	id := NewRandomID()
	corrupt := Auction{UUID: id, Seller: id}
	clean := Auction{UUID: id, Seller: NewRandomID()}

	out, ok := Combine([]Auction{corrupt, clean})

	require.True(t, ok)
	assert.Equal(t, clean.Seller, out.Seller)
}

func TestCombineAllVersionsCorruptReturnsFalse(t *testing.T) {
	id := NewRandomID()
	_, ok := Combine([]Auction{{UUID: id, Seller: id}})
	assert.False(t, ok)
}

func TestCombineUnionsBidsDedupedByAmount(t *testing.T) {
	id := NewRandomID()
	bidderA, bidderB := NewRandomID(), NewRandomID()
	listed := Auction{UUID: id, Seller: NewRandomID(), Bids: []Bid{
		{Bidder: bidderA, Amount: 100},
	}}
	sold := Auction{UUID: id, Seller: NewRandomID(), Bids: []Bid{
		{Bidder: bidderA, Amount: 100},
		{Bidder: bidderB, Amount: 300},
	}}

	out, ok := Combine([]Auction{listed, sold})

	require.True(t, ok)
	assert.Len(t, out.Bids, 2)
	assert.Equal(t, int64(300), out.HighestBid)
	assert.Equal(t, bidderB, out.HighestBidder)
}

func TestCombineFillsDefaultedFieldsFromAnyVersion(t *testing.T) {
	id := NewRandomID()
	coop := []ID{NewRandomID()}
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	profileID := NewRandomID()

	sparse := Auction{UUID: id, Seller: NewRandomID()}
	rich := Auction{
		UUID:        id,
		Seller:      NewRandomID(),
		CoopMembers: coop,
		StartingBid: 50,
		Category:    "misc",
		Start:       start,
		ProfileID:   profileID,
	}

	out, ok := Combine([]Auction{sparse, rich})

	require.True(t, ok)
	assert.Equal(t, coop, out.CoopMembers)
	assert.Equal(t, int64(50), out.StartingBid)
	assert.Equal(t, "misc", out.Category)
	assert.True(t, start.Equal(out.Start))
	assert.Equal(t, profileID, out.ProfileID)
}

func TestCombineKeepsFirstNonDefaultValueEncountered(t *testing.T) {
	id := NewRandomID()
	first := Auction{UUID: id, Seller: NewRandomID(), Category: "weapon"}
	second := Auction{UUID: id, Seller: NewRandomID(), Category: "armor"}

	out, ok := Combine([]Auction{first, second})

	require.True(t, ok)
	assert.Equal(t, "weapon", out.Category)
}
