package auction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/skyblock-archive/auctions/internal/timebucket"
)

func sampleAuction() Auction {
	return Auction{
		UUID:        NewRandomID(),
		ItemTag:     "HYPERION",
		ItemName:    "Hyperion",
		Category:    "weapon",
		Tier:        "LEGENDARY",
		BIN:         true,
		StartingBid: 100_000_000,
		Seller:      NewRandomID(),
		CoopMembers: []ID{NewRandomID()},
		Start:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		End:         time.Date(2024, 3, 2, 12, 0, 0, 0, time.UTC),
		Attributes:  map[string]string{"color": "AA0000"},
		Enchants:    map[string]int{"ultimate_wise": 5},
		Count:       1,
	}
}

func TestEncodeDecodeRoundTripNoBids(t *testing.T) {
	a := sampleAuction()
	now := a.End.Add(time.Hour)

	stored := Encode(a, now)
	got := Decode(stored)

	assert.Equal(t, a.UUID, got.UUID)
	assert.Equal(t, a.ItemTag, got.ItemTag)
	assert.Equal(t, "AA0000", got.Color)
	assert.False(t, got.HighestBidder.IsZero(), "no-bid auctions get a synthetic highest bidder")
	assert.Equal(t, int64(0), got.HighestBid)
	assert.False(t, got.IsSold, "end in the past with no bids is not sold: is_sold requires highest_bid > 0")
	assert.Equal(t, a.Seller, got.ProfileID, "profile_id defaults to seller")
}

func TestEncodeHighestBidIsArgMax(t *testing.T) {
	a := sampleAuction()
	bidder1, bidder2 := NewRandomID(), NewRandomID()
	a.Bids = []Bid{
		{Bidder: bidder1, Amount: 100},
		{Bidder: bidder2, Amount: 250},
		{Bidder: bidder1, Amount: 200},
	}
	now := a.End.Add(time.Hour)

	stored := Encode(a, now)

	assert.Equal(t, int64(250), stored.HighestBid)
	assert.Equal(t, bidder2, stored.HighestBidder)
}

func TestEncodeIsSoldRequiresPositiveBidAndElapsedEnd(t *testing.T) {
	a := sampleAuction()
	a.Bids = []Bid{{Bidder: NewRandomID(), Amount: 500}}

	notYetEnded := Encode(a, a.End.Add(-time.Minute))
	assert.False(t, notYetEnded.IsSold)

	ended := Encode(a, a.End.Add(time.Minute))
	assert.True(t, ended.IsSold)

	noBids := sampleAuction()
	noBids.End = a.End
	stillEnded := Encode(noBids, a.End.Add(time.Minute))
	assert.False(t, stillEnded.IsSold, "is_sold requires highest_bid > 0")
}

func TestEncodeBidTimestampRebasedToUTC(t *testing.T) {
	a := sampleAuction()
	loc := time.FixedZone("UTC-5", -5*60*60)
	local := time.Date(2024, 3, 2, 10, 0, 0, 0, loc)
	a.Bids = []Bid{{Bidder: NewRandomID(), Amount: 10, Timestamp: local}}

	stored := Encode(a, a.End.Add(time.Hour))

	assert.Equal(t, time.UTC, stored.Bids[0].Timestamp.Location())
	assert.True(t, stored.Bids[0].Timestamp.Equal(local))
}

func TestEncodeBidProfileIDDefaultsToBidder(t *testing.T) {
	a := sampleAuction()
	bidder := NewRandomID()
	a.Bids = []Bid{{Bidder: bidder, Amount: 10}}

	stored := Encode(a, a.End.Add(time.Hour))

	assert.Equal(t, bidder, stored.Bids[0].ProfileID)
}

func TestEncodeTimeKeyMatchesTimebucket(t *testing.T) {
	a := sampleAuction()
	stored := Encode(a, a.End.Add(time.Hour))
	assert.Equal(t, timebucket.Bucket(a.ItemTag, a.End), stored.TimeKey)
}

func TestNormalizeEnchantmentsDedupesUnknown(t *testing.T) {
	entries := []EnchantEntry{
		{Name: "sharpness", Level: 7},
		{Name: "unknown", Level: 1},
		{Name: "unknown", Level: 2},
		{Name: "unknown", Level: 3},
	}

	out := NormalizeEnchantments(entries)

	assert.Equal(t, 7, out["sharpness"])
	assert.Equal(t, 1, out["unknown"])
	assert.Equal(t, 2, out["unknown_2"])
	assert.Equal(t, 3, out["unknown_3"])
}

func TestDeriveItemUIDFromHexAttribute(t *testing.T) {
	a := sampleAuction()
	a.Attributes["uid"] = "ff"

	stored := Encode(a, a.End.Add(time.Hour))

	assert.Equal(t, int64(255), stored.ItemUID)
}

func TestDeriveItemUIDFallbackIsDeterministic(t *testing.T) {
	a := sampleAuction()
	delete(a.Attributes, "uid")

	first := Encode(a, a.End.Add(time.Hour))
	second := Encode(a, a.End.Add(time.Hour))

	assert.Equal(t, first.ItemUID, second.ItemUID)
	assert.Greater(t, first.ItemUID, int64(0))
}
