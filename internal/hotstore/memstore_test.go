package hotstore

import (
	"context"
	"testing"
	"time"

	"github.com/skyblock-archive/auctions/internal/auction"
	"github.com/skyblock-archive/auctions/internal/errs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mkAuction(tag string, seller auction.ID, end time.Time) auction.Auction {
	return auction.Auction{
		UUID:    auction.NewRandomID(),
		ItemTag: tag,
		Seller:  seller,
		Start:   end.Add(-time.Hour),
		End:     end,
	}
}

func TestInsertIsIdempotentForSameSeller(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	a := mkAuction("HYPERION", auction.NewRandomID(), time.Now())

	require.NoError(t, s.Insert(ctx, a, time.Now()))
	err := s.Insert(ctx, a, time.Now())

	k, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.AlreadyExists, k)
}

func TestGetByUUIDReturnsAllVersions(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	id := auction.NewRandomID()
	end := time.Now()

	listed := auction.Auction{UUID: id, ItemTag: "HYPERION", Seller: auction.NewRandomID(), Start: end.Add(-time.Hour), End: end}
	sold := auction.Auction{UUID: id, ItemTag: "HYPERION", Seller: auction.NewRandomID(), End: end,
		Bids: []auction.Bid{{Bidder: auction.NewRandomID(), Amount: 500}}}

	require.NoError(t, s.Insert(ctx, listed, end.Add(time.Hour)))
	require.NoError(t, s.Insert(ctx, sold, end.Add(time.Hour)))

	versions, err := s.GetByUUID(ctx, id)
	require.NoError(t, err)
	assert.Len(t, versions, 2)
}

func TestGetCombinedMergesVersions(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	id := auction.NewRandomID()
	end := time.Now()

	listed := auction.Auction{UUID: id, ItemTag: "HYPERION", Seller: auction.NewRandomID(), Start: end.Add(-time.Hour), End: end, Category: "weapon"}
	sold := auction.Auction{UUID: id, ItemTag: "HYPERION", Seller: auction.NewRandomID(), End: end,
		Bids: []auction.Bid{{Bidder: auction.NewRandomID(), Amount: 500}}}

	require.NoError(t, s.Insert(ctx, listed, end.Add(time.Hour)))
	require.NoError(t, s.Insert(ctx, sold, end.Add(time.Hour)))

	combined, err := s.GetCombined(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "weapon", combined.Category)
	assert.Equal(t, int64(500), combined.HighestBid)
}

func TestRangeFiltersByWindow(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	now := time.Now()

	inWindow := mkAuction("HYPERION", auction.NewRandomID(), now.Add(-time.Hour))
	outOfWindow := mkAuction("HYPERION", auction.NewRandomID(), now.Add(-48*time.Hour))

	require.NoError(t, s.Insert(ctx, inWindow, now))
	require.NoError(t, s.Insert(ctx, outOfWindow, now))

	got, err := s.Range(ctx, "HYPERION", now.Add(-2*time.Hour), now, nil, nil, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, inWindow.UUID, got[0].UUID)
}

func TestInsertBatchSameTagRejectsMixedTags(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	now := time.Now()

	batch := []auction.Auction{
		mkAuction("HYPERION", auction.NewRandomID(), now),
		mkAuction("ASPECT_OF_THE_END", auction.NewRandomID(), now),
	}

	err := s.InsertBatchSameTag(ctx, "HYPERION", batch, now)
	k, ok := errs.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, errs.InvalidInput, k)
}

func TestInsertBatchSameTagRetrofitsFromListedVersion(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	id := auction.NewRandomID()
	now := time.Now()
	end := now.Add(-time.Minute)

	listed := auction.Auction{UUID: id, ItemTag: "HYPERION", Seller: auction.NewRandomID(),
		Start: end.Add(-time.Hour), Count: 1, ItemName: "Hyperion", End: end}
	require.NoError(t, s.Insert(ctx, listed, now))

	sparse := auction.Auction{UUID: id, ItemTag: "HYPERION", Seller: auction.NewRandomID(), End: end,
		Bids: []auction.Bid{{Bidder: auction.NewRandomID(), Amount: 700}}}

	require.NoError(t, s.InsertBatchSameTag(ctx, "HYPERION", []auction.Auction{sparse}, now))

	combined, err := s.GetCombined(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Hyperion", combined.ItemName)
	assert.Equal(t, 1, combined.Count)
}

func TestRecentBySellerRespectsThirtyDayWindow(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	seller := auction.NewRandomID()
	now := time.Now()

	recent := mkAuction("HYPERION", seller, now.Add(-time.Hour))
	old := mkAuction("HYPERION", seller, now.Add(-60*24*time.Hour))

	require.NoError(t, s.Insert(ctx, recent, now))
	require.NoError(t, s.Insert(ctx, old, now))

	got, err := s.RecentBySeller(ctx, seller, now, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, recent.UUID, got[0].UUID)
}

func TestDailyAggregateComputesVolumeAndMean(t *testing.T) {
	s := NewMemStore()
	ctx := context.Background()
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	a1 := mkAuction("HYPERION", auction.NewRandomID(), day.Add(6*time.Hour))
	a1.Bids = []auction.Bid{{Bidder: auction.NewRandomID(), Amount: 100}}
	a2 := mkAuction("HYPERION", auction.NewRandomID(), day.Add(12*time.Hour))
	a2.Bids = []auction.Bid{{Bidder: auction.NewRandomID(), Amount: 300}}

	require.NoError(t, s.Insert(ctx, a1, day.Add(13*time.Hour)))
	require.NoError(t, s.Insert(ctx, a2, day.Add(13*time.Hour)))

	rec, err := s.DailyAggregate(ctx, "HYPERION", nil, day)
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Volume)
	assert.Equal(t, 200.0, rec.Mean)
}
