package query

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyblock-archive/auctions/internal/auction"
	"github.com/skyblock-archive/auctions/internal/hotstore"
)

func newTestEngine() (*Engine, hotstore.Store) {
	hot := hotstore.NewMemStore()
	router := NewTierRouter(hot, nil, false, 3)
	engine := NewEngine(router, hot, NewMemSummaryStore(), nil, nil)
	return engine, hot
}

func TestSummaryFillsMissingDaysAndCaches(t *testing.T) {
	engine, hot := newTestEngine()
	ctx := context.Background()

	end := time.Now().UTC()
	day := time.Date(end.Year(), end.Month(), end.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)

	a := auction.Auction{UUID: auction.NewRandomID(), ItemTag: "HYPERION", Seller: auction.NewRandomID(),
		End: day.Add(6 * time.Hour), Bids: []auction.Bid{{Bidder: auction.NewRandomID(), Amount: 1000}}}
	require.NoError(t, hot.Insert(ctx, a, day.Add(7*time.Hour)))

	first, err := engine.Summary(ctx, "HYPERION", nil, nil, &end)
	require.NoError(t, err)
	assert.NotEmpty(t, first)

	second, err := engine.Summary(ctx, "HYPERION", nil, nil, &end)
	require.NoError(t, err)
	assert.Equal(t, len(first), len(second))
}

func TestFilteredDelegatesToRouter(t *testing.T) {
	engine, hot := newTestEngine()
	ctx := context.Background()
	now := time.Now()

	a := auction.Auction{UUID: auction.NewRandomID(), ItemTag: "HYPERION", Seller: auction.NewRandomID(), End: now.Add(-time.Hour)}
	require.NoError(t, hot.Insert(ctx, a, now))

	got, err := engine.Filtered(ctx, "HYPERION", nil, now.Add(-2*time.Hour), now, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.UUID, got[0].UUID)
}

func TestRecentOverviewWidensWindowWhenNarrowIsShort(t *testing.T) {
	engine, hot := newTestEngine()
	ctx := context.Background()
	now := time.Now()

	a := auction.Auction{UUID: auction.NewRandomID(), ItemTag: "HYPERION", Seller: auction.NewRandomID(),
		End: now.Add(-48 * time.Hour), Bids: []auction.Bid{{Bidder: auction.NewRandomID(), Amount: 10}}}
	require.NoError(t, hot.Insert(ctx, a, now))

	results, _, err := engine.RecentOverview(ctx, "HYPERION", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, a.UUID, results[0].UUID)
}
