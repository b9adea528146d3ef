package coldstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skyblock-archive/auctions/internal/auction"
)

func TestStoreMonthThenGetMonthRoundTrips(t *testing.T) {
	ctx := context.Background()
	store := New(NewLocalClient(t.TempDir()))

	records := []auction.Auction{
		{UUID: auction.NewRandomID(), ItemTag: "HYPERION", End: time.Now()},
		{UUID: auction.NewRandomID(), ItemTag: "HYPERION", End: time.Now()},
	}

	require.NoError(t, store.StoreMonth(ctx, "HYPERION", 2024, 3, records))

	got, err := store.GetMonth(ctx, "HYPERION", 2024, 3)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestGetMonthMissingIsEmptyNotError(t *testing.T) {
	ctx := context.Background()
	store := New(NewLocalClient(t.TempDir()))

	got, err := store.GetMonth(ctx, "HYPERION", 2024, 3)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMonthExists(t *testing.T) {
	ctx := context.Background()
	store := New(NewLocalClient(t.TempDir()))

	exists, err := store.MonthExists(ctx, "HYPERION", 2024, 3)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.StoreMonth(ctx, "HYPERION", 2024, 3, []auction.Auction{
		{UUID: auction.NewRandomID(), ItemTag: "HYPERION"},
	}))

	exists, err = store.MonthExists(ctx, "HYPERION", 2024, 3)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLookupFindsRecordAfterStoreMonth(t *testing.T) {
	ctx := context.Background()
	store := New(NewLocalClient(t.TempDir()))

	target := auction.Auction{UUID: auction.NewRandomID(), ItemTag: "HYPERION", ItemName: "Hyperion"}
	require.NoError(t, store.StoreMonth(ctx, "HYPERION", 2024, 3, []auction.Auction{target}))

	got, ok, err := store.Lookup(ctx, target.UUID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Hyperion", got.ItemName)

	assert.True(t, store.MayContain(target.UUID))
}

func TestLookupUnseenUUIDReturnsFalse(t *testing.T) {
	ctx := context.Background()
	store := New(NewLocalClient(t.TempDir()))
	require.NoError(t, store.StoreMonth(ctx, "HYPERION", 2024, 3, []auction.Auction{
		{UUID: auction.NewRandomID(), ItemTag: "HYPERION"},
	}))

	_, ok, err := store.Lookup(ctx, auction.NewRandomID())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLookupFindsRecordOnFreshStoreThatNeverWroteTheTag(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	writer := New(NewLocalClient(root))
	target := auction.Auction{UUID: auction.NewRandomID(), ItemTag: "HYPERION", ItemName: "Hyperion"}
	require.NoError(t, writer.StoreMonth(ctx, "HYPERION", 2024, 3, []auction.Auction{target}))

	// A second Store instance over the same object store, standing in for
	// cmd/server reading archives cmd/migrator wrote in a separate process.
	// It never calls StoreMonth or LoadIndexes with this tag, so its
	// in-memory perTag cache starts out empty.
	reader := New(NewLocalClient(root))

	got, ok, err := reader.Lookup(ctx, target.UUID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Hyperion", got.ItemName)
}

func TestLoadIndexesWarmsConfiguredAndDiscoveredTags(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()

	writer := New(NewLocalClient(root))
	require.NoError(t, writer.StoreMonth(ctx, "HYPERION", 2024, 3, []auction.Auction{
		{UUID: auction.NewRandomID(), ItemTag: "HYPERION"},
	}))
	require.NoError(t, writer.StoreMonth(ctx, "ASPECT_OF_THE_END", 2024, 3, []auction.Auction{
		{UUID: auction.NewRandomID(), ItemTag: "ASPECT_OF_THE_END"},
	}))

	reader := New(NewLocalClient(root))
	require.NoError(t, reader.LoadIndexes(ctx, []string{"HYPERION"}))

	reader.index.mu.Lock()
	_, hasConfigured := reader.index.perTag["HYPERION"]
	_, hasDiscovered := reader.index.perTag["ASPECT_OF_THE_END"]
	reader.index.mu.Unlock()

	assert.True(t, hasConfigured, "configured tag should be warmed by LoadIndexes")
	assert.True(t, hasDiscovered, "tag absent from cfg.Tags but present in the object store should also be warmed")
}

func TestSanitizeTagReplacesSeparatorsAndNull(t *testing.T) {
	assert.Equal(t, "unknown", sanitizeTag(""))
	assert.Equal(t, "A_B", sanitizeTag("A/B"))
}
