package ingest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/skyblock-archive/auctions/internal/auction"
	"github.com/skyblock-archive/auctions/internal/bus"
	"github.com/skyblock-archive/auctions/internal/hotstore"
	"github.com/skyblock-archive/auctions/internal/offset"
	"github.com/skyblock-archive/auctions/internal/sqlsource"
	"github.com/skyblock-archive/auctions/internal/workerpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSource is a tiny in-memory sqlsource.Source for migrator tests.
type fakeSource struct {
	rows []sqlsource.Row
	bids map[auction.ID][]auction.Bid
}

func (f *fakeSource) RowsInWindow(ctx context.Context, o, n int64) ([]sqlsource.Row, error) {
	var out []sqlsource.Row
	for _, r := range f.rows {
		if r.ID >= o && r.ID < o+n {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeSource) BidsForRows(ctx context.Context, ids []auction.ID) (map[auction.ID][]auction.Bid, error) {
	out := make(map[auction.ID][]auction.Bid)
	for _, id := range ids {
		if bids, ok := f.bids[id]; ok {
			out[id] = bids
		}
	}
	return out, nil
}

func (f *fakeSource) MaxID(ctx context.Context) (int64, error) {
	var max int64
	for _, r := range f.rows {
		if r.ID > max {
			max = r.ID
		}
	}
	return max, nil
}

func newTestPipeline(t *testing.T) (*Pipeline, *workerpool.Pool, hotstore.Store) {
	t.Helper()
	store := hotstore.NewMemStore()
	pool := workerpool.New(4)
	pool.Start(context.Background())
	t.Cleanup(pool.Stop)

	tracker := offset.NewTracker(offset.NewMemCache(), 0)
	return NewPipeline(pool, store, tracker), pool, store
}

func TestHistoricalMigratorInsertsAuctionsAndBids(t *testing.T) {
	pipeline, pool, store := newTestPipeline(t)

	seller := auction.NewRandomID()
	bidder := auction.NewRandomID()
	a1 := auction.Auction{UUID: auction.NewRandomID(), ItemTag: "HYPERION", Seller: seller, Start: time.Now().Add(-time.Hour), End: time.Now()}
	a2 := auction.Auction{UUID: auction.NewRandomID(), ItemTag: "HYPERION", Seller: seller, Start: time.Now().Add(-time.Hour), End: time.Now()}

	source := &fakeSource{
		rows: []sqlsource.Row{{ID: 1, Auction: a1}, {ID: 2, Auction: a2}},
		bids: map[auction.ID][]auction.Bid{
			a1.UUID: {{Bidder: bidder, Amount: 1_000_000, Timestamp: time.Now()}},
		},
	}

	migrator := NewHistoricalMigrator(source, pipeline)
	require.NoError(t, migrator.Run(context.Background()))

	assert.Eventually(t, func() bool { return pool.Len() == 0 }, 2*time.Second, 5*time.Millisecond)

	versions, err := store.GetByUUID(context.Background(), a1.UUID)
	require.NoError(t, err)
	assert.NotEmpty(t, versions)

	combined, err := store.GetCombined(context.Background(), a1.UUID)
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_000), combined.HighestBid)
}

func TestHistoricalMigratorAdvancesCheckpointWithLag(t *testing.T) {
	pipeline, pool, _ := newTestPipeline(t)

	const windows = 12
	var rows []sqlsource.Row
	for i := int64(0); i < windows*historicalWindowSize; i += historicalWindowSize {
		rows = append(rows, sqlsource.Row{ID: i, Auction: auction.Auction{
			UUID: auction.NewRandomID(), ItemTag: "JUNK", Seller: auction.NewRandomID(), End: time.Now(),
		}})
	}
	source := &fakeSource{rows: rows}

	migrator := NewHistoricalMigrator(source, pipeline)
	require.NoError(t, migrator.Run(context.Background()))

	assert.Eventually(t, func() bool { return pool.Len() == 0 }, 2*time.Second, 5*time.Millisecond)
	// checkpoint should have advanced at least once but stay behind the
	// final processed offset by the configured 5-window lag.
	assert.Greater(t, pipeline.Offsets.Current(), int64(0))
	assert.Less(t, pipeline.Offsets.Current(), int64(windows*historicalWindowSize))
}

// fakeBusConsumer feeds one pre-baked batch of wire-format messages, then
// blocks until ctx is cancelled (simulating "no more messages available").
type fakeBusConsumer struct {
	mu        sync.Mutex
	batch     []bus.Message
	delivered bool
	committed int64
}

func (f *fakeBusConsumer) FetchBatch(ctx context.Context, max int) ([]bus.Message, error) {
	f.mu.Lock()
	if !f.delivered {
		f.delivered = true
		out := f.batch
		f.mu.Unlock()
		return out, nil
	}
	f.mu.Unlock()

	<-ctx.Done()
	return nil, ctx.Err()
}

func (f *fakeBusConsumer) Commit(ctx context.Context, o int64) error {
	f.mu.Lock()
	f.committed = o
	f.mu.Unlock()
	return nil
}

func (f *fakeBusConsumer) Close() error { return nil }

func wireMessage(t *testing.T, w wireEvent) bus.Message {
	t.Helper()
	raw, err := json.Marshal(w)
	require.NoError(t, err)
	return bus.Message{Topic: "SOLD_AUCTION", Value: raw}
}

func TestBusConsumerInsertsAndCommitsBatch(t *testing.T) {
	pipeline, pool, store := newTestPipeline(t)

	uid := auction.NewRandomID()
	seller := auction.NewRandomID()
	bidder := auction.NewRandomID()

	msg := wireMessage(t, wireEvent{
		UUID:    uid.String(),
		ItemTag: "HYPERION",
		Seller:  seller.String(),
		End:     time.Now().Unix(),
		Bids:    []wireBid{{Bidder: bidder.String(), Amount: 5_000_000, Timestamp: time.Now().Unix()}},
	})
	msg.Offset = 42

	consumer := &fakeBusConsumer{batch: []bus.Message{msg}}
	bc := NewBusConsumer(consumer, pipeline)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	err := bc.Run(ctx)
	assert.Error(t, err) // ctx deadline once the fake has nothing left to deliver

	assert.Eventually(t, func() bool { return pool.Len() == 0 }, time.Second, 5*time.Millisecond)

	combined, err := store.GetCombined(context.Background(), uid)
	require.NoError(t, err)
	assert.Equal(t, int64(5_000_000), combined.HighestBid)

	consumer.mu.Lock()
	assert.Equal(t, int64(42), consumer.committed)
	consumer.mu.Unlock()
}

func TestDecodeWireEventRejectsMalformedUUID(t *testing.T) {
	_, err := decodeWireEvent([]byte(`{"uuid":"not-a-uuid","seller":"also-not"}`))
	assert.Error(t, err)
}
