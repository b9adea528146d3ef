package ingest

import (
	"context"
	"time"

	"github.com/skyblock-archive/auctions/internal/auction"
	"github.com/skyblock-archive/auctions/internal/obslog"
	"github.com/skyblock-archive/auctions/internal/sqlsource"
)

const (
	historicalWindowSize      = 2500
	auctionMicroBatch         = 12
	historicalBidderMicroBatch = 3
	checkpointLagBatches      = 5
)

// HistoricalMigrator pages sqlsource.Source in primary-key windows, fans
// each window's auctions (grouped by tag) and bids (grouped by bidder)
// out onto the worker pool, and lags the persisted checkpoint by
// checkpointLagBatches windows so it never points past in-flight work.
type HistoricalMigrator struct {
	Source sqlsource.Source
	*Pipeline

	log obslog.Logger
}

func NewHistoricalMigrator(source sqlsource.Source, pipeline *Pipeline) *HistoricalMigrator {
	return &HistoricalMigrator{
		Source:   source,
		Pipeline: pipeline,
		log:      obslog.New("component", "ingest.historical_migrator"),
	}
}

// Run pages from the tracker's current offset up to the source's current
// MaxID, enqueueing work until caught up. It returns once the backlog is
// drained; callers hand off to the live bus consumer afterward.
func (m *HistoricalMigrator) Run(ctx context.Context) error {
	maxID, err := m.Source.MaxID(ctx)
	if err != nil {
		return err
	}

	offsetVal := m.Offsets.Current()

	for offsetVal <= maxID {
		if err := ctx.Err(); err != nil {
			return err
		}

		rows, err := m.Source.RowsInWindow(ctx, offsetVal, historicalWindowSize)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			offsetVal += historicalWindowSize
			continue
		}

		auctions := make([]auction.Auction, len(rows))
		uuids := make([]auction.ID, len(rows))
		for i, r := range rows {
			auctions[i] = r.Auction
			uuids[i] = r.UUID
		}

		if err := m.enqueueAuctions(ctx, auctions); err != nil {
			return err
		}

		bids, err := m.Source.BidsForRows(ctx, uuids)
		if err != nil {
			return err
		}
		if err := m.enqueueBids(ctx, auctions, bids); err != nil {
			return err
		}

		nextOffset := offsetVal + historicalWindowSize
		checkpoint := nextOffset - checkpointLagBatches*historicalWindowSize
		if checkpoint > 0 {
			m.Pool.Enqueue(func(ctx context.Context) error {
				return m.Offsets.Set(ctx, checkpoint)
			})
		}

		offsetVal = nextOffset
	}

	return nil
}

func (m *HistoricalMigrator) enqueueAuctions(ctx context.Context, auctions []auction.Auction) error {
	for tag, records := range groupByTag(auctions) {
		tag := tag
		for _, group := range chunk(records, auctionMicroBatch) {
			group := group
			if err := m.awaitCapacity(ctx, m.QueueHighWatermarkAuctions); err != nil {
				return err
			}
			m.Pool.Enqueue(instrumented(func(ctx context.Context) error {
				return m.Store.InsertBatchSameTag(ctx, tag, group, time.Now())
			}))
		}
	}
	return nil
}

func (m *HistoricalMigrator) enqueueBids(ctx context.Context, auctions []auction.Auction, bids map[auction.ID][]auction.Bid) error {
	withBids := make([]auction.Auction, 0, len(auctions))
	for _, a := range auctions {
		a.Bids = bids[a.UUID]
		if len(a.Bids) > 0 {
			withBids = append(withBids, a)
		}
	}

	for _, group := range chunkBidders(groupBidsByBidder(withBids), historicalBidderMicroBatch) {
		group := group
		if err := m.awaitCapacity(ctx, m.QueueHighWatermarkBids); err != nil {
			return err
		}
		m.Pool.Enqueue(instrumented(func(ctx context.Context) error {
			return m.insertBids(ctx, group, time.Now())
		}))
	}
	return nil
}
