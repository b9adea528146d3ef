package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/skyblock-archive/auctions/internal/auction"
	"github.com/skyblock-archive/auctions/internal/bus"
	"github.com/skyblock-archive/auctions/internal/errs"
	"github.com/skyblock-archive/auctions/internal/obslog"
	"github.com/skyblock-archive/auctions/internal/workerpool"
)

const (
	liveBatchSize = 400
	liveTagGroup  = 10
	liveBidGroup  = 20
	liveFanoutDeg = 10
)

// wireEvent is the JSON shape SOLD_AUCTION and NEW_AUCTION messages carry.
type wireEvent struct {
	UUID          string            `json:"uuid"`
	ItemTag       string            `json:"item_tag"`
	ItemName      string            `json:"item_name"`
	Category      string            `json:"category"`
	Tier          string            `json:"tier"`
	BIN           bool              `json:"bin"`
	StartingBid   int64             `json:"starting_bid"`
	Seller        string            `json:"seller"`
	ProfileID     string            `json:"profile_id"`
	CoopMembers   []string          `json:"coop_members"`
	Start         int64             `json:"start"`
	End           int64             `json:"end"`
	ItemCreatedAt int64             `json:"item_created_at"`
	ItemBytes     []byte            `json:"item_bytes"`
	Attributes    map[string]string `json:"attributes"`
	Count         int               `json:"count"`
	Bids          []wireBid         `json:"bids"`
}

type wireBid struct {
	Bidder    string `json:"bidder"`
	ProfileID string `json:"profile_id"`
	Amount    int64  `json:"amount"`
	Timestamp int64  `json:"timestamp"`
}

func decodeWireEvent(raw []byte) (auction.Auction, error) {
	var w wireEvent
	if err := json.Unmarshal(raw, &w); err != nil {
		return auction.Auction{}, errs.Wrap(errs.InvalidInput, "ingest.decodeWireEvent", err)
	}

	uid, err := auction.ParseID(w.UUID)
	if err != nil {
		return auction.Auction{}, errs.Wrap(errs.InvalidInput, "ingest.decodeWireEvent", err)
	}
	seller, err := auction.ParseID(w.Seller)
	if err != nil {
		return auction.Auction{}, errs.Wrap(errs.InvalidInput, "ingest.decodeWireEvent", err)
	}
	profile, _ := auction.ParseID(w.ProfileID)

	coop := make([]auction.ID, 0, len(w.CoopMembers))
	for _, c := range w.CoopMembers {
		if id, err := auction.ParseID(c); err == nil {
			coop = append(coop, id)
		}
	}

	bids := make([]auction.Bid, 0, len(w.Bids))
	for _, b := range w.Bids {
		bidder, err := auction.ParseID(b.Bidder)
		if err != nil {
			continue
		}
		bidProfile, _ := auction.ParseID(b.ProfileID)
		bids = append(bids, auction.Bid{
			Bidder:    bidder,
			ProfileID: bidProfile,
			Amount:    b.Amount,
			Timestamp: time.Unix(b.Timestamp, 0).UTC(),
		})
	}

	var start, end, createdAt time.Time
	if w.Start != 0 {
		start = time.Unix(w.Start, 0).UTC()
	}
	if w.End != 0 {
		end = time.Unix(w.End, 0).UTC()
	}
	if w.ItemCreatedAt != 0 {
		createdAt = time.Unix(w.ItemCreatedAt, 0).UTC()
	}

	return auction.Auction{
		UUID:          uid,
		ItemTag:       w.ItemTag,
		ItemName:      w.ItemName,
		Category:      w.Category,
		Tier:          w.Tier,
		BIN:           w.BIN,
		StartingBid:   w.StartingBid,
		Seller:        seller,
		ProfileID:     profile,
		CoopMembers:   coop,
		Start:         start,
		End:           end,
		ItemCreatedAt: createdAt,
		ItemBytes:     w.ItemBytes,
		Attributes:    w.Attributes,
		Count:         w.Count,
		Bids:          bids,
	}, nil
}

// BusConsumer processes whatever its bus.Consumer delivers once the
// historical migrator has caught up. wiring.OpenBusConsumer gives it a
// Kafka consumer on the sold-auction topic only; NEW_AUCTION messages are
// not consumed. Each batch is fanned out across two bounded
// parallel passes (tag-groups, then bidder-groups) per spec.md section 4.8.
type BusConsumer struct {
	Consumer bus.Consumer
	*Pipeline

	log obslog.Logger
}

func NewBusConsumer(consumer bus.Consumer, pipeline *Pipeline) *BusConsumer {
	return &BusConsumer{Consumer: consumer, Pipeline: pipeline, log: obslog.New("component", "ingest.bus_consumer")}
}

// Run processes batches until ctx is cancelled. A fan-out error is logged
// and returned without committing the batch's offset, so the bus
// redelivers it.
func (c *BusConsumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		messages, err := c.Consumer.FetchBatch(ctx, liveBatchSize)
		if err != nil {
			return err
		}
		if len(messages) == 0 {
			continue
		}

		auctions := make([]auction.Auction, 0, len(messages))
		var lastOffset int64
		for _, m := range messages {
			a, err := decodeWireEvent(m.Value)
			if err != nil {
				c.log.Warn("dropping malformed bus message", "topic", m.Topic, "err", err)
				continue
			}
			auctions = append(auctions, a)
			if m.Offset > lastOffset {
				lastOffset = m.Offset
			}
		}

		if err := c.insertSells(ctx, auctions); err != nil {
			c.log.Error("batch fan-out failed, not committing", "err", err)
			return err
		}

		if err := c.Consumer.Commit(ctx, lastOffset); err != nil {
			return err
		}
	}
}

// insertSells runs the two configurable-degree fan-outs spec.md section
// 4.8 names: one over tag-groups of 10, one over bidder-groups of 20.
func (c *BusConsumer) insertSells(ctx context.Context, auctions []auction.Auction) error {
	tagGroups := chunkByTagGroups(auctions, liveTagGroup)
	items := make([]interface{}, len(tagGroups))
	for i, g := range tagGroups {
		items[i] = g
	}
	if err := workerpool.BoundedParallel(ctx, items, liveFanoutDeg, func(ctx context.Context, item interface{}) error {
		group := item.([]auction.Auction)
		for tag, records := range groupByTag(group) {
			if err := c.Store.InsertBatchSameTag(ctx, tag, records, time.Now()); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	bidGroups := chunkBidders(groupBidsByBidder(auctions), liveBidGroup)
	bidItems := make([]interface{}, len(bidGroups))
	for i, g := range bidGroups {
		bidItems[i] = g
	}
	return workerpool.BoundedParallel(ctx, bidItems, liveFanoutDeg, func(ctx context.Context, item interface{}) error {
		return c.insertBids(ctx, item.([]bidItem), time.Now())
	})
}

// chunkByTagGroups groups auctions into clusters of at most tagsPerGroup
// distinct tags each (not a flat record count), matching "tag-groups of
// 10" as groups of tags rather than groups of records.
func chunkByTagGroups(auctions []auction.Auction, tagsPerGroup int) [][]auction.Auction {
	byTag := groupByTag(auctions)
	tags := make([]string, 0, len(byTag))
	for t := range byTag {
		tags = append(tags, t)
	}

	var out [][]auction.Auction
	for start := 0; start < len(tags); start += tagsPerGroup {
		end := start + tagsPerGroup
		if end > len(tags) {
			end = len(tags)
		}
		var group []auction.Auction
		for _, t := range tags[start:end] {
			group = append(group, byTag[t]...)
		}
		out = append(out, group)
	}
	return out
}
