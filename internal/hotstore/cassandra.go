package hotstore

import (
	"context"
	"time"

	"github.com/gocql/gocql"

	"github.com/skyblock-archive/auctions/internal/auction"
	"github.com/skyblock-archive/auctions/internal/config"
	"github.com/skyblock-archive/auctions/internal/errs"
	"github.com/skyblock-archive/auctions/internal/filter"
	"github.com/skyblock-archive/auctions/internal/obslog"
	"github.com/skyblock-archive/auctions/internal/summary"
	"github.com/skyblock-archive/auctions/internal/timebucket"
)

// CassandraStore is the production hot-store backend. Schema assumed
// present (see CreateAuctionsCQL etc. in schema.go); this type only issues
// DML, never DDL.
type CassandraStore struct {
	session *gocql.Session
	log     obslog.Logger
}

func OpenCassandraStore(cfg config.Cassandra) (*CassandraStore, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.Consistency = gocql.LocalQuorum
	cluster.Timeout = 10 * time.Second
	if cfg.User != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{Username: cfg.User, Password: cfg.Password}
	}

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, errs.Wrap(errs.Fatal, "hotstore.OpenCassandraStore", err)
	}
	return &CassandraStore{session: session, log: obslog.New("component", "hotstore.cassandra")}, nil
}

func (s *CassandraStore) Close() { s.session.Close() }

func (s *CassandraStore) Insert(ctx context.Context, a auction.Auction, now time.Time) error {
	encoded := auction.Encode(a, now)

	var existingSeller gocql.UUID
	err := s.session.Query(
		`SELECT seller FROM `+TableAuctions+` WHERE tag=? AND time_key=? AND is_sold=? AND end=? AND auction_uuid=?`,
		a.ItemTag, encoded.TimeKey, encoded.IsSold, encoded.End, gocql.UUID(a.UUID),
	).WithContext(ctx).Scan(&existingSeller)

	switch {
	case err == nil:
		if auction.ID(existingSeller) == encoded.Seller {
			return errs.New(errs.AlreadyExists, "hotstore.Insert", "row already present for this seller", nil)
		}
	case err != gocql.ErrNotFound:
		return errs.Wrap(errs.Transient, "hotstore.Insert", err)
	}

	batch := s.session.NewBatch(gocql.UnloggedBatch)
	batch.SetConsistency(gocql.LocalQuorum)
	batch.WithContext(ctx)

	appendAuctionRow(batch, encoded)
	for _, b := range encoded.Bids {
		appendBidRow(batch, encoded.UUID, b)
	}

	if err := s.session.ExecuteBatch(batch); err != nil {
		return errs.Wrap(errs.Transient, "hotstore.Insert", err)
	}
	return nil
}

func appendAuctionRow(batch *gocql.Batch, a auction.StoredAuction) {
	coop := make([]gocql.UUID, len(a.CoopMembers))
	for i, id := range a.CoopMembers {
		coop[i] = gocql.UUID(id)
	}
	batch.Query(
		`INSERT INTO `+TableAuctions+` (tag, time_key, is_sold, end, auction_uuid, item_name, category, tier, bin,
			starting_bid, highest_bid, seller, profile_id, highest_bidder, coop_members, start, item_created_at,
			item_bytes, attributes, enchants, count, color, item_uid, item_uuid)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?) USING TIMESTAMP ?`,
		a.ItemTag, a.TimeKey, a.IsSold, a.End, gocql.UUID(a.UUID), a.ItemName, a.Category, a.Tier, a.BIN,
		a.StartingBid, a.HighestBid, gocql.UUID(a.Seller), gocql.UUID(a.ProfileID), gocql.UUID(a.HighestBidder),
		coop, a.Start, a.ItemCreatedAt, a.ItemBytes, a.Attributes, a.Enchants, a.Count, a.Color, a.ItemUID, a.ItemUUID,
		a.End.UnixMicro(),
	)
}

func appendBidRow(batch *gocql.Batch, auctionUUID auction.ID, b auction.Bid) {
	batch.Query(
		`INSERT INTO `+TableBids+` (bidder, timestamp, auction_uuid, profile_id, amount) VALUES (?,?,?,?,?) USING TIMESTAMP ?`,
		gocql.UUID(b.Bidder), b.Timestamp, gocql.UUID(auctionUUID), gocql.UUID(b.ProfileID), b.Amount,
		b.Timestamp.UnixMicro(),
	)
}

func (s *CassandraStore) InsertBatchSameTag(ctx context.Context, tag string, records []auction.Auction, now time.Time) error {
	for _, r := range records {
		if r.ItemTag != tag {
			return errs.New(errs.InvalidInput, "hotstore.InsertBatchSameTag", "record tag does not match batch tag", nil)
		}
	}

	for i, r := range records {
		if needsRetrofit(r, now) {
			if src, ok := s.retrofitSource(ctx, tag, r.UUID, r.End); ok {
				applyRetrofit(&records[i], src)
			}
		}
	}

	batch := s.session.NewBatch(gocql.UnloggedBatch)
	batch.SetConsistency(gocql.LocalQuorum)
	batch.WithContext(ctx)

	var stamp time.Time
	for _, r := range records {
		encoded := auction.Encode(r, now)
		appendAuctionRow(batch, encoded)
		for _, b := range encoded.Bids {
			appendBidRow(batch, encoded.UUID, b)
			if b.Timestamp.After(stamp) {
				stamp = b.Timestamp
			}
		}
		if r.Start.After(stamp) {
			stamp = r.Start
		}
	}

	if err := s.session.ExecuteBatch(batch); err != nil {
		return errs.Wrap(errs.Transient, "hotstore.InsertBatchSameTag", err)
	}
	return nil
}

// retrofitSource scans the auction_uuid secondary index across the buckets
// neighboring the record's own bucket (current week -1..+2, per spec.md
// section 4.8) for a version with Start already populated.
func (s *CassandraStore) retrofitSource(ctx context.Context, tag string, id auction.ID, end time.Time) (auction.Auction, bool) {
	current := timebucket.Bucket(tag, end)
	for _, bucket := range []int16{current - 1, current, current + 1, current + 2} {
		iter := s.session.Query(
			`SELECT start, count, item_created_at, item_name, profile_id, bin, starting_bid FROM `+TableAuctions+
				` WHERE tag=? AND time_key=? AND auction_uuid=? ALLOW FILTERING`,
			tag, bucket, gocql.UUID(id),
		).WithContext(ctx).Iter()

		var row auction.Auction
		var seller gocql.UUID
		ok := iter.Scan(&row.Start, &row.Count, &row.ItemCreatedAt, &row.ItemName, &seller, &row.BIN, &row.StartingBid)
		_ = iter.Close()
		if ok && !row.Start.IsZero() {
			row.ProfileID = auction.ID(seller)
			return row, true
		}
	}
	return auction.Auction{}, false
}

func (s *CassandraStore) Range(ctx context.Context, tag string, t0, t1 time.Time, isSold *bool, pred filter.Predicate, limit int) ([]auction.Auction, error) {
	if pred == nil {
		pred = filter.Always
	}

	lo := timebucket.Bucket(tag, t0)
	hi := timebucket.Bucket(tag, t1)

	out := make([]auction.Auction, 0, limit)
	for b := hi; b >= lo; b-- {
		query := `SELECT * FROM ` + TableAuctions + ` WHERE tag=? AND time_key=? AND end>? AND end<=?`
		args := []interface{}{tag, b, t0, t1}
		if isSold != nil {
			query += ` AND is_sold=?`
			args = append(args, *isSold)
		}

		iter := s.session.Query(query, args...).WithContext(ctx).Iter()
		row := make(map[string]interface{})
		for iter.MapScan(row) {
			a := auctionFromRow(row)
			if pred(a) {
				out = append(out, a)
				if limit > 0 && len(out) >= limit {
					_ = iter.Close()
					return out, nil
				}
			}
			row = make(map[string]interface{})
		}
		if err := iter.Close(); err != nil {
			return nil, errs.Wrap(errs.Transient, "hotstore.Range", err)
		}
	}
	return out, nil
}

func auctionFromRow(row map[string]interface{}) auction.Auction {
	get := func(k string) interface{} { return row[k] }
	toID := func(v interface{}) auction.ID {
		if u, ok := v.(gocql.UUID); ok {
			return auction.ID(u)
		}
		return auction.ID{}
	}
	toStr := func(v interface{}) string { s, _ := v.(string); return s }
	toInt64 := func(v interface{}) int64 { n, _ := v.(int64); return n }
	toBool := func(v interface{}) bool { b, _ := v.(bool); return b }
	toTime := func(v interface{}) time.Time { t, _ := v.(time.Time); return t }
	toInt := func(v interface{}) int { n, _ := v.(int); return n }

	return auction.Auction{
		UUID:          toID(get("auction_uuid")),
		ItemTag:       toStr(get("tag")),
		ItemName:      toStr(get("item_name")),
		Category:      toStr(get("category")),
		Tier:          toStr(get("tier")),
		BIN:           toBool(get("bin")),
		StartingBid:   toInt64(get("starting_bid")),
		HighestBid:    toInt64(get("highest_bid")),
		Seller:        toID(get("seller")),
		ProfileID:     toID(get("profile_id")),
		HighestBidder: toID(get("highest_bidder")),
		Start:         toTime(get("start")),
		End:           toTime(get("end")),
		ItemCreatedAt: toTime(get("item_created_at")),
		Count:         toInt(get("count")),
		Color:         toStr(get("color")),
		IsSold:        toBool(get("is_sold")),
		ItemUID:       toInt64(get("item_uid")),
		ItemUUID:      toStr(get("item_uuid")),
	}
}

func (s *CassandraStore) GetByUUID(ctx context.Context, id auction.ID) ([]auction.Auction, error) {
	iter := s.session.Query(
		`SELECT * FROM `+TableAuctions+` WHERE auction_uuid=? ALLOW FILTERING`, gocql.UUID(id),
	).WithContext(ctx).Iter()

	var out []auction.Auction
	row := make(map[string]interface{})
	for iter.MapScan(row) {
		out = append(out, auctionFromRow(row))
		row = make(map[string]interface{})
	}
	if err := iter.Close(); err != nil {
		return nil, errs.Wrap(errs.Transient, "hotstore.GetByUUID", err)
	}
	if len(out) == 0 {
		return nil, errs.New(errs.NotFound, "hotstore.GetByUUID", "no rows for uuid "+id.String(), nil)
	}
	return out, nil
}

func (s *CassandraStore) GetCombined(ctx context.Context, id auction.ID) (auction.Auction, error) {
	versions, err := s.GetByUUID(ctx, id)
	if err != nil {
		return auction.Auction{}, err
	}
	combined, ok := auction.Combine(versions)
	if !ok {
		return auction.Auction{}, errNoVersions(id)
	}
	return combined, nil
}

func (s *CassandraStore) RecentBySeller(ctx context.Context, seller auction.ID, before time.Time, limit int) ([]auction.Auction, error) {
	windowStart := before.Add(-30 * 24 * time.Hour)
	iter := s.session.Query(
		`SELECT * FROM `+TableAuctions+` WHERE seller=? AND end>=? AND end<? ALLOW FILTERING`,
		gocql.UUID(seller), windowStart, before,
	).WithContext(ctx).Iter()

	out := make([]auction.Auction, 0, limit)
	row := make(map[string]interface{})
	for iter.MapScan(row) {
		out = append(out, auctionFromRow(row))
		if limit > 0 && len(out) >= limit {
			break
		}
		row = make(map[string]interface{})
	}
	if err := iter.Close(); err != nil {
		return nil, errs.Wrap(errs.Transient, "hotstore.RecentBySeller", err)
	}
	return out, nil
}

// DeleteArchived issues one batched delete per auction, keyed by the same
// (tag, time_key, is_sold, end, auction_uuid) primary key inserts use, plus
// a delete of every bid row belonging to it.
func (s *CassandraStore) DeleteArchived(ctx context.Context, auctions []auction.Auction) error {
	batch := s.session.NewBatch(gocql.UnloggedBatch)
	batch.SetConsistency(gocql.LocalQuorum)
	batch.WithContext(ctx)

	for _, a := range auctions {
		encoded := auction.Encode(a, a.End)
		batch.Query(
			`DELETE FROM `+TableAuctions+` WHERE tag=? AND time_key=? AND is_sold=? AND end=? AND auction_uuid=?`,
			encoded.ItemTag, encoded.TimeKey, encoded.IsSold, encoded.End, gocql.UUID(encoded.UUID),
		)
		for _, b := range a.Bids {
			batch.Query(
				`DELETE FROM `+TableBids+` WHERE bidder=? AND timestamp=?`,
				gocql.UUID(b.Bidder), b.Timestamp,
			)
		}
	}

	if err := s.session.ExecuteBatch(batch); err != nil {
		return errs.Wrap(errs.Transient, "hotstore.DeleteArchived", err)
	}
	return nil
}

func (s *CassandraStore) DailyAggregate(ctx context.Context, tag string, pred filter.Predicate, day time.Time) (summary.Record, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	matched, err := s.Range(ctx, tag, dayStart, dayEnd, nil, pred, 0)
	if err != nil {
		return summary.Record{}, err
	}

	max, min, median, mean, mode, volume := summary.Aggregate(pricesOf(matched))
	return summary.Record{
		Tag: tag, Start: dayStart, End: dayStart,
		Max: max, Min: min, Median: median, Mean: mean, Mode: mode, Volume: volume,
	}, nil
}
