package sqlsource

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/go-sql-driver/mysql"

	"github.com/skyblock-archive/auctions/internal/auction"
	"github.com/skyblock-archive/auctions/internal/errs"
)

// MySQLSource is the legacy relational Source the historical migrator pages
// through until the import backlog drains, per spec.md section 4.8.
type MySQLSource struct {
	db *sqlx.DB
}

// OpenMySQLSource opens dsn (the usual go-sql-driver/mysql DSN form,
// "user:pass@tcp(host:3306)/dbname?parseTime=true") and pings it.
func OpenMySQLSource(dsn string) (*MySQLSource, error) {
	db, err := sqlx.Connect("mysql", dsn)
	if err != nil {
		return nil, errs.Wrap(errs.Transient, "sqlsource.OpenMySQLSource", err)
	}
	return &MySQLSource{db: db}, nil
}

func (s *MySQLSource) Close() error { return s.db.Close() }

type auctionRow struct {
	ID            int64          `db:"id"`
	UUID          string         `db:"uuid"`
	ItemTag       string         `db:"item_tag"`
	ItemName      string         `db:"item_name"`
	Category      string         `db:"category"`
	Tier          string         `db:"tier"`
	BIN           bool           `db:"bin"`
	StartingBid   int64          `db:"starting_bid"`
	Seller        string         `db:"seller"`
	ProfileID     string         `db:"profile_id"`
	CoopMembers   sql.NullString `db:"coop_members"`
	Start         sql.NullTime   `db:"start"`
	End           sql.NullTime   `db:"end"`
	ItemCreatedAt sql.NullTime   `db:"item_created_at"`
	ItemBytes     []byte         `db:"item_bytes"`
	Count         int            `db:"count"`
}

const selectRowsInWindow = `
SELECT id, uuid, item_tag, item_name, category, tier, bin, starting_bid,
       seller, profile_id, coop_members, start, end, item_created_at,
       item_bytes, count
FROM auctions
WHERE id >= ? AND id < ?
ORDER BY id ASC`

// RowsInWindow returns rows with id in [offset, offset+n).
func (s *MySQLSource) RowsInWindow(ctx context.Context, offset, n int64) ([]Row, error) {
	var rows []auctionRow
	if err := s.db.SelectContext(ctx, &rows, selectRowsInWindow, offset, offset+n); err != nil {
		return nil, errs.Wrap(errs.Transient, "sqlsource.RowsInWindow", err)
	}

	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		uid, err := auction.ParseID(r.UUID)
		if err != nil {
			continue
		}
		seller, err := auction.ParseID(r.Seller)
		if err != nil {
			continue
		}
		profile, _ := auction.ParseID(r.ProfileID)

		out = append(out, Row{
			ID: r.ID,
			Auction: auction.Auction{
				UUID:          uid,
				ItemTag:       r.ItemTag,
				ItemName:      r.ItemName,
				Category:      r.Category,
				Tier:          r.Tier,
				BIN:           r.BIN,
				StartingBid:   r.StartingBid,
				Seller:        seller,
				ProfileID:     profile,
				CoopMembers:   parseCoopMembers(r.CoopMembers.String),
				Start:         r.Start.Time,
				End:           r.End.Time,
				ItemCreatedAt: r.ItemCreatedAt.Time,
				ItemBytes:     r.ItemBytes,
				Count:         r.Count,
			},
		})
	}
	return out, nil
}

func parseCoopMembers(csv string) []auction.ID {
	if csv == "" {
		return nil
	}
	var out []auction.ID
	start := 0
	for i := 0; i <= len(csv); i++ {
		if i == len(csv) || csv[i] == ',' {
			if i > start {
				if id, err := auction.ParseID(csv[start:i]); err == nil {
					out = append(out, id)
				}
			}
			start = i + 1
		}
	}
	return out
}

type bidRow struct {
	AuctionUUID string    `db:"auction_uuid"`
	Bidder      string    `db:"bidder"`
	ProfileID   string    `db:"profile_id"`
	Amount      int64     `db:"amount"`
	Timestamp   sql.NullTime `db:"timestamp"`
}

// BidsForRows returns every bid belonging to the given auction uuids, in
// batches of 500 ids per query to stay clear of MySQL's IN-list limits.
func (s *MySQLSource) BidsForRows(ctx context.Context, auctionUUIDs []auction.ID) (map[auction.ID][]auction.Bid, error) {
	out := make(map[auction.ID][]auction.Bid)
	const batchSize = 500

	for start := 0; start < len(auctionUUIDs); start += batchSize {
		end := start + batchSize
		if end > len(auctionUUIDs) {
			end = len(auctionUUIDs)
		}
		ids := make([]string, 0, end-start)
		for _, id := range auctionUUIDs[start:end] {
			ids = append(ids, id.String())
		}

		query, args, err := sqlx.In(`
SELECT auction_uuid, bidder, profile_id, amount, timestamp
FROM bids
WHERE auction_uuid IN (?)`, ids)
		if err != nil {
			return nil, errs.Wrap(errs.Fatal, "sqlsource.BidsForRows", err)
		}
		query = s.db.Rebind(query)

		var rows []bidRow
		if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
			return nil, errs.Wrap(errs.Transient, "sqlsource.BidsForRows", err)
		}

		for _, r := range rows {
			auctionUUID, err := auction.ParseID(r.AuctionUUID)
			if err != nil {
				continue
			}
			bidder, err := auction.ParseID(r.Bidder)
			if err != nil {
				continue
			}
			profile, _ := auction.ParseID(r.ProfileID)
			out[auctionUUID] = append(out[auctionUUID], auction.Bid{
				Bidder:    bidder,
				ProfileID: profile,
				Amount:    r.Amount,
				Timestamp: r.Timestamp.Time,
			})
		}
	}

	return out, nil
}

// MaxID reports the highest primary key currently present.
func (s *MySQLSource) MaxID(ctx context.Context) (int64, error) {
	var max sql.NullInt64
	if err := s.db.GetContext(ctx, &max, `SELECT MAX(id) FROM auctions`); err != nil {
		return 0, errs.Wrap(errs.Transient, "sqlsource.MaxID", err)
	}
	return max.Int64, nil
}

const upsertAuction = `
INSERT INTO auctions (uuid, item_tag, item_name, category, tier, bin, starting_bid,
                       seller, profile_id, coop_members, start, end, item_created_at,
                       item_bytes, count)
VALUES (:uuid, :item_tag, :item_name, :category, :tier, :bin, :starting_bid,
        :seller, :profile_id, :coop_members, :start, :end, :item_created_at,
        :item_bytes, :count)
ON DUPLICATE KEY UPDATE
  item_name = VALUES(item_name), category = VALUES(category), tier = VALUES(tier),
  bin = VALUES(bin), starting_bid = VALUES(starting_bid), seller = VALUES(seller),
  profile_id = VALUES(profile_id), coop_members = VALUES(coop_members),
  start = VALUES(start), end = VALUES(end), item_created_at = VALUES(item_created_at),
  item_bytes = VALUES(item_bytes), count = VALUES(count)`

// Restore re-inserts a (or updates an existing) row in the legacy
// collaborator's auctions table — used when the archive has a row the
// game server's own database has lost.
func (s *MySQLSource) Restore(ctx context.Context, a auction.Auction) error {
	coop := make([]string, len(a.CoopMembers))
	for i, id := range a.CoopMembers {
		coop[i] = id.String()
	}
	row := auctionRow{
		UUID: a.UUID.String(), ItemTag: a.ItemTag, ItemName: a.ItemName, Category: a.Category,
		Tier: a.Tier, BIN: a.BIN, StartingBid: a.StartingBid, Seller: a.Seller.String(),
		ProfileID: a.ProfileID.String(), CoopMembers: sql.NullString{String: strings.Join(coop, ","), Valid: len(coop) > 0},
		Start: sql.NullTime{Time: a.Start, Valid: !a.Start.IsZero()},
		End:   sql.NullTime{Time: a.End, Valid: !a.End.IsZero()},
		ItemCreatedAt: sql.NullTime{Time: a.ItemCreatedAt, Valid: !a.ItemCreatedAt.IsZero()},
		ItemBytes:     a.ItemBytes,
		Count:         a.Count,
	}
	if _, err := s.db.NamedExecContext(ctx, upsertAuction, row); err != nil {
		return errs.Wrap(errs.Transient, "sqlsource.Restore", err)
	}
	return nil
}

// Retire removes a row from the legacy collaborator once the archive has
// confirmed it holds a matching copy.
func (s *MySQLSource) Retire(ctx context.Context, uuid auction.ID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM auctions WHERE uuid = ?`, uuid.String()); err != nil {
		return errs.Wrap(errs.Transient, "sqlsource.Retire", err)
	}
	return nil
}
