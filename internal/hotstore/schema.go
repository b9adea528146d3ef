// Package hotstore is the wide-column hot store: the auction/bid table
// layout, the Store interface every backend implements, and the concrete
// in-memory, LMDB, and Cassandra (gocql) backends.
package hotstore

// Table names, modeled on the teacher's flat bucket-name registry
// (common/dbutils/bucket.go) rather than a struct-tag ORM: the Cassandra
// backend and the Cassandra summary cache address their tables by these
// names, so a schema change is a one-line edit here. The memory and LMDB
// backends do not use them.
const (
	TableAuctions = "auctions"
	TableBids     = "bids"
	TableSummary  = "summary"
)

// The per-table CREATE statements describe the Cassandra tables the gocql
// backend assumes exist; no keyspace statement is defined. Schema management is
// deliberately external to this package (a migration tool or operator runs
// these once) — Store never issues DDL itself.
const (
	CreateAuctionsCQL = `CREATE TABLE IF NOT EXISTS ` + TableAuctions + ` (
		tag             text,
		time_key        smallint,
		is_sold         boolean,
		end             timestamp,
		auction_uuid    uuid,
		item_name       text,
		category        text,
		tier            text,
		bin             boolean,
		starting_bid    bigint,
		highest_bid     bigint,
		seller          uuid,
		profile_id      uuid,
		highest_bidder  uuid,
		coop_members    list<uuid>,
		start           timestamp,
		item_created_at timestamp,
		item_bytes      blob,
		attributes      map<text, text>,
		enchants        map<text, int>,
		count           int,
		color           text,
		item_uid        bigint,
		item_uuid       text,
		PRIMARY KEY ((tag, time_key), is_sold, end, auction_uuid)
	) WITH CLUSTERING ORDER BY (is_sold ASC, end DESC, auction_uuid DESC)`

	CreateBidsCQL = `CREATE TABLE IF NOT EXISTS ` + TableBids + ` (
		bidder       uuid,
		timestamp    timestamp,
		auction_uuid uuid,
		profile_id   uuid,
		amount       bigint,
		PRIMARY KEY (bidder, timestamp, auction_uuid)
	) WITH CLUSTERING ORDER BY (timestamp DESC)`

	CreateSummaryCQL = `CREATE TABLE IF NOT EXISTS ` + TableSummary + ` (
		tag        text,
		filter_key text,
		end        date,
		start      date,
		filters    map<text, text>,
		max        bigint,
		min        bigint,
		median     bigint,
		mean       double,
		mode       bigint,
		volume     int,
		PRIMARY KEY ((tag, filter_key), end)
	) WITH CLUSTERING ORDER BY (end DESC)`
)

// secondary index names — on Cassandra these back SASI/2i indexes created
// alongside the base tables. The in-memory backend keeps its uuid, bucket
// and seller lookups as plain maps and the LMDB backend as a uuid-keyed
// database plus DupSort bucket and seller databases; neither has an
// item_uid or highest_bidder lookup.
const (
	IndexAuctionUUID   = "auctions_by_uuid"
	IndexItemUID       = "auctions_by_item_uid"
	IndexSeller        = "auctions_by_seller"
	IndexHighestBidder = "auctions_by_highest_bidder"
	IndexBidAuction    = "bids_by_auction_uuid"
)
