package hotstore

import (
	"context"
	"time"

	"github.com/skyblock-archive/auctions/internal/auction"
	"github.com/skyblock-archive/auctions/internal/errs"
	"github.com/skyblock-archive/auctions/internal/filter"
	"github.com/skyblock-archive/auctions/internal/summary"
)

// Store is the hot-store contract every backend (memory, LMDB, Cassandra)
// implements. Method shapes follow spec.md section 4.4 directly.
type Store interface {
	// Insert is the exists-check, single-auction write path: a row already
	// present for (tag, time_key, is_sold, end, uuid) with the same seller
	// is skipped (idempotent at-least-once). Returns errs.AlreadyExists in
	// that case so callers can distinguish "inserted" from "already had it"
	// for metrics, without treating it as failure.
	Insert(ctx context.Context, a auction.Auction, now time.Time) error

	// InsertBatchSameTag enforces that every record shares ItemTag, applies
	// retrofit (filling sparse "sold"-event records from nearby "listed"
	// rows already in the store), then writes the whole batch.
	InsertBatchSameTag(ctx context.Context, tag string, records []auction.Auction, now time.Time) error

	// Range iterates buckets covering (t0, t1] for tag, descending by end,
	// applying isSold (if non-nil) and pred, until limit results have been
	// yielded or the range is exhausted.
	Range(ctx context.Context, tag string, t0, t1 time.Time, isSold *bool, pred filter.Predicate, limit int) ([]auction.Auction, error)

	// GetByUUID returns every stored version of an auction (there may be
	// more than one: one from listing, one from sale).
	GetByUUID(ctx context.Context, uuid auction.ID) ([]auction.Auction, error)

	// GetCombined fetches every version and folds them via auction.Combine.
	GetCombined(ctx context.Context, uuid auction.ID) (auction.Auction, error)

	// RecentBySeller looks up auctions ending in [before-30d, before) for a
	// seller via the seller secondary index.
	RecentBySeller(ctx context.Context, seller auction.ID, before time.Time, limit int) ([]auction.Auction, error)

	// DailyAggregate reads one bucket, applies pred, and returns the
	// computed summary.Record for that (tag, filter, day).
	DailyAggregate(ctx context.Context, tag string, pred filter.Predicate, day time.Time) (summary.Record, error)

	// DeleteArchived removes every stored version of the given auctions,
	// used by the archive migrator once a month's records have been
	// written to cold storage and verified.
	DeleteArchived(ctx context.Context, auctions []auction.Auction) error
}

func errNoVersions(uuid auction.ID) error {
	return errs.New(errs.NotFound, "hotstore.GetCombined", "no stored versions for "+uuid.String(), nil)
}

// retrofitWindow is how far back a sparse "sold"-event record is
// considered eligible for retrofit (spec.md section 4.8: end > now - 14d).
const retrofitWindow = 14 * 24 * time.Hour

// needsRetrofit reports whether a record looks like it came from a sparse
// "sold" event rather than a full "listed" event.
func needsRetrofit(a auction.Auction, now time.Time) bool {
	return a.Start.IsZero() && a.End.After(now.Add(-retrofitWindow))
}

// applyRetrofit copies listing-only metadata from src into dst, in place,
// leaving already-populated fields untouched.
func applyRetrofit(dst *auction.Auction, src auction.Auction) {
	if dst.Start.IsZero() {
		dst.Start = src.Start
	}
	if dst.Count == 0 {
		dst.Count = src.Count
	}
	if dst.ItemCreatedAt.IsZero() {
		dst.ItemCreatedAt = src.ItemCreatedAt
	}
	if dst.ItemName == "" {
		dst.ItemName = src.ItemName
	}
	if dst.ProfileID.IsZero() {
		dst.ProfileID = src.ProfileID
	}
	if !dst.BIN {
		dst.BIN = src.BIN
	}
	if dst.StartingBid == 0 {
		dst.StartingBid = src.StartingBid
	}
}

func pricesOf(auctions []auction.Auction) []int64 {
	out := make([]int64, len(auctions))
	for i, a := range auctions {
		out[i] = a.HighestBid
	}
	return out
}
