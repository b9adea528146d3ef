// Package query is the query engine: tier-transparent ranged reads, the
// summary cache, recent-overview, and the filtered-stream entry point.
package query

import (
	"context"
	"sort"
	"time"

	"github.com/skyblock-archive/auctions/internal/auction"
	"github.com/skyblock-archive/auctions/internal/coldstore"
	"github.com/skyblock-archive/auctions/internal/filter"
	"github.com/skyblock-archive/auctions/internal/hotstore"
	"github.com/skyblock-archive/auctions/internal/obslog"
	"github.com/skyblock-archive/auctions/internal/timebucket"
)

// TierRouter decides, per bucket, whether to read from the hot store or
// the cold archive, and merges the results by end descending.
type TierRouter struct {
	Hot             hotstore.Store
	Cold            *coldstore.Store
	ColdEnabled     bool
	RetentionMonths int

	log obslog.Logger
}

func NewTierRouter(hot hotstore.Store, cold *coldstore.Store, coldEnabled bool, retentionMonths int) *TierRouter {
	return &TierRouter{
		Hot: hot, Cold: cold, ColdEnabled: coldEnabled, RetentionMonths: retentionMonths,
		log: obslog.New("component", "tierrouter"),
	}
}

type monthKey struct {
	Year, Month int
}

// Range answers (tag, t0, t1] transparently across tiers: buckets whose
// nominal date is within RetentionMonths of now are read from the hot
// store; older buckets are read from the cold archive, scoped to the
// enclosing month. If cold is disabled the whole range falls back to hot.
func (r *TierRouter) Range(ctx context.Context, tag string, t0, t1 time.Time, pred filter.Predicate, limit int) ([]auction.Auction, error) {
	if pred == nil {
		pred = filter.Always
	}
	now := time.Now().UTC()
	cutoff := now.AddDate(0, -r.RetentionMonths, 0)

	if !r.ColdEnabled || r.Cold == nil {
		return r.Hot.Range(ctx, tag, t0, t1, nil, pred, limit)
	}

	lo := timebucket.Bucket(tag, t0)
	hi := timebucket.Bucket(tag, t1)

	var out []auction.Auction
	coldMonthsSeen := make(map[monthKey]struct{})

	for b := hi; b >= lo; b-- {
		bucketDate := timebucket.DateOf(tag, b)
		if !bucketDate.Before(cutoff) {
			continue // hot-eligible buckets are fetched in one Range call below
		}
		mk := monthKey{bucketDate.Year(), int(bucketDate.Month())}
		if _, seen := coldMonthsSeen[mk]; seen {
			continue
		}
		coldMonthsSeen[mk] = struct{}{}

		records, err := r.Cold.GetMonth(ctx, tag, mk.Year, mk.Month)
		if err != nil {
			r.log.Warn("cold tier read failed, treating bucket as empty", "tag", tag, "year", mk.Year, "month", mk.Month, "err", err)
			continue
		}
		for _, rec := range records {
			if rec.End.After(t1) || !rec.End.After(t0) {
				continue
			}
			if !pred(rec) {
				continue
			}
			out = append(out, rec)
		}
	}

	hotStart := cutoff
	if hotStart.Before(t0) {
		hotStart = t0
	}
	if hotStart.Before(t1) {
		hotRecords, err := r.Hot.Range(ctx, tag, hotStart, t1, nil, pred, 0)
		if err != nil {
			return nil, err
		}
		out = append(out, hotRecords...)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].End.After(out[j].End) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
