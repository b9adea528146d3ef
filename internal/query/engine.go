package query

import (
	"context"
	"sort"
	"time"

	"github.com/skyblock-archive/auctions/internal/auction"
	"github.com/skyblock-archive/auctions/internal/filter"
	"github.com/skyblock-archive/auctions/internal/hotstore"
	"github.com/skyblock-archive/auctions/internal/metrics"
	"github.com/skyblock-archive/auctions/internal/obslog"
	"github.com/skyblock-archive/auctions/internal/playerlookup"
	"github.com/skyblock-archive/auctions/internal/summary"
)

func observeLatency(operation string, start time.Time) {
	metrics.QueryLatencySeconds.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// Engine is the query engine: summary cache, recent overview, and the
// filtered-stream entry point, all built on TierRouter + HotStore.
type Engine struct {
	Router    *TierRouter
	Hot       hotstore.Store
	Summaries SummaryStore
	Filters   filter.Compiler
	Players   playerlookup.Client

	log obslog.Logger
}

func NewEngine(router *TierRouter, hot hotstore.Store, summaries SummaryStore, filters filter.Compiler, players playerlookup.Client) *Engine {
	if filters == nil {
		filters = filter.None()
	}
	if players == nil {
		players = playerlookup.NoOpClient{}
	}
	return &Engine{Router: router, Hot: hot, Summaries: summaries, Filters: filters, Players: players, log: obslog.New("component", "query.engine")}
}

// Summary implements spec.md section 4.7's summary cache: canonicalize the
// window, derive the filter key, read what's cached, compute and persist
// whatever's missing, and return the combined set ordered by End ascending.
func (e *Engine) Summary(ctx context.Context, tag string, rawFilter map[string]string, start, end *time.Time) ([]summary.Record, error) {
	defer observeLatency("summary", time.Now())
	now := time.Now().UTC()

	endDay := now
	if end != nil {
		endDay = *end
	}
	endDay = time.Date(endDay.Year(), endDay.Month(), endDay.Day(), 0, 0, 0, 0, time.UTC)

	startDay := endDay.AddDate(0, 0, -7)
	if start != nil {
		startDay = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	}

	filterKey := summary.FilterKey(rawFilter)
	pred, err := e.Filters.Compile(rawFilter)
	if err != nil {
		return nil, err
	}

	cached, err := e.Summaries.Get(ctx, tag, filterKey, startDay, endDay)
	if err != nil {
		return nil, err
	}

	haveDay := make(map[time.Time]struct{}, len(cached))
	for _, r := range cached {
		haveDay[r.End] = struct{}{}
	}

	expectedDays := int(endDay.Sub(startDay).Hours() / 24)
	if len(cached) >= expectedDays {
		sort.Slice(cached, func(i, j int) bool { return cached[i].End.Before(cached[j].End) })
		return cached, nil
	}

	out := append([]summary.Record{}, cached...)
	for d := startDay.AddDate(0, 0, 1); !d.After(endDay); d = d.AddDate(0, 0, 1) {
		if _, ok := haveDay[d]; ok {
			continue
		}
		rec, err := e.Hot.DailyAggregate(ctx, tag, pred, d)
		if err != nil {
			return nil, err
		}
		rec.Tag, rec.FilterKey, rec.Filters = tag, filterKey, rawFilter
		rec.End = d

		if err := e.Summaries.Put(ctx, rec); err != nil {
			e.log.Warn("summary cache write failed, serving computed row anyway", "tag", tag, "day", d, "err", err)
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].End.Before(out[j].End) })
	return out, nil
}

// RecentOverview returns up to 12 recently-ended auctions for tag matching
// filter, widening the lookback window from 1 hour to 14 days if the
// narrow window comes up short, and resolves highest-bidder uuids to
// player names via the external lookup.
func (e *Engine) RecentOverview(ctx context.Context, tag string, rawFilter map[string]string) ([]auction.Auction, map[auction.ID]string, error) {
	defer observeLatency("recent_overview", time.Now())
	pred, err := e.Filters.Compile(rawFilter)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	isSold := true
	results, err := e.Hot.Range(ctx, tag, now.Add(-time.Hour), now, &isSold, pred, 12)
	if err != nil {
		return nil, nil, err
	}
	if len(results) < 12 {
		results, err = e.Hot.Range(ctx, tag, now.AddDate(0, 0, -14), now, &isSold, pred, 12)
		if err != nil {
			return nil, nil, err
		}
	}

	ids := make([]auction.ID, len(results))
	for i, r := range results {
		ids[i] = r.HighestBidder
	}
	names, err := e.Players.Names(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	return results, names, nil
}

// Filtered delegates to the tier router and applies the compiled filter,
// returning up to limit results ordered by End descending.
func (e *Engine) Filtered(ctx context.Context, tag string, rawFilter map[string]string, t0, t1 time.Time, limit int) ([]auction.Auction, error) {
	defer observeLatency("filtered", time.Now())
	pred, err := e.Filters.Compile(rawFilter)
	if err != nil {
		return nil, err
	}
	return e.Router.Range(ctx, tag, t0, t1, pred, limit)
}
