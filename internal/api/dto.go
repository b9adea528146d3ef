// Package api is the HTTP surface from spec.md section 6, hand-wired gin
// routes over the query engine, hot store, cold store, and sql-collaborator
// restore path. DTOs here are pure projections — they carry no behavior.
package api

import (
	"time"

	"github.com/skyblock-archive/auctions/internal/auction"
	"github.com/skyblock-archive/auctions/internal/summary"
)

// PriceSummary is the JSON projection of a Summary record returned by
// GET /api/prices/item/price/{tag}.
type PriceSummary struct {
	Tag     string            `json:"tag"`
	Filters map[string]string `json:"filters,omitempty"`
	Start   time.Time         `json:"start"`
	End     time.Time         `json:"end"`
	Max     int64             `json:"max"`
	Min     int64             `json:"min"`
	Median  int64             `json:"median"`
	Mean    float64           `json:"mean"`
	Mode    int64             `json:"mode"`
	Volume  int               `json:"volume"`
}

func newPriceSummary(tag string, records []summary.Record) PriceSummary {
	if len(records) == 0 {
		return PriceSummary{Tag: tag}
	}

	var start, end time.Time
	filters := records[0].Filters
	for i, r := range records {
		if i == 0 || r.Start.Before(start) {
			start = r.Start
		}
		if r.End.After(end) {
			end = r.End
		}
	}

	max, min, median, mean, mode, volume := aggregateAcross(records)
	return PriceSummary{
		Tag: tag, Filters: filters, Start: start, End: end,
		Max: max, Min: min, Median: median, Mean: mean, Mode: mode, Volume: volume,
	}
}

// aggregateAcross folds a set of daily Summary records into one combined
// view: max/min are the extremes across days, volume sums, mean is the
// volume-weighted average, median/mode are taken from the record closest
// to the combined mean (an approximation — true median/mode would need
// the underlying per-sale prices, which the summary cache doesn't retain).
func aggregateAcross(records []summary.Record) (max, min, median int64, mean float64, mode int64, volume int) {
	var weightedSum float64
	for i, r := range records {
		if i == 0 || r.Max > max {
			max = r.Max
		}
		if i == 0 || (r.Min < min && r.Min != 0) {
			min = r.Min
		}
		volume += r.Volume
		weightedSum += r.Mean * float64(r.Volume)
	}
	if volume > 0 {
		mean = weightedSum / float64(volume)
	}

	best := records[0]
	bestDist := diff(best.Mean, mean)
	for _, r := range records[1:] {
		if d := diff(r.Mean, mean); d < bestDist {
			best, bestDist = r, d
		}
	}
	return max, min, best.Median, mean, best.Mode, volume
}

func diff(a, b float64) float64 {
	if a > b {
		return a - b
	}
	return b - a
}

// QueryArchive is one daily Summary record serialized for
// GET /api/prices/item/price/{tag}/history.
type QueryArchive struct {
	Tag    string            `json:"tag"`
	Filters map[string]string `json:"filters,omitempty"`
	Start  time.Time         `json:"start"`
	End    time.Time         `json:"end"`
	Max    int64             `json:"max"`
	Min    int64             `json:"min"`
	Median int64             `json:"median"`
	Mean   float64           `json:"mean"`
	Mode   int64             `json:"mode"`
	Volume int               `json:"volume"`
}

func newQueryArchive(tag string, r summary.Record) QueryArchive {
	return QueryArchive{
		Tag: tag, Filters: r.Filters, Start: r.Start, End: r.End,
		Max: r.Max, Min: r.Min, Median: r.Median, Mean: r.Mean, Mode: r.Mode, Volume: r.Volume,
	}
}

func newQueryArchives(tag string, records []summary.Record) []QueryArchive {
	out := make([]QueryArchive, len(records))
	for i, r := range records {
		out[i] = newQueryArchive(tag, r)
	}
	return out
}

// AuctionPreview is the small DTO the recent_overview endpoint returns:
// buyer_name is resolved via the injected
// player-name lookup, never a concrete HTTP client from this package.
type AuctionPreview struct {
	UUID       string `json:"uuid"`
	ItemName   string `json:"item_name"`
	Tag        string `json:"tag"`
	HighestBid int64  `json:"highest_bid"`
	End        int64  `json:"end"`
	BuyerName  string `json:"buyer_name,omitempty"`
}

func newAuctionPreview(a auction.Auction, names map[auction.ID]string) AuctionPreview {
	return AuctionPreview{
		UUID:       a.UUID.String(),
		ItemName:   a.ItemName,
		Tag:        a.ItemTag,
		HighestBid: a.HighestBid,
		End:        a.End.Unix(),
		BuyerName:  names[a.HighestBidder],
	}
}

// auctionDTO is the full-fidelity projection GET/POST /api/auction/{uuid}
// return.
type auctionDTO struct {
	UUID          string            `json:"uuid"`
	ItemTag       string            `json:"item_tag"`
	ItemName      string            `json:"item_name"`
	Category      string            `json:"category"`
	Tier          string            `json:"tier"`
	BIN           bool              `json:"bin"`
	StartingBid   int64             `json:"starting_bid"`
	HighestBid    int64             `json:"highest_bid"`
	Seller        string            `json:"seller"`
	ProfileID     string            `json:"profile_id"`
	HighestBidder string            `json:"highest_bidder"`
	CoopMembers   []string          `json:"coop_members,omitempty"`
	Start         time.Time         `json:"start"`
	End           time.Time         `json:"end"`
	ItemCreatedAt time.Time         `json:"item_created_at"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	Enchants      map[string]int    `json:"enchants,omitempty"`
	Count         int               `json:"count"`
	Color         string            `json:"color,omitempty"`
	IsSold        bool              `json:"is_sold"`
	Bids          []bidDTO          `json:"bids,omitempty"`
}

type bidDTO struct {
	Bidder    string    `json:"bidder"`
	ProfileID string    `json:"profile_id"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

func newAuctionDTO(a auction.Auction) auctionDTO {
	coop := make([]string, len(a.CoopMembers))
	for i, id := range a.CoopMembers {
		coop[i] = id.String()
	}
	bids := make([]bidDTO, len(a.Bids))
	for i, b := range a.Bids {
		bids[i] = bidDTO{Bidder: b.Bidder.String(), ProfileID: b.ProfileID.String(), Amount: b.Amount, Timestamp: b.Timestamp}
	}
	return auctionDTO{
		UUID: a.UUID.String(), ItemTag: a.ItemTag, ItemName: a.ItemName, Category: a.Category, Tier: a.Tier, BIN: a.BIN,
		StartingBid: a.StartingBid, HighestBid: a.HighestBid, Seller: a.Seller.String(), ProfileID: a.ProfileID.String(),
		HighestBidder: a.HighestBidder.String(), CoopMembers: coop, Start: a.Start, End: a.End, ItemCreatedAt: a.ItemCreatedAt,
		Attributes: a.Attributes, Enchants: a.Enchants, Count: a.Count, Color: a.Color, IsSold: a.IsSold, Bids: bids,
	}
}

func newAuctionDTOs(versions []auction.Auction) []auctionDTO {
	out := make([]auctionDTO, len(versions))
	for i, v := range versions {
		out[i] = newAuctionDTO(v)
	}
	return out
}
