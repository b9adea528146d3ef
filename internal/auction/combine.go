package auction

// Combine folds multiple stored versions of the same auction uuid (one
// typically from a "listed" event, one from a "sold" event) into a single
// view, per spec.md section 4.7:
//   - versions where Seller == UUID are dropped outright (a known
//     corruption marker from upstream ingestion),
//   - bids are unioned, deduplicated by Amount (equal amounts are assumed
//     to be the same bid — a known, accepted heuristic limitation),
//   - CoopMembers/StartingBid/Category/Start/ProfileID are taken from the
//     first version (in input order) where that field is non-default,
//   - everything else comes from the first surviving version.
//
// Combine returns (Auction{}, false) if every version is filtered out.
func Combine(versions []Auction) (Auction, bool) {
	kept := make([]Auction, 0, len(versions))
	for _, v := range versions {
		if v.Seller == v.UUID {
			continue
		}
		kept = append(kept, v)
	}
	if len(kept) == 0 {
		return Auction{}, false
	}

	out := kept[0]

	for _, v := range kept {
		if len(out.CoopMembers) == 0 && len(v.CoopMembers) > 0 {
			out.CoopMembers = v.CoopMembers
		}
		if out.StartingBid == 0 && v.StartingBid != 0 {
			out.StartingBid = v.StartingBid
		}
		if out.Category == "" && v.Category != "" {
			out.Category = v.Category
		}
		if out.Start.IsZero() && !v.Start.IsZero() {
			out.Start = v.Start
		}
		if out.ProfileID.IsZero() && !v.ProfileID.IsZero() {
			out.ProfileID = v.ProfileID
		}
	}

	out.Bids = unionBidsByAmount(kept)
	if len(out.Bids) > 0 {
		hb, amount := argMaxBid(out.Bids)
		out.HighestBid = amount
		out.HighestBidder = hb
	}

	return out, true
}

func unionBidsByAmount(versions []Auction) []Bid {
	seen := make(map[int64]struct{})
	out := make([]Bid, 0)
	for _, v := range versions {
		for _, b := range v.Bids {
			if _, ok := seen[b.Amount]; ok {
				continue
			}
			seen[b.Amount] = struct{}{}
			out = append(out, b)
		}
	}
	return out
}
