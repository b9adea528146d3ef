package auction

import "time"

// Bid is a single raise on an auction. Identity is implicit via
// (AuctionUUID, Amount, Timestamp); there's no separate bid id.
type Bid struct {
	Bidder    ID
	ProfileID ID
	Amount    int64
	Timestamp time.Time
}

// Auction is the primary domain entity. See spec.md section 3 for the full
// invariant list (end >= start, highest_bid/highest_bidder derived from
// bids, uuid immutable once written, ...).
type Auction struct {
	UUID ID

	ItemTag  string
	ItemName string
	Category string
	Tier     string
	BIN      bool

	StartingBid int64
	HighestBid  int64

	Seller        ID
	ProfileID     ID
	HighestBidder ID
	CoopMembers   []ID

	Start         time.Time
	End           time.Time
	ItemCreatedAt time.Time

	ItemBytes  []byte
	Attributes map[string]string
	Enchants   map[string]int
	Count      int

	// Derived fields — computed by AuctionCodec.Encode, consumed as plain
	// data by everything downstream of the hot store.
	Color    string
	IsSold   bool
	ItemUID  int64
	ItemUUID string

	Bids []Bid
}

// HighestBidderOrDefault returns the recorded highest bidder, which may be
// the codec's deterministic synthetic id if the auction had no bids.
func (a *Auction) HighestBidderOrDefault() ID {
	return a.HighestBidder
}
