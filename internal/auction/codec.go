package auction

import (
	"strconv"
	"time"

	"github.com/skyblock-archive/auctions/internal/timebucket"
)

// StoredAuction is the canonical hot-store row: an Auction plus the
// partition bucket key derived from (tag, end). Encode/Decode are the only
// places that compute or unpack TimeKey.
type StoredAuction struct {
	Auction
	TimeKey int16
}

// EnchantEntry is one raw (name, level) pair as read off an item's NBT
// before collision mitigation is applied.
type EnchantEntry struct {
	Name  string
	Level int
}

// NormalizeEnchantments builds the name->level map from raw entries,
// applying collision mitigation for the "unknown" enchantment: Hypixel
// SkyBlock items occasionally carry more than one enchant the source data
// could not name, and collapsing them into one "unknown" key would lose an
// enchant. Repeats are suffixed "unknown_2", "unknown_3", ...
func NormalizeEnchantments(entries []EnchantEntry) map[string]int {
	out := make(map[string]int, len(entries))
	unknownSeen := 0
	for _, e := range entries {
		name := e.Name
		if name == "unknown" {
			unknownSeen++
			if unknownSeen > 1 {
				name = "unknown_" + strconv.Itoa(unknownSeen)
			}
		}
		out[name] = e.Level
	}
	return out
}

// Encode converts an ingest-shaped Auction into its canonical stored form:
// it derives color, item uid/uuid, highest bidder, is_sold, and the time
// bucket key, and enforces the highest_bid/highest_bidder-from-bids
// invariant. Fields absent on a sparse "sold" ingress event (start, count,
// item_created_at, ...) are left as their zero value; retrofit fills them
// in later (see internal/ingest).
func Encode(a Auction, now time.Time) StoredAuction {
	out := a
	out.Color = deriveColor(a.Attributes)
	out.ItemUID = deriveItemUID(a)
	out.ItemUUID = deriveItemUUID(a)

	if len(a.Bids) > 0 {
		hb, amount := argMaxBid(a.Bids)
		out.HighestBid = amount
		out.HighestBidder = hb
	} else if out.HighestBidder.IsZero() {
		out.HighestBidder = DeterministicID(a.UUID.String() + "|no-bidder")
	}

	if out.ProfileID.IsZero() {
		out.ProfileID = out.Seller
	}

	out.Bids = make([]Bid, len(a.Bids))
	for i, b := range a.Bids {
		out.Bids[i] = encodeBid(b)
	}

	out.IsSold = out.HighestBid > 0 && !out.End.After(now)

	key := timebucket.Bucket(a.ItemTag, a.End)
	return StoredAuction{Auction: out, TimeKey: key}
}

// Decode unpacks a StoredAuction back into the domain Auction. Because
// Encode already normalized every derived field, Decode is the identity
// transform over the embedded Auction — it exists as a named operation to
// keep the encode/decode contract symmetric and as the seam where a future
// on-disk format change would live.
func Decode(sa StoredAuction) Auction {
	return sa.Auction
}

func encodeBid(b Bid) Bid {
	out := b
	if out.ProfileID.IsZero() || out.ProfileID == unknownSentinel {
		out.ProfileID = out.Bidder
	}
	if out.Timestamp.Location() != time.UTC {
		out.Timestamp = out.Timestamp.UTC()
	}
	return out
}

// unknownSentinel is the id ProfileID defaults away from when the source
// literal was the string "unknown" rather than an absent field (see
// spec.md section 3, Bid invariants).
var unknownSentinel = DeterministicID("bid-profile-unknown-sentinel")

func argMaxBid(bids []Bid) (bidder ID, amount int64) {
	for _, b := range bids {
		if b.Amount > amount {
			amount = b.Amount
			bidder = b.Bidder
		}
	}
	return bidder, amount
}

func deriveColor(attrs map[string]string) string {
	if c, ok := attrs["color"]; ok {
		return c
	}
	return ""
}

func deriveItemUID(a Auction) int64 {
	if hex, ok := a.Attributes["uid"]; ok && hex != "" {
		if v, err := strconv.ParseInt(hex, 16, 64); err == nil && v > 0 {
			return v
		}
	}
	// Fallback: small positive pseudo-random value, deterministic per
	// auction uuid so re-encoding the same ingress record is stable.
	id := DeterministicID(a.UUID.String() + "|item-uid")
	v := int64(id[0])<<8 | int64(id[1])
	if v <= 0 {
		v = 1
	}
	return v
}

func deriveItemUUID(a Auction) string {
	if u, ok := a.Attributes["uuid"]; ok && u != "" {
		return u
	}
	uid := deriveItemUID(a)
	return "00000000-0000-0000-0000-" + padHex12(uid)
}

func padHex12(v int64) string {
	s := strconv.FormatInt(v, 16)
	for len(s) < 12 {
		s = "0" + s
	}
	return s
}
