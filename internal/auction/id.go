// Package auction holds the Auction/Bid domain types, the codec that
// converts between the ingest record and the stored record, and the
// combine-versions merge used when multiple stored rows exist for one
// auction uuid.
package auction

import (
	"crypto/sha256"

	"github.com/pborman/uuid"
)

// ID is a 128-bit identifier (auction uuid, seller uuid, bidder uuid, ...).
// It's a fixed-size value type (unlike pborman/uuid.UUID's []byte) so it
// can be used directly as a map key and compared with ==, which the combine
// and codec logic both rely on.
type ID [16]byte

// Zero is the all-zero id. The hot store's bidder secondary index disallows
// an all-zero value, which is why AuctionCodec synthesizes a non-zero
// highest-bidder id when an auction has no bids.
var Zero ID

func (id ID) IsZero() bool { return id == Zero }

func (id ID) String() string {
	return uuid.UUID(id[:]).String()
}

// ParseID parses a canonical (or pborman-accepted) uuid string form.
func ParseID(s string) (ID, error) {
	u := uuid.Parse(s)
	if u == nil {
		return Zero, errInvalidID(s)
	}
	var id ID
	copy(id[:], u)
	return id, nil
}

// MustParseID panics on a malformed id; only for use with literal constants
// (tests, fixtures).
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// NewRandomID generates a random v4 uuid.
func NewRandomID() ID {
	u := uuid.NewRandom()
	var id ID
	copy(id[:], u)
	return id
}

// DeterministicID derives a stable pseudo-uuid from a seed string, used for
// the synthetic highest-bidder and item-uuid fallbacks the codec computes
// when source data is sparse. It is a pure function, never a source of real
// randomness.
func DeterministicID(seed string) ID {
	sum := sha256.Sum256([]byte(seed))
	var id ID
	copy(id[:], sum[:16])
	// RFC4122 doesn't matter here (these ids never leave the process as
	// "real" uuids), but force the id away from the all-zero sentinel.
	if id.IsZero() {
		id[0] = 1
	}
	return id
}

type errInvalidID string

func (e errInvalidID) Error() string { return "auction: invalid id: " + string(e) }
