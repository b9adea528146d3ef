// Package sqlsource is the historical relational-database collaborator the
// ingest pipeline's migrator pages through — spec.md section 4.8 names it
// explicitly as "the collaborator being phased out": this package only
// fixes the Source shape and a sqlx/mysql-backed implementation.
package sqlsource

import (
	"context"

	"github.com/skyblock-archive/auctions/internal/auction"
)

// Row is one historical auction row, as read from the legacy relational
// schema, plus its primary key for windowed paging.
type Row struct {
	ID int64
	auction.Auction
}

// Source pages historical rows in primary-key windows and flattens bids
// for a batch of rows.
type Source interface {
	// RowsInWindow returns rows with id in [offset, offset+n).
	RowsInWindow(ctx context.Context, offset, n int64) ([]Row, error)
	// BidsForRows returns every bid belonging to the given auction uuids.
	BidsForRows(ctx context.Context, auctionUUIDs []auction.ID) (map[auction.ID][]auction.Bid, error)
	// MaxID reports the highest primary key currently present, to bound the
	// historical migrator's paging loop.
	MaxID(ctx context.Context) (int64, error)
}

// Restorer is implemented by a Source that can also write back to the
// legacy relational collaborator: the restore endpoints use it to
// reinsert a row the archive still has after the game server's own copy
// was lost, or retire one the archive has confirmed is safely archived.
type Restorer interface {
	Restore(ctx context.Context, a auction.Auction) error
	Retire(ctx context.Context, uuid auction.ID) error
}
