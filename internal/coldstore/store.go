package coldstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/skyblock-archive/auctions/internal/auction"
	"github.com/skyblock-archive/auctions/internal/errs"
	"github.com/skyblock-archive/auctions/internal/obslog"
)

// Store is the cold archive: immutable per-(tag, month) blobs plus the
// bloom indexes that make point lookup cheaper than a full scan.
type Store struct {
	client ObjectClient
	index  *indexManager
	log    obslog.Logger
}

func New(client ObjectClient) *Store {
	return &Store{client: client, index: newIndexManager(client), log: obslog.New("component", "coldstore")}
}

// LoadIndexes hydrates the master bloom, warms the per-tag bloom for every
// tag in tags, and also warms any tag discovered in the object store that
// isn't in that list — so a freshly started process (cmd/server after
// cmd/migrator archived in a separate process) doesn't have to wait for a
// write to populate its in-memory per-tag cache before Lookup can see it.
func (s *Store) LoadIndexes(ctx context.Context, tags []string) error {
	if err := s.index.loadMaster(ctx); err != nil {
		return err
	}

	warmed := make(map[string]bool, len(tags))
	for _, tag := range tags {
		if _, err := s.index.loadTag(ctx, tag); err != nil {
			return errs.Wrap(errs.Transient, "coldstore.LoadIndexes", err)
		}
		warmed[tag] = true
	}

	discovered, err := s.index.discoverTags(ctx)
	if err != nil {
		return errs.Wrap(errs.Transient, "coldstore.LoadIndexes", err)
	}
	for _, tag := range discovered {
		if warmed[tag] {
			continue
		}
		if _, err := s.index.loadTag(ctx, tag); err != nil {
			return errs.Wrap(errs.Transient, "coldstore.LoadIndexes", err)
		}
	}
	return nil
}

func blobKey(tag string, year, month int) string {
	return fmt.Sprintf("auctions/%s/%04d/%02d.blob", sanitizeTag(tag), year, month)
}

// StoreMonth serializes records as a compressed blob, writes it, and
// updates the per-tag and master bloom indexes (union-add every uuid).
func (s *Store) StoreMonth(ctx context.Context, tag string, year, month int, records []auction.Auction) error {
	buf, err := encodeBlob(records)
	if err != nil {
		return errs.Wrap(errs.Fatal, "coldstore.StoreMonth", err)
	}

	meta := map[string]string{
		"count": strconv.Itoa(len(records)),
		"tag":   tag,
		"year":  strconv.Itoa(year),
		"month": strconv.Itoa(month),
	}
	if err := s.client.Put(ctx, blobKey(tag, year, month), buf, meta); err != nil {
		return errs.Wrap(errs.Transient, "coldstore.StoreMonth", err)
	}

	uuids := make([]string, len(records))
	for i, r := range records {
		uuids[i] = r.UUID.String()
	}
	if err := s.index.recordMonth(ctx, tag, year, month, uuids); err != nil {
		// Blob write already succeeded; the filter just lags until the next
		// recordMonth call or a process restart reloads it. See spec.md
		// section 4.5's eventually-consistent contract.
		s.log.Warn("bloom index update failed after blob write", "tag", tag, "year", year, "month", month, "err", err)
	}
	return nil
}

// GetMonth reads and decodes one month's blob; a missing object is not an
// error — it's an empty month.
func (s *Store) GetMonth(ctx context.Context, tag string, year, month int) ([]auction.Auction, error) {
	body, err := s.client.Get(ctx, blobKey(tag, year, month))
	if err != nil {
		if _, ok := err.(ErrObjectNotFound); ok {
			return nil, nil
		}
		return nil, errs.Wrap(errs.Transient, "coldstore.GetMonth", err)
	}
	defer body.Close()

	records, err := decodeBlob(body)
	if err != nil {
		return nil, errs.Wrap(errs.Fatal, "coldstore.GetMonth", err)
	}
	return records, nil
}

// Month is one archived (year, month) shard for a tag.
type Month struct {
	Year, Month int
}

// ListMonths returns every month archived for tag, sorted ascending.
func (s *Store) ListMonths(ctx context.Context, tag string) ([]Month, error) {
	idx, err := s.index.loadTag(ctx, tag)
	if err != nil {
		return nil, errs.Wrap(errs.Transient, "coldstore.ListMonths", err)
	}
	out := make([]Month, 0, len(idx.months))
	for mk := range idx.months {
		out = append(out, Month{Year: mk.Year, Month: mk.Month})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year < out[j].Year
		}
		return out[i].Month < out[j].Month
	})
	return out, nil
}

func (s *Store) MonthExists(ctx context.Context, tag string, year, month int) (bool, error) {
	ok, err := s.client.Head(ctx, blobKey(tag, year, month))
	if err != nil {
		return false, errs.Wrap(errs.Transient, "coldstore.MonthExists", err)
	}
	return ok, nil
}

// MayContain consults the master bloom only; a positive result can't be
// narrowed further without a per-tag scan (see Lookup).
func (s *Store) MayContain(uuid auction.ID) bool {
	return s.index.mayContainMaster(uuid.String())
}

// Lookup finds a single auction by uuid across the whole archive: master
// bloom first (definite no short-circuits), then per-tag blooms, then a
// blob scan for every (tag, month) whose filter says maybe.
func (s *Store) Lookup(ctx context.Context, uuid auction.ID) (auction.Auction, bool, error) {
	key := uuid.String()
	if !s.index.mayContainMaster(key) {
		return auction.Auction{}, false, nil
	}

	candidates, err := s.index.tagsAndMonths(key, ctx)
	if err != nil {
		return auction.Auction{}, false, errs.Wrap(errs.Transient, "coldstore.Lookup", err)
	}

	for tag, months := range candidates {
		for _, mk := range months {
			records, err := s.GetMonth(ctx, tag, mk.Year, mk.Month)
			if err != nil {
				s.log.Warn("cold blob read failed during lookup, skipping shard", "tag", tag, "year", mk.Year, "month", mk.Month, "err", err)
				continue
			}
			for _, r := range records {
				if r.UUID == uuid {
					return r, true, nil
				}
			}
		}
	}
	return auction.Auction{}, false, nil
}
