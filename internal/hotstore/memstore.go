package hotstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/skyblock-archive/auctions/internal/auction"
	"github.com/skyblock-archive/auctions/internal/errs"
	"github.com/skyblock-archive/auctions/internal/filter"
	"github.com/skyblock-archive/auctions/internal/obslog"
	"github.com/skyblock-archive/auctions/internal/summary"
	"github.com/skyblock-archive/auctions/internal/timebucket"
)

// MemStore is an in-process Store, modeled on the teacher's NewMemDatabase
// in-memory variant of its generic Database abstraction (ethdb/memory_database.go):
// same Store contract as the production backends, zero external
// dependencies, used by tests and by single-process dev deployments that
// set HOTSTORE_BACKEND=memory.
type MemStore struct {
	mu sync.RWMutex

	// rows holds every stored version of every auction, keyed by uuid.
	rows map[auction.ID][]auction.StoredAuction

	// buckets indexes uuids by (tag, time_key) for range scans.
	buckets map[string]map[int16]map[auction.ID]struct{}

	// bySeller indexes uuids by seller for RecentBySeller.
	bySeller map[auction.ID]map[auction.ID]struct{}

	log obslog.Logger
}

func NewMemStore() *MemStore {
	return &MemStore{
		rows:     make(map[auction.ID][]auction.StoredAuction),
		buckets:  make(map[string]map[int16]map[auction.ID]struct{}),
		bySeller: make(map[auction.ID]map[auction.ID]struct{}),
		log:      obslog.New("component", "hotstore.memstore"),
	}
}

func (s *MemStore) Insert(_ context.Context, a auction.Auction, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(a, now)
}

func (s *MemStore) insertLocked(a auction.Auction, now time.Time) error {
	encoded := auction.Encode(a, now)
	for _, existing := range s.rows[a.UUID] {
		if existing.TimeKey == encoded.TimeKey && existing.IsSold == encoded.IsSold &&
			existing.End.Equal(encoded.End) && existing.Seller == encoded.Seller {
			return errs.New(errs.AlreadyExists, "hotstore.Insert", "row already present for this seller", nil)
		}
	}

	s.rows[a.UUID] = append(s.rows[a.UUID], encoded)

	if s.buckets[a.ItemTag] == nil {
		s.buckets[a.ItemTag] = make(map[int16]map[auction.ID]struct{})
	}
	if s.buckets[a.ItemTag][encoded.TimeKey] == nil {
		s.buckets[a.ItemTag][encoded.TimeKey] = make(map[auction.ID]struct{})
	}
	s.buckets[a.ItemTag][encoded.TimeKey][a.UUID] = struct{}{}

	if s.bySeller[a.Seller] == nil {
		s.bySeller[a.Seller] = make(map[auction.ID]struct{})
	}
	s.bySeller[a.Seller][a.UUID] = struct{}{}

	return nil
}

func (s *MemStore) InsertBatchSameTag(_ context.Context, tag string, records []auction.Auction, now time.Time) error {
	for _, r := range records {
		if r.ItemTag != tag {
			return errs.New(errs.InvalidInput, "hotstore.InsertBatchSameTag", "record tag does not match batch tag", nil)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if needsRetrofit(r, now) {
			if src, ok := s.retrofitSourceLocked(r.UUID); ok {
				applyRetrofit(&r, src)
			}
		}
		if err := s.insertLocked(r, now); err != nil {
			if k, _ := errs.KindOf(err); k == errs.AlreadyExists {
				continue
			}
			return err
		}
	}
	return nil
}

// retrofitSourceLocked finds an already-stored version of uuid whose Start
// is populated (a "listed" event) to copy listing metadata from. The
// production backends find this via the auction_uuid secondary index
// scoped to nearby time buckets (spec.md section 4.8); in memory the uuid
// index already covers every bucket so no range is needed.
func (s *MemStore) retrofitSourceLocked(uuid auction.ID) (auction.Auction, bool) {
	for _, v := range s.rows[uuid] {
		if !v.Start.IsZero() {
			return v.Auction, true
		}
	}
	return auction.Auction{}, false
}

func (s *MemStore) Range(_ context.Context, tag string, t0, t1 time.Time, isSold *bool, pred filter.Predicate, limit int) ([]auction.Auction, error) {
	if pred == nil {
		pred = filter.Always
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	lo := timebucket.Bucket(tag, t0)
	hi := timebucket.Bucket(tag, t1)

	candidates := make(map[auction.ID]struct{})
	tagBuckets := s.buckets[tag]
	for b := hi; b >= lo; b-- {
		for id := range tagBuckets[b] {
			candidates[id] = struct{}{}
		}
	}

	out := make([]auction.Auction, 0, limit)
	for id := range candidates {
		combined, ok := combineVersions(s.rows[id])
		if !ok {
			continue
		}
		if combined.End.After(t1) || !combined.End.After(t0) {
			continue
		}
		if isSold != nil && combined.IsSold != *isSold {
			continue
		}
		if !pred(combined) {
			continue
		}
		out = append(out, combined)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].End.After(out[j].End) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) GetByUUID(_ context.Context, uuid auction.ID) ([]auction.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.rows[uuid]
	if len(versions) == 0 {
		return nil, errs.New(errs.NotFound, "hotstore.GetByUUID", "no rows for uuid "+uuid.String(), nil)
	}
	out := make([]auction.Auction, len(versions))
	for i, v := range versions {
		out[i] = auction.Decode(v)
	}
	return out, nil
}

func (s *MemStore) GetCombined(_ context.Context, uuid auction.ID) (auction.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	combined, ok := combineVersions(s.rows[uuid])
	if !ok {
		return auction.Auction{}, errNoVersions(uuid)
	}
	return combined, nil
}

func (s *MemStore) RecentBySeller(_ context.Context, seller auction.ID, before time.Time, limit int) ([]auction.Auction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	windowStart := before.Add(-30 * 24 * time.Hour)
	out := make([]auction.Auction, 0, limit)
	for id := range s.bySeller[seller] {
		combined, ok := combineVersions(s.rows[id])
		if !ok {
			continue
		}
		if combined.End.Before(windowStart) || !combined.End.Before(before) {
			continue
		}
		out = append(out, combined)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].End.After(out[j].End) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) DailyAggregate(_ context.Context, tag string, pred filter.Predicate, day time.Time) (summary.Record, error) {
	if pred == nil {
		pred = filter.Always
	}

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	s.mu.RLock()
	defer s.mu.RUnlock()

	bucket := timebucket.Bucket(tag, dayEnd)
	var matched []auction.Auction
	for id := range s.buckets[tag][bucket] {
		combined, ok := combineVersions(s.rows[id])
		if !ok {
			continue
		}
		if combined.End.Before(dayStart) || !combined.End.Before(dayEnd) {
			continue
		}
		if !pred(combined) {
			continue
		}
		matched = append(matched, combined)
	}

	max, min, median, mean, mode, volume := summary.Aggregate(pricesOf(matched))
	return summary.Record{
		Tag:    tag,
		Start:  dayStart,
		End:    dayStart,
		Max:    max,
		Min:    min,
		Median: median,
		Mean:   mean,
		Mode:   mode,
		Volume: volume,
	}, nil
}

func (s *MemStore) DeleteArchived(_ context.Context, auctions []auction.Auction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range auctions {
		versions, ok := s.rows[a.UUID]
		if !ok {
			continue
		}
		delete(s.rows, a.UUID)
		for _, v := range versions {
			if b, ok := s.buckets[a.ItemTag]; ok {
				if ids, ok := b[v.TimeKey]; ok {
					delete(ids, a.UUID)
				}
			}
			if sellers, ok := s.bySeller[v.Seller]; ok {
				delete(sellers, a.UUID)
			}
		}
	}
	return nil
}

func combineVersions(versions []auction.StoredAuction) (auction.Auction, bool) {
	if len(versions) == 0 {
		return auction.Auction{}, false
	}
	decoded := make([]auction.Auction, len(versions))
	for i, v := range versions {
		decoded[i] = auction.Decode(v)
	}
	return auction.Combine(decoded)
}
