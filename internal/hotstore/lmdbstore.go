package hotstore

import (
	"context"
	"encoding/binary"
	"os"
	"sort"
	"time"

	"github.com/ledgerwatch/lmdb-go/lmdb"
	"github.com/ugorji/go/codec"

	"github.com/skyblock-archive/auctions/internal/auction"
	"github.com/skyblock-archive/auctions/internal/errs"
	"github.com/skyblock-archive/auctions/internal/filter"
	"github.com/skyblock-archive/auctions/internal/obslog"
	"github.com/skyblock-archive/auctions/internal/summary"
	"github.com/skyblock-archive/auctions/internal/timebucket"
)

// LMDB database names, same flat-registry idiom as common/dbutils/bucket.go
// (TableAuctions etc. in schema.go), plus two DupSort secondary indexes.
const (
	dbiRows        = "rows"         // uuid -> cbor([]StoredAuction) (every version)
	dbiBucketIndex = "bucket_index" // tag|time_key (big endian) -> uuid, DupSort
	dbiSellerIndex = "seller_index" // seller uuid -> uuid, DupSort
)

var cborHandle = &codec.CborHandle{}

// LMDBStore is the dev/test hot-store backend, used when HOTSTORE_BACKEND=lmdb.
// Grounded on the teacher's LMDB-backed ethdb.Database — that abstraction
// itself wasn't retrieved in the pack slice, so this talks to
// ledgerwatch/lmdb-go/lmdb directly rather than reconstructing an
// unretrieved interface, using the same DupSort-secondary-index idiom as
// common/dbutils/bucket.go's BucketConfigItem table.
type LMDBStore struct {
	env *lmdb.Env
	log obslog.Logger

	rows    lmdb.DBI
	buckets lmdb.DBI
	sellers lmdb.DBI
}

func OpenLMDBStore(path string) (*LMDBStore, error) {
	env, err := lmdb.NewEnv()
	if err != nil {
		return nil, errs.Wrap(errs.Fatal, "hotstore.OpenLMDBStore", err)
	}
	if err := env.SetMapSize(1 << 34); err != nil {
		return nil, errs.Wrap(errs.Fatal, "hotstore.OpenLMDBStore", err)
	}
	if err := env.SetMaxDBs(3); err != nil {
		return nil, errs.Wrap(errs.Fatal, "hotstore.OpenLMDBStore", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, errs.Wrap(errs.Fatal, "hotstore.OpenLMDBStore", err)
	}
	if err := env.Open(path, 0, 0o644); err != nil {
		return nil, errs.Wrap(errs.Fatal, "hotstore.OpenLMDBStore", err)
	}

	s := &LMDBStore{env: env, log: obslog.New("component", "hotstore.lmdb")}
	err = env.Update(func(txn *lmdb.Txn) error {
		var e error
		if s.rows, e = txn.OpenDBI(dbiRows, lmdb.Create); e != nil {
			return e
		}
		if s.buckets, e = txn.OpenDBI(dbiBucketIndex, lmdb.Create|lmdb.DupSort); e != nil {
			return e
		}
		if s.sellers, e = txn.OpenDBI(dbiSellerIndex, lmdb.Create|lmdb.DupSort); e != nil {
			return e
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.Fatal, "hotstore.OpenLMDBStore", err)
	}
	return s, nil
}

func (s *LMDBStore) Close() error { return s.env.Close() }

func bucketIndexKey(tag string, timeKey int16) []byte {
	key := make([]byte, len(tag)+2)
	copy(key, tag)
	binary.BigEndian.PutUint16(key[len(tag):], uint16(timeKey))
	return key
}

func (s *LMDBStore) getVersions(txn *lmdb.Txn, id auction.ID) ([]auction.StoredAuction, error) {
	raw, err := txn.Get(s.rows, id[:])
	if lmdb.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var versions []auction.StoredAuction
	if err := codec.NewDecoderBytes(raw, cborHandle).Decode(&versions); err != nil {
		return nil, err
	}
	return versions, nil
}

func (s *LMDBStore) putVersions(txn *lmdb.Txn, id auction.ID, versions []auction.StoredAuction) error {
	var buf []byte
	if err := codec.NewEncoderBytes(&buf, cborHandle).Encode(versions); err != nil {
		return err
	}
	return txn.Put(s.rows, id[:], buf, 0)
}

func (s *LMDBStore) Insert(_ context.Context, a auction.Auction, now time.Time) error {
	return s.env.Update(func(txn *lmdb.Txn) error {
		return s.insertTxn(txn, a, now)
	})
}

func (s *LMDBStore) insertTxn(txn *lmdb.Txn, a auction.Auction, now time.Time) error {
	encoded := auction.Encode(a, now)

	versions, err := s.getVersions(txn, a.UUID)
	if err != nil {
		return errs.Wrap(errs.Transient, "hotstore.Insert", err)
	}
	for _, existing := range versions {
		if existing.TimeKey == encoded.TimeKey && existing.IsSold == encoded.IsSold &&
			existing.End.Equal(encoded.End) && existing.Seller == encoded.Seller {
			return errs.New(errs.AlreadyExists, "hotstore.Insert", "row already present for this seller", nil)
		}
	}

	versions = append(versions, encoded)
	if err := s.putVersions(txn, a.UUID, versions); err != nil {
		return errs.Wrap(errs.Transient, "hotstore.Insert", err)
	}
	if err := txn.Put(s.buckets, bucketIndexKey(a.ItemTag, encoded.TimeKey), a.UUID[:], 0); err != nil {
		return errs.Wrap(errs.Transient, "hotstore.Insert", err)
	}
	if err := txn.Put(s.sellers, a.Seller[:], a.UUID[:], 0); err != nil {
		return errs.Wrap(errs.Transient, "hotstore.Insert", err)
	}
	return nil
}

func (s *LMDBStore) InsertBatchSameTag(_ context.Context, tag string, records []auction.Auction, now time.Time) error {
	for _, r := range records {
		if r.ItemTag != tag {
			return errs.New(errs.InvalidInput, "hotstore.InsertBatchSameTag", "record tag does not match batch tag", nil)
		}
	}
	return s.env.Update(func(txn *lmdb.Txn) error {
		for _, r := range records {
			if needsRetrofit(r, now) {
				if src, ok := s.retrofitSourceTxn(txn, r.UUID); ok {
					applyRetrofit(&r, src)
				}
			}
			if err := s.insertTxn(txn, r, now); err != nil {
				if k, _ := errs.KindOf(err); k == errs.AlreadyExists {
					continue
				}
				return err
			}
		}
		return nil
	})
}

func (s *LMDBStore) retrofitSourceTxn(txn *lmdb.Txn, id auction.ID) (auction.Auction, bool) {
	versions, err := s.getVersions(txn, id)
	if err != nil {
		return auction.Auction{}, false
	}
	for _, v := range versions {
		if !v.Start.IsZero() {
			return v.Auction, true
		}
	}
	return auction.Auction{}, false
}

func (s *LMDBStore) uuidsInBucket(txn *lmdb.Txn, tag string, timeKey int16) ([]auction.ID, error) {
	cur, err := txn.OpenCursor(s.buckets)
	if err != nil {
		return nil, err
	}
	defer cur.Close()

	key := bucketIndexKey(tag, timeKey)
	var out []auction.ID
	k, v, err := cur.Get(key, nil, lmdb.SetKey)
	for ; err == nil; k, v, err = cur.Get(nil, nil, lmdb.NextDup) {
		if string(k) != string(key) {
			break
		}
		var id auction.ID
		copy(id[:], v)
		out = append(out, id)
	}
	if err != nil && !lmdb.IsNotFound(err) {
		return nil, err
	}
	return out, nil
}

func (s *LMDBStore) Range(_ context.Context, tag string, t0, t1 time.Time, isSold *bool, pred filter.Predicate, limit int) ([]auction.Auction, error) {
	if pred == nil {
		pred = filter.Always
	}

	var out []auction.Auction
	err := s.env.View(func(txn *lmdb.Txn) error {
		lo := timebucket.Bucket(tag, t0)
		hi := timebucket.Bucket(tag, t1)
		seen := make(map[auction.ID]struct{})

		for b := hi; b >= lo; b-- {
			ids, err := s.uuidsInBucket(txn, tag, b)
			if err != nil {
				return err
			}
			for _, id := range ids {
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}

				versions, err := s.getVersions(txn, id)
				if err != nil {
					return err
				}
				combined, ok := combineStoredVersions(versions)
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
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.Transient, "hotstore.Range", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].End.After(out[j].End) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func combineStoredVersions(versions []auction.StoredAuction) (auction.Auction, bool) {
	if len(versions) == 0 {
		return auction.Auction{}, false
	}
	decoded := make([]auction.Auction, len(versions))
	for i, v := range versions {
		decoded[i] = auction.Decode(v)
	}
	return auction.Combine(decoded)
}

func (s *LMDBStore) GetByUUID(_ context.Context, id auction.ID) ([]auction.Auction, error) {
	var out []auction.Auction
	err := s.env.View(func(txn *lmdb.Txn) error {
		versions, err := s.getVersions(txn, id)
		if err != nil {
			return err
		}
		out = make([]auction.Auction, len(versions))
		for i, v := range versions {
			out[i] = auction.Decode(v)
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.Transient, "hotstore.GetByUUID", err)
	}
	if len(out) == 0 {
		return nil, errs.New(errs.NotFound, "hotstore.GetByUUID", "no rows for uuid "+id.String(), nil)
	}
	return out, nil
}

func (s *LMDBStore) GetCombined(_ context.Context, id auction.ID) (auction.Auction, error) {
	var combined auction.Auction
	var ok bool
	err := s.env.View(func(txn *lmdb.Txn) error {
		versions, err := s.getVersions(txn, id)
		if err != nil {
			return err
		}
		combined, ok = combineStoredVersions(versions)
		return nil
	})
	if err != nil {
		return auction.Auction{}, errs.Wrap(errs.Transient, "hotstore.GetCombined", err)
	}
	if !ok {
		return auction.Auction{}, errNoVersions(id)
	}
	return combined, nil
}

func (s *LMDBStore) RecentBySeller(_ context.Context, seller auction.ID, before time.Time, limit int) ([]auction.Auction, error) {
	windowStart := before.Add(-30 * 24 * time.Hour)
	var out []auction.Auction

	err := s.env.View(func(txn *lmdb.Txn) error {
		cur, err := txn.OpenCursor(s.sellers)
		if err != nil {
			return err
		}
		defer cur.Close()

		k, v, err := cur.Get(seller[:], nil, lmdb.SetKey)
		for ; err == nil; k, v, err = cur.Get(nil, nil, lmdb.NextDup) {
			if string(k) != string(seller[:]) {
				break
			}
			var id auction.ID
			copy(id[:], v)
			versions, verr := s.getVersions(txn, id)
			if verr != nil {
				return verr
			}
			combined, ok := combineStoredVersions(versions)
			if !ok {
				continue
			}
			if combined.End.Before(windowStart) || !combined.End.Before(before) {
				continue
			}
			out = append(out, combined)
		}
		if err != nil && !lmdb.IsNotFound(err) {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, errs.Wrap(errs.Transient, "hotstore.RecentBySeller", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].End.After(out[j].End) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// DeleteArchived removes rows, and their bucket/seller index entries, for
// every given auction's uuid.
func (s *LMDBStore) DeleteArchived(_ context.Context, auctions []auction.Auction) error {
	err := s.env.Update(func(txn *lmdb.Txn) error {
		for _, a := range auctions {
			versions, err := s.getVersions(txn, a.UUID)
			if err != nil {
				return err
			}
			for _, v := range versions {
				if err := txn.Del(s.buckets, bucketIndexKey(a.ItemTag, v.TimeKey), a.UUID[:]); err != nil && !lmdb.IsNotFound(err) {
					return err
				}
				if err := txn.Del(s.sellers, v.Seller[:], a.UUID[:]); err != nil && !lmdb.IsNotFound(err) {
					return err
				}
			}
			if err := txn.Del(s.rows, a.UUID[:], nil); err != nil && !lmdb.IsNotFound(err) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errs.Wrap(errs.Transient, "hotstore.DeleteArchived", err)
	}
	return nil
}

func (s *LMDBStore) DailyAggregate(ctx context.Context, tag string, pred filter.Predicate, day time.Time) (summary.Record, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	dayEnd := dayStart.Add(24 * time.Hour)

	matched, err := s.Range(ctx, tag, dayStart, dayEnd, nil, pred, 0)
	if err != nil {
		return summary.Record{}, err
	}

	max, min, median, mean, mode, volume := summary.Aggregate(pricesOf(matched))
	return summary.Record{
		Tag: tag, Start: dayStart, End: dayStart,
		Max: max, Min: min, Median: median, Mean: mean, Mode: mode, Volume: volume,
	}, nil
}
