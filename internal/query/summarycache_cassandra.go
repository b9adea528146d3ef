package query

import (
	"context"
	"time"

	"github.com/gocql/gocql"

	"github.com/skyblock-archive/auctions/internal/errs"
	"github.com/skyblock-archive/auctions/internal/hotstore"
	"github.com/skyblock-archive/auctions/internal/summary"
)

// CassandraSummaryStore is the production SummaryStore, backed by the same
// session the hot store uses (see hotstore.TableSummary / CreateSummaryCQL).
type CassandraSummaryStore struct {
	session *gocql.Session
}

func NewCassandraSummaryStore(session *gocql.Session) *CassandraSummaryStore {
	return &CassandraSummaryStore{session: session}
}

func (s *CassandraSummaryStore) Get(ctx context.Context, tag, filterKey string, start, end time.Time) ([]summary.Record, error) {
	iter := s.session.Query(
		`SELECT start, end, filters, max, min, median, mean, mode, volume FROM `+hotstore.TableSummary+
			` WHERE tag=? AND filter_key=? AND end>? AND end<=?`,
		tag, filterKey, start, end,
	).WithContext(ctx).Iter()

	var out []summary.Record
	var rec summary.Record
	for iter.Scan(&rec.Start, &rec.End, &rec.Filters, &rec.Max, &rec.Min, &rec.Median, &rec.Mean, &rec.Mode, &rec.Volume) {
		rec.Tag, rec.FilterKey = tag, filterKey
		out = append(out, rec)
		rec = summary.Record{}
	}
	if err := iter.Close(); err != nil {
		return nil, errs.Wrap(errs.Transient, "query.CassandraSummaryStore.Get", err)
	}
	return out, nil
}

func (s *CassandraSummaryStore) Put(ctx context.Context, rec summary.Record) error {
	err := s.session.Query(
		`INSERT INTO `+hotstore.TableSummary+` (tag, filter_key, end, start, filters, max, min, median, mean, mode, volume)
			VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		rec.Tag, rec.FilterKey, rec.End, rec.Start, rec.Filters, rec.Max, rec.Min, rec.Median, rec.Mean, rec.Mode, rec.Volume,
	).WithContext(ctx).Consistency(gocql.LocalQuorum).Exec()
	if err != nil {
		return errs.Wrap(errs.Transient, "query.CassandraSummaryStore.Put", err)
	}
	return nil
}
