package query

import (
	"context"
	"sync"
	"time"

	"github.com/skyblock-archive/auctions/internal/summary"
)

// SummaryStore is the daily-aggregate cache collaborator: a row is keyed
// by (tag, filter_key, end) and is idempotent — two concurrent misses for
// the same day may both compute and insert, and the last write wins
// because the content is identical (spec.md section 4.7).
type SummaryStore interface {
	Get(ctx context.Context, tag, filterKey string, start, end time.Time) ([]summary.Record, error)
	Put(ctx context.Context, rec summary.Record) error
}

// MemSummaryStore is an in-process SummaryStore, for tests and single-node
// dev deployments.
type MemSummaryStore struct {
	mu   sync.RWMutex
	rows map[string][]summary.Record // key: tag|filterKey
}

func NewMemSummaryStore() *MemSummaryStore {
	return &MemSummaryStore{rows: make(map[string][]summary.Record)}
}

func summaryPartitionKey(tag, filterKey string) string { return tag + "\x00" + filterKey }

func (s *MemSummaryStore) Get(_ context.Context, tag, filterKey string, start, end time.Time) ([]summary.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []summary.Record
	for _, r := range s.rows[summaryPartitionKey(tag, filterKey)] {
		if r.End.After(start) && !r.End.After(end) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *MemSummaryStore) Put(_ context.Context, rec summary.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := summaryPartitionKey(rec.Tag, rec.FilterKey)
	for i, existing := range s.rows[key] {
		if existing.End.Equal(rec.End) {
			s.rows[key][i] = rec // idempotent overwrite, last writer wins
			return nil
		}
	}
	s.rows[key] = append(s.rows[key], rec)
	return nil
}
