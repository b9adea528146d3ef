// Package migrator is the ArchiveMigrator: the periodic job that copies a
// month of hot-store rows into cold storage, verifies the copy, and only
// then deletes the hot-store rows. Grounded on the teacher's
// migrations.Migrator (migrations/migrations.go): an ordered list of
// idempotent, restartable units of work, applied by checking "has this
// already run" before doing anything — here "has this already run" is
// "does the month's blob already exist" rather than a separate ledger.
package migrator

import (
	"context"
	"math/rand"
	"time"

	mapset "github.com/deckarep/golang-set"

	"github.com/skyblock-archive/auctions/internal/auction"
	"github.com/skyblock-archive/auctions/internal/coldstore"
	"github.com/skyblock-archive/auctions/internal/errs"
	"github.com/skyblock-archive/auctions/internal/hotstore"
	"github.com/skyblock-archive/auctions/internal/metrics"
	"github.com/skyblock-archive/auctions/internal/obslog"
)

// archiveEpoch is the earliest month ever migrated (spec.md section 4.9:
// "for month from 2019-01").
var archiveEpoch = time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC)

const verificationSampleSize = 10

// Migrator runs the hot→cold copy for every configured tag, one month at a
// time, from archiveEpoch up to now−RetentionMonths.
type Migrator struct {
	Hot   hotstore.Store
	Cold  *coldstore.Store
	Tags  []string

	RetentionMonths int
	DryRun          bool

	// rand is package-local and only used to pick verification samples;
	// seeded explicitly (not crypto/rand) since it never affects what gets
	// written, only what gets spot-checked.
	rand *rand.Rand

	log obslog.Logger
}

func New(hot hotstore.Store, cold *coldstore.Store, tags []string, retentionMonths int) *Migrator {
	return &Migrator{
		Hot:             hot,
		Cold:            cold,
		Tags:            tags,
		RetentionMonths: retentionMonths,
		rand:            rand.New(rand.NewSource(1)),
		log:             obslog.New("component", "migrator"),
	}
}

// VerificationFailedError marks a month whose blob failed post-write
// verification; the month is left in the hot store (not deleted) and the
// caller should alert rather than retry blindly.
type VerificationFailedError struct {
	Tag         string
	Year, Month int
	Reason      string
}

func (e *VerificationFailedError) Error() string {
	return "migrator: verification failed for " + e.Tag + ": " + e.Reason
}

// RunOnce walks every (tag, month) pair once, migrating whatever hasn't
// already been archived. It's meant to be invoked on a periodic schedule
// (nominal 24h) by the caller; this function itself does not loop.
func (m *Migrator) RunOnce(ctx context.Context) error {
	now := time.Now().UTC()
	cutoff := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -m.RetentionMonths, 0)

	for _, tag := range m.Tags {
		for cursor := archiveEpoch; cursor.Before(cutoff); cursor = cursor.AddDate(0, 1, 0) {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := m.migrateMonth(ctx, tag, cursor.Year(), int(cursor.Month())); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Migrator) migrateMonth(ctx context.Context, tag string, year, month int) error {
	exists, err := m.Cold.MonthExists(ctx, tag, year, month)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	monthStart := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	monthEnd := monthStart.AddDate(0, 1, 0)

	rows, err := m.Hot.Range(ctx, tag, monthStart, monthEnd, nil, nil, 0)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		metrics.MigrationMonthsTotal.WithLabelValues("skipped_empty").Inc()
		return nil
	}

	if err := m.Cold.StoreMonth(ctx, tag, year, month, rows); err != nil {
		return err
	}

	if err := m.verify(ctx, tag, year, month, rows); err != nil {
		metrics.MigrationMonthsTotal.WithLabelValues("verify_failed").Inc()
		m.log.Error("archive verification failed, not deleting hot rows", "tag", tag, "year", year, "month", month, "err", err)
		return err
	}

	if m.DryRun {
		metrics.MigrationMonthsTotal.WithLabelValues("dry_run").Inc()
		m.log.Info("dry run: skipping hot-store deletion", "tag", tag, "year", year, "month", month, "count", len(rows))
		return nil
	}

	if err := m.Hot.DeleteArchived(ctx, rows); err != nil {
		return errs.Wrap(errs.Transient, "migrator.migrateMonth", err)
	}
	metrics.MigrationMonthsTotal.WithLabelValues("archived").Inc()
	m.log.Info("archived and deleted hot rows", "tag", tag, "year", year, "month", month, "count", len(rows))
	return nil
}

// verify reads the blob back, checks the uuid sets match exactly, then
// spot-checks up to verificationSampleSize random rows for
// (highest_bid, seller, end, tag) equality.
func (m *Migrator) verify(ctx context.Context, tag string, year, month int, rows []auction.Auction) error {
	archived, err := m.Cold.GetMonth(ctx, tag, year, month)
	if err != nil {
		return err
	}

	if len(archived) != len(rows) {
		return &VerificationFailedError{Tag: tag, Year: year, Month: month, Reason: "count mismatch"}
	}

	expected := mapset.NewSet()
	for _, r := range rows {
		expected.Add(r.UUID)
	}
	actual := mapset.NewSet()
	byUUID := make(map[auction.ID]auction.Auction, len(archived))
	for _, a := range archived {
		actual.Add(a.UUID)
		byUUID[a.UUID] = a
	}
	if !expected.Equal(actual) {
		return &VerificationFailedError{Tag: tag, Year: year, Month: month, Reason: "uuid set mismatch"}
	}

	samples := rows
	if len(samples) > verificationSampleSize {
		samples = sampleRows(m.rand, rows, verificationSampleSize)
	}
	for _, want := range samples {
		got, ok := byUUID[want.UUID]
		if !ok {
			return &VerificationFailedError{Tag: tag, Year: year, Month: month, Reason: "sampled uuid missing from blob"}
		}
		if got.HighestBid != want.HighestBid || got.Seller != want.Seller || !got.End.Equal(want.End) || got.ItemTag != want.ItemTag {
			return &VerificationFailedError{Tag: tag, Year: year, Month: month, Reason: "sampled field mismatch for " + want.UUID.String()}
		}
	}
	return nil
}

func sampleRows(r *rand.Rand, rows []auction.Auction, n int) []auction.Auction {
	idx := r.Perm(len(rows))[:n]
	out := make([]auction.Auction, n)
	for i, j := range idx {
		out[i] = rows[j]
	}
	return out
}
