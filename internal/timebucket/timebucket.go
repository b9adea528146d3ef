// Package timebucket maps (tag, end_time) to the short integer partition
// key used by the hot store to keep tag-scoped time-range scans narrow.
// Bucketing is deterministic and side-effect free except for the legacy
// pre-2000 fixup, which is seeded off the inputs so it stays deterministic
// per call even though its exact value is not meant to be relied upon by
// callers (see spec Open Question (a)).
package timebucket

import (
	"hash/fnv"
	"time"
)

// epoch is the origin all bucket arithmetic is relative to.
var epoch = time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

// legacyCutoff is the boundary below which high-volume tags get the
// random-small-bucket fixup instead of a real bucket computation.
var legacyCutoff = time.Date(2000, 6, 1, 0, 0, 0, 0, time.UTC)

const (
	ordinaryWidth   = 7 * 24 * time.Hour
	highVolumeWidth = 12 * time.Hour
	legacySmallMax  = 100 // exclusive upper bound for the legacy fixup bucket
)

// HighVolume tags get a narrower bucket width because they see
// disproportionately more listings than an average item tag.
func HighVolume(tag string) bool {
	return tag == "ENCHANTED_BOOK" || tag == "" || tag == "unknown"
}

// Width returns the bucket width for tag.
func Width(tag string) time.Duration {
	if HighVolume(tag) {
		return highVolumeWidth
	}
	return ordinaryWidth
}

// Bucket computes the partition bucket key for (tag, end). It is a pure
// function of its inputs: the same (tag, end) always yields the same
// result, including the legacy fixup branch.
func Bucket(tag string, end time.Time) int16 {
	end = end.UTC()
	if HighVolume(tag) && end.Before(legacyCutoff) {
		return legacyBucket(tag, end)
	}
	width := Width(tag)
	delta := end.Sub(epoch)
	n := int64(delta / width)
	return int16(n)
}

// DateOf returns the nominal start-of-bucket date for (tag, bucket). It is
// the inverse of Bucket for buckets computed via the non-legacy branch;
// legacy-fixup buckets do not round-trip (by design — see Open Question (a)).
func DateOf(tag string, bucket int16) time.Time {
	width := Width(tag)
	return epoch.Add(time.Duration(bucket) * width)
}

// legacyBucket deterministically maps a pre-2000 high-volume-tag timestamp
// to a small bucket number. The exact mapping is an intentionally-retained
// data-cleanup hack from the source system; only determinism (same input,
// same output) is guaranteed, not any particular distribution.
func legacyBucket(tag string, end time.Time) int16 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(tag))
	var buf [8]byte
	ns := end.UnixNano()
	for i := 0; i < 8; i++ {
		buf[i] = byte(ns >> (8 * i))
	}
	_, _ = h.Write(buf[:])
	return int16(h.Sum64() % legacySmallMax)
}
