// Package summary holds the daily-aggregate record cached by the query
// engine's summary table and the arithmetic used to compute one.
package summary

import (
	"sort"
	"strings"
	"time"
)

// Record is one cached daily aggregate. Key: (Tag, FilterKey) partition,
// End clustering. Immutable once written for a finalized day.
type Record struct {
	Tag       string
	FilterKey string
	Filters   map[string]string

	Start time.Time
	End   time.Time

	Max    int64
	Min    int64
	Median int64
	Mean   float64
	Mode   int64
	Volume int
}

// reservedFilterKeys are excluded from FilterKey: they select the query's
// time window, not a row-matching predicate, so two summary queries that
// differ only in EndBefore/EndAfter must land on the same cache partition.
var reservedFilterKeys = map[string]struct{}{
	"EndBefore": {},
	"EndAfter":  {},
}

// FilterKey derives the summary cache's partition discriminator: filter
// keys and values, sorted by key, excluding EndBefore/EndAfter, joined as
// "k1=v1&k2=v2". Two filter maps that are equal modulo the reserved keys
// produce the same FilterKey.
func FilterKey(filters map[string]string) string {
	keys := make([]string, 0, len(filters))
	for k := range filters {
		if _, reserved := reservedFilterKeys[k]; reserved {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(filters[k])
	}
	return b.String()
}

// Aggregate computes max/min/median/mean/mode/volume over a set of prices
// observed for one (tag, filter, day) bucket. median is the lower-median
// (element at index n/2 of the sorted slice, integer division); mode is the
// most frequent value, ties broken by first appearance in the input order;
// on empty input every numeric field is zero.
func Aggregate(prices []int64) (max, min, median int64, mean float64, mode int64, volume int) {
	volume = len(prices)
	if volume == 0 {
		return 0, 0, 0, 0, 0, 0
	}

	sorted := make([]int64, volume)
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	max = sorted[volume-1]
	min = sorted[0]
	median = sorted[volume/2]

	var sum int64
	for _, p := range prices {
		sum += p
	}
	mean = float64(sum) / float64(volume)

	mode = firstSeenMode(prices)

	return max, min, median, mean, mode, volume
}

func firstSeenMode(prices []int64) int64 {
	counts := make(map[int64]int, len(prices))
	order := make([]int64, 0, len(prices))
	for _, p := range prices {
		if counts[p] == 0 {
			order = append(order, p)
		}
		counts[p]++
	}

	best := order[0]
	bestCount := counts[best]
	for _, p := range order[1:] {
		if counts[p] > bestCount {
			best = p
			bestCount = counts[p]
		}
	}
	return best
}
