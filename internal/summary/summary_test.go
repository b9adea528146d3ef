package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilterKeyExcludesEndWindowKeys(t *testing.T) {
	withWindow := map[string]string{"Tier": "MYTHIC", "EndAfter": "100", "EndBefore": "200"}
	withoutWindow := map[string]string{"Tier": "MYTHIC"}

	assert.Equal(t, FilterKey(withoutWindow), FilterKey(withWindow))
}

func TestFilterKeyIsSortedByKey(t *testing.T) {
	a := map[string]string{"Tier": "MYTHIC", "BIN": "true"}
	assert.Equal(t, "BIN=true&Tier=MYTHIC", FilterKey(a))
}

func TestAggregateEmptyIsAllZero(t *testing.T) {
	max, min, median, mean, mode, volume := Aggregate(nil)
	assert.Zero(t, max)
	assert.Zero(t, min)
	assert.Zero(t, median)
	assert.Zero(t, mean)
	assert.Zero(t, mode)
	assert.Zero(t, volume)
}

func TestAggregateMedianIsLowerMedian(t *testing.T) {
	max, min, median, mean, _, volume := Aggregate([]int64{10, 20, 30, 40})

	assert.Equal(t, int64(40), max)
	assert.Equal(t, int64(10), min)
	assert.Equal(t, int64(30), median, "lower-median of 4 elements is index 2")
	assert.Equal(t, 25.0, mean)
	assert.Equal(t, 4, volume)
}

func TestAggregateModeBreaksTiesByFirstSeen(t *testing.T) {
	_, _, _, _, mode, _ := Aggregate([]int64{30, 10, 10, 30})
	assert.Equal(t, int64(30), mode, "30 appears first even though both occur twice")
}

func TestAggregateModeIsMostFrequent(t *testing.T) {
	_, _, _, _, mode, _ := Aggregate([]int64{5, 7, 7, 7, 9})
	assert.Equal(t, int64(7), mode)
}
