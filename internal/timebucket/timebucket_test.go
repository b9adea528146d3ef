package timebucket

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBucketMonotone(t *testing.T) {
	tag := "DIAMOND_SWORD"
	t1 := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(30 * 24 * time.Hour)
	assert.LessOrEqual(t, int(Bucket(tag, t1)), int(Bucket(tag, t2)))
}

func TestBucketDeterministic(t *testing.T) {
	tag := "HYPERION"
	end := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, Bucket(tag, end), Bucket(tag, end))
}

func TestHighVolumeNarrowerWidth(t *testing.T) {
	assert.Less(t, Width("ENCHANTED_BOOK"), Width("DIAMOND_SWORD"))
	assert.Equal(t, Width("unknown"), Width("ENCHANTED_BOOK"))
}

func TestLegacyFixupDeterministicAndBounded(t *testing.T) {
	end := time.Date(1995, 3, 1, 0, 0, 0, 0, time.UTC)
	b1 := Bucket("ENCHANTED_BOOK", end)
	b2 := Bucket("ENCHANTED_BOOK", end)
	assert.Equal(t, b1, b2)
	assert.GreaterOrEqual(t, int(b1), 0)
	assert.Less(t, int(b1), legacySmallMax)
}

func TestDateOfRoundTrip(t *testing.T) {
	tag := "DIAMOND_SWORD"
	b := Bucket(tag, time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC))
	d := DateOf(tag, b)
	assert.Equal(t, b, Bucket(tag, d))
}
