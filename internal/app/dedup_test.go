package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBucketOfFloorsToTenMinutes(t *testing.T) {
	loc := time.UTC
	base := bucketOf(time.Date(2025, time.May, 3, 10, 0, 0, 0, loc))

	assert.Equal(t, "20250503_1000", base)
	assert.Equal(t, base, bucketOf(time.Date(2025, time.May, 3, 10, 7, 12, 0, loc)))
	assert.Equal(t, base, bucketOf(time.Date(2025, time.May, 3, 10, 9, 59, 0, loc)))
	assert.NotEqual(t, base, bucketOf(time.Date(2025, time.May, 3, 10, 10, 0, 0, loc)))
	assert.Equal(t, "20250503_2350", bucketOf(time.Date(2025, time.May, 3, 23, 59, 0, 0, loc)))
}

func TestDedupCacheSuppressesWithinBucket(t *testing.T) {
	c := newDedupCache()
	now := time.Date(2025, time.May, 3, 10, 0, 5, 0, time.UTC)

	assert.False(t, c.Contains(1, now))
	c.Record(1, now)
	assert.True(t, c.Contains(1, now))

	// Later minute, same bucket
	assert.True(t, c.Contains(1, now.Add(9*time.Minute)))
	// Different rule, same bucket
	assert.False(t, c.Contains(2, now))
}

func TestDedupCacheReArmsAfterBucketRollover(t *testing.T) {
	c := newDedupCache()
	now := time.Date(2025, time.May, 3, 10, 9, 0, 0, time.UTC)

	c.Record(1, now)
	assert.True(t, c.Contains(1, now))

	next := now.Add(1 * time.Minute) // 10:10, next bucket
	assert.False(t, c.Contains(1, next))
}

func TestDedupCachePruneKeepsOnlyCurrentBucket(t *testing.T) {
	c := newDedupCache()
	old := time.Date(2025, time.May, 3, 10, 0, 0, 0, time.UTC)
	now := old.Add(10 * time.Minute)

	c.Record(1, old)
	c.Record(2, old)
	c.Record(3, now)
	assert.Equal(t, 3, c.Len())

	c.Prune(now)
	assert.Equal(t, 1, c.Len())
	assert.True(t, c.Contains(3, now))
	assert.False(t, c.Contains(1, now))
}
