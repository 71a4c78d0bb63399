package app

import (
	"fmt"
	"time"
)

// dedupKey identifies one rule firing inside one 10-minute window.
type dedupKey struct {
	RuleID int64
	Bucket string
}

// bucketOf floors t to its 10-minute boundary and formats it as a bucket
// label, e.g. 10:07 and 10:09 both map to "20250503_1000". The floor is
// computed arithmetically (minute - minute%10), not by truncating a formatted
// string.
func bucketOf(t time.Time) string {
	return fmt.Sprintf("%s_%02d%02d", t.Format("20060102"), t.Hour(), t.Minute()-t.Minute()%10)
}

// dedupCache suppresses duplicate rule firings inside one 10-minute bucket.
// It is process-local and only ever touched from the scheduler goroutine, so
// it needs no locking. Losing it on restart can cause one duplicate send
// within the restart bucket; that is the accepted at-least-once tradeoff.
type dedupCache struct {
	sent map[dedupKey]struct{}
}

func newDedupCache() *dedupCache {
	return &dedupCache{sent: make(map[dedupKey]struct{})}
}

// Contains reports whether the rule already fired in the bucket containing now.
func (c *dedupCache) Contains(ruleID int64, now time.Time) bool {
	_, ok := c.sent[dedupKey{RuleID: ruleID, Bucket: bucketOf(now)}]
	return ok
}

// Record marks the rule as fired for the bucket containing now. Called after a
// completed dispatch pass, not before it.
func (c *dedupCache) Record(ruleID int64, now time.Time) {
	c.sent[dedupKey{RuleID: ruleID, Bucket: bucketOf(now)}] = struct{}{}
}

// Prune discards every key outside the bucket containing now, bounding the
// cache to at most one entry per active rule.
func (c *dedupCache) Prune(now time.Time) {
	current := bucketOf(now)
	for k := range c.sent {
		if k.Bucket != current {
			delete(c.sent, k)
		}
	}
}

// Len reports the number of retained keys. Used by logging and tests.
func (c *dedupCache) Len() int {
	return len(c.sent)
}
