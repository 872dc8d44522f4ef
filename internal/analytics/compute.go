package analytics

import (
	"sort"
	"time"

	"promofeed/internal/domain"
)

// safeCTR computes clicks/views, returning 0 when there are no views.
func safeCTR(clicks, views int64) float64 {
	if views == 0 {
		return 0
	}
	return float64(clicks) / float64(views)
}

// dayKey formats a Unix millisecond timestamp as a UTC calendar date.
func dayKey(tsMs int64) string {
	return time.UnixMilli(tsMs).UTC().Format("2006-01-02")
}

// bucketSet accumulates view and click counts per key. Accumulation is
// commutative, so event order never affects the result.
type bucketSet map[string]*domain.AggregateBucket

func newBucketSet() bucketSet {
	return make(bucketSet)
}

func (b bucketSet) addViews(key string, n int64) {
	b.get(key).Views += n
}

func (b bucketSet) addClicks(key string, n int64) {
	b.get(key).Clicks += n
}

func (b bucketSet) get(key string) *domain.AggregateBucket {
	bucket, ok := b[key]
	if !ok {
		bucket = &domain.AggregateBucket{Key: key}
		b[key] = bucket
	}
	return bucket
}

// finalize computes rates and returns buckets sorted by key for
// deterministic output.
func (b bucketSet) finalize() []*domain.AggregateBucket {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buckets := make([]*domain.AggregateBucket, 0, len(keys))
	for _, k := range keys {
		bucket := b[k]
		bucket.ClickThroughRate = safeCTR(bucket.Clicks, bucket.Views)
		buckets = append(buckets, bucket)
	}
	return buckets
}
