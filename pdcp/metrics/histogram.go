package metrics

import (
	"sync/atomic"
	"time"
)

// histogramBuckets are the upper bounds (inclusive) of the 8 latency bins
// tracked per entity, spanning sub-millisecond crypto offload latency up to
// multi-second stalls; the final bin is a +Inf overflow catch-all.
var histogramBuckets = [8]time.Duration{
	100 * time.Microsecond,
	500 * time.Microsecond,
	time.Millisecond,
	5 * time.Millisecond,
	10 * time.Millisecond,
	50 * time.Millisecond,
	100 * time.Millisecond,
	time.Duration(1<<63 - 1), // overflow bin
}

// LatencyHistogram is an 8-bin fixed-bucket latency histogram, safe for
// concurrent Observe calls from the crypto worker pool.
type LatencyHistogram struct {
	counts [8]uint64
	sum    int64 // nanoseconds
	n      uint64
}

func (h *LatencyHistogram) Observe(d time.Duration) {
	atomic.AddInt64(&h.sum, int64(d))
	atomic.AddUint64(&h.n, 1)
	for i, bound := range histogramBuckets {
		if d <= bound {
			atomic.AddUint64(&h.counts[i], 1)
			return
		}
	}
	atomic.AddUint64(&h.counts[len(h.counts)-1], 1)
}

// Snapshot returns the current per-bucket counts, total sample count and
// mean latency, without resetting.
func (h *LatencyHistogram) Snapshot() (buckets [8]uint64, n uint64, mean time.Duration) {
	for i := range h.counts {
		buckets[i] = atomic.LoadUint64(&h.counts[i])
	}
	n = atomic.LoadUint64(&h.n)
	if n == 0 {
		return buckets, 0, 0
	}
	sum := atomic.LoadInt64(&h.sum)
	return buckets, n, time.Duration(sum / int64(n))
}

// Reset zeroes the histogram and returns the pre-reset snapshot.
func (h *LatencyHistogram) Reset() (buckets [8]uint64, n uint64, mean time.Duration) {
	buckets, n, mean = h.Snapshot()
	for i := range h.counts {
		atomic.StoreUint64(&h.counts[i], 0)
	}
	atomic.StoreInt64(&h.sum, 0)
	atomic.StoreUint64(&h.n, 0)
	return buckets, n, mean
}
