package results

import (
	"time"

	"github.com/influxdata/tdigest"
)

// latencyRecorder accumulates response times in a t-digest.
// Values are milliseconds, as written by JMeter.
type latencyRecorder struct {
	digest *tdigest.TDigest
	count  int64
	maxMs  float64
}

func newLatencyRecorder() *latencyRecorder {
	return &latencyRecorder{
		digest: tdigest.NewWithCompression(100), // ~100 centroids
	}
}

// addAll folds a file's samples into the digest.
func (l *latencyRecorder) addAll(samples []float64) {
	for _, ms := range samples {
		l.digest.Add(ms, 1)
		l.count++
		if ms > l.maxMs {
			l.maxMs = ms
		}
	}
}

// summary returns the percentiles recorded so far.
func (l *latencyRecorder) summary() LatencySummary {
	if l.count == 0 {
		return LatencySummary{}
	}
	return LatencySummary{
		Count: l.count,
		P50:   msToDuration(l.digest.Quantile(0.50)),
		P90:   msToDuration(l.digest.Quantile(0.90)),
		P95:   msToDuration(l.digest.Quantile(0.95)),
		P99:   msToDuration(l.digest.Quantile(0.99)),
		Max:   msToDuration(l.maxMs),
	}
}

func msToDuration(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}
