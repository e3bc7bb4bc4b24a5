// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Runtime metrics collector for system-level monitoring.
// Counters are lock-free once created; gauges live in a guarded map.

package control

import (
	"sync"
	"sync/atomic"
	"time"
)

// Counter names maintained by channels.
const (
	MetricFramesIn          = "frames_in"
	MetricFramesOut         = "frames_out"
	MetricCodecErrors       = "codec_errors"
	MetricPatternViolations = "pattern_violations"
	MetricReplyTimeouts     = "reply_timeouts"
	MetricChannelsOpen      = "channels_open"
	MetricConsumerPanics    = "consumer_panics"
	MetricStaleReplies      = "stale_replies"
	MetricTransportErrors   = "transport_errors"
)

// MetricsRegistry holds counters and arbitrary gauges.
type MetricsRegistry struct {
	mu       sync.RWMutex
	counters map[string]*atomic.Int64
	metrics  map[string]any
	updated  atomic.Int64
}

// NewMetricsRegistry creates a registry with the channel counters at zero.
func NewMetricsRegistry() *MetricsRegistry {
	mr := &MetricsRegistry{
		counters: make(map[string]*atomic.Int64),
		metrics:  make(map[string]any),
	}
	for _, name := range []string{
		MetricFramesIn, MetricFramesOut, MetricCodecErrors, MetricPatternViolations,
		MetricReplyTimeouts, MetricChannelsOpen, MetricConsumerPanics, MetricStaleReplies,
		MetricTransportErrors,
	} {
		mr.counters[name] = new(atomic.Int64)
	}
	return mr
}

func (mr *MetricsRegistry) counter(name string) *atomic.Int64 {
	mr.mu.RLock()
	c, ok := mr.counters[name]
	mr.mu.RUnlock()
	if ok {
		return c
	}
	mr.mu.Lock()
	defer mr.mu.Unlock()
	if c, ok = mr.counters[name]; !ok {
		c = new(atomic.Int64)
		mr.counters[name] = c
	}
	return c
}

// Add adds delta to the named counter. A nil registry ignores the call.
func (mr *MetricsRegistry) Add(name string, delta int64) {
	if mr == nil {
		return
	}
	mr.counter(name).Add(delta)
	mr.updated.Store(time.Now().UnixNano())
}

// Inc increments the named counter.
func (mr *MetricsRegistry) Inc(name string) {
	mr.Add(name, 1)
}

// Counter returns the current value of the named counter.
func (mr *MetricsRegistry) Counter(name string) int64 {
	if mr == nil {
		return 0
	}
	return mr.counter(name).Load()
}

// Set sets or updates a gauge.
func (mr *MetricsRegistry) Set(key string, value any) {
	mr.mu.Lock()
	mr.metrics[key] = value
	mr.mu.Unlock()
	mr.updated.Store(time.Now().UnixNano())
}

// GetSnapshot returns counters and gauges in one map.
func (mr *MetricsRegistry) GetSnapshot() map[string]any {
	mr.mu.RLock()
	defer mr.mu.RUnlock()
	out := make(map[string]any, len(mr.counters)+len(mr.metrics))
	for k, c := range mr.counters {
		out[k] = c.Load()
	}
	for k, v := range mr.metrics {
		out[k] = v
	}
	return out
}

// Updated returns the time of the last change.
func (mr *MetricsRegistry) Updated() time.Time {
	ns := mr.updated.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}
