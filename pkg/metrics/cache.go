package metrics

import "github.com/prometheus/client_golang/prometheus"

// CacheMetrics records read-through cache behavior per key group.
type CacheMetrics struct {
	hits   *prometheus.CounterVec
	misses *prometheus.CounterVec
}

// NewCacheMetrics registers the cache metrics on the provided registerer.
func NewCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	if reg == nil {
		return &CacheMetrics{}
	}
	hits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Cache lookups answered without a database round trip.",
	}, []string{"group"})
	misses := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Cache lookups that fell through to the database.",
	}, []string{"group"})
	reg.MustRegister(hits, misses)
	return &CacheMetrics{hits: hits, misses: misses}
}

// IncHit increments the hit counter for the named key group.
func (c *CacheMetrics) IncHit(group string) {
	if c == nil || c.hits == nil {
		return
	}
	c.hits.WithLabelValues(normalizeLabel(group)).Inc()
}

// IncMiss increments the miss counter for the named key group.
func (c *CacheMetrics) IncMiss(group string) {
	if c == nil || c.misses == nil {
		return
	}
	c.misses.WithLabelValues(normalizeLabel(group)).Inc()
}
