package metrics

import "github.com/prometheus/client_golang/prometheus"

// Provider call outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheStale = "stale"
)

// OracleMetrics counts market price provider calls and cache usage.
type OracleMetrics struct {
	providerRequests *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
}

// NewOracleMetrics registers the oracle metrics on the provided registerer.
func NewOracleMetrics(reg prometheus.Registerer) *OracleMetrics {
	if reg == nil {
		return &OracleMetrics{}
	}
	providerRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "price_provider_requests_total",
		Help:      "Market price provider calls by outcome.",
	}, []string{"provider", "outcome"})
	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "price_cache_lookups_total",
		Help:      "Oracle cache lookups by commodity and result.",
	}, []string{"commodity", "result"})
	reg.MustRegister(providerRequests, cacheLookups)
	return &OracleMetrics{providerRequests: providerRequests, cacheLookups: cacheLookups}
}

// ObserveProvider records one provider call.
func (o *OracleMetrics) ObserveProvider(provider, outcome string) {
	if o == nil || o.providerRequests == nil {
		return
	}
	o.providerRequests.WithLabelValues(normalizeLabel(provider), normalizeLabel(outcome)).Inc()
}

// ObserveCache records one cache lookup.
func (o *OracleMetrics) ObserveCache(commodity, result string) {
	if o == nil || o.cacheLookups == nil {
		return
	}
	o.cacheLookups.WithLabelValues(normalizeLabel(commodity), normalizeLabel(result)).Inc()
}
