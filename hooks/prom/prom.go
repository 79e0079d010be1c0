// Package promhook exports rollcache hook events as Prometheus metrics.
//
//	reg := prometheus.NewRegistry()
//	hooks := promhook.New(reg)
//	// pass hooks to WriterOptions / CollectionOptions / RefresherOptions
package promhook

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/unkn0wn-root/rollcache"
)

type Hooks struct {
	dropped     *prometheus.CounterVec
	reduced     *prometheus.CounterVec
	reduceErrs  *prometheus.CounterVec
	skipped     prometheus.Counter
	refreshes   *prometheus.CounterVec
	refreshErrs *prometheus.CounterVec
	cacheItems  *prometheus.GaugeVec
}

var _ rollcache.Hooks = (*Hooks)(nil)

// New builds the metric set and registers it with reg. A nil reg leaves the
// metrics unregistered (useful when the caller composes registries).
func New(reg prometheus.Registerer) *Hooks {
	h := &Hooks{
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rollcache",
			Subsystem: "collection",
			Name:      "messages_dropped",
		}, []string{"reason"}),
		reduced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rollcache",
			Subsystem: "writer",
			Name:      "reductions",
		}, []string{"key"}),
		reduceErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rollcache",
			Subsystem: "writer",
			Name:      "reduction_errors",
		}, []string{"key"}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rollcache",
			Subsystem: "refresher",
			Name:      "ticks_skipped",
		}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rollcache",
			Subsystem: "refresher",
			Name:      "cache_refreshes",
		}, []string{"cache"}),
		refreshErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rollcache",
			Subsystem: "refresher",
			Name:      "cache_refresh_errors",
		}, []string{"cache"}),
		cacheItems: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "rollcache",
			Subsystem: "refresher",
			Name:      "cache_items",
			Help:      "item count written by the last successful refresh",
		}, []string{"cache"}),
	}
	if reg != nil {
		reg.MustRegister(
			h.dropped,
			h.reduced,
			h.reduceErrs,
			h.skipped,
			h.refreshes,
			h.refreshErrs,
			h.cacheItems,
		)
	}
	return h
}

func (h *Hooks) MessagesDropped(reason string, count int) {
	h.dropped.WithLabelValues(reason).Add(float64(count))
}

func (h *Hooks) Reduced(key string, _ int64) {
	h.reduced.WithLabelValues(key).Inc()
}

func (h *Hooks) ReduceFailed(key string, _ error) {
	h.reduceErrs.WithLabelValues(key).Inc()
}

func (h *Hooks) RefreshSkipped() {
	h.skipped.Inc()
}

func (h *Hooks) CacheRefreshed(cacheID string, items int) {
	h.refreshes.WithLabelValues(cacheID).Inc()
	h.cacheItems.WithLabelValues(cacheID).Set(float64(items))
}

func (h *Hooks) CacheRefreshFailed(cacheID string, _ error) {
	h.refreshErrs.WithLabelValues(cacheID).Inc()
}
