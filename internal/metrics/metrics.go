package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the tracker's prometheus instruments on a private
// registry. All service-side callers must tolerate a nil *Collector.
type Collector struct {
	reg *prometheus.Registry

	PollsTotal   prometheus.Counter
	PollFailures prometheus.Counter
	PollsSkipped prometheus.Counter
	PollDuration prometheus.Histogram

	BusesTracked prometheus.Gauge
	BusesLive    prometheus.Gauge

	GeocodeCacheHits   prometheus.Counter
	GeocodeCacheMisses prometheus.Counter

	LocationsPublished prometheus.Counter
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		PollsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bustracker_polls_total",
			Help: "Total poll cycles attempted.",
		}),
		PollFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bustracker_poll_failures_total",
			Help: "Poll cycles that failed and kept the previous snapshot.",
		}),
		PollsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bustracker_polls_skipped_total",
			Help: "Poll triggers dropped because a cycle was already in flight.",
		}),
		PollDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bustracker_poll_duration_seconds",
			Help:    "Duration of fetch-validate-merge cycles.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		BusesTracked: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bustracker_buses_tracked",
			Help: "Buses in the current fleet snapshot.",
		}),
		BusesLive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "bustracker_buses_live",
			Help: "Buses classified live at the last snapshot merge.",
		}),
		GeocodeCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bustracker_geocode_cache_hits_total",
			Help: "Reverse-geocode lookups served from cache.",
		}),
		GeocodeCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bustracker_geocode_cache_misses_total",
			Help: "Reverse-geocode lookups that missed the cache.",
		}),
		LocationsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bustracker_locations_published_total",
			Help: "Driver location fixes accepted and written to the store.",
		}),
	}

	reg.MustRegister(
		c.PollsTotal, c.PollFailures, c.PollsSkipped, c.PollDuration,
		c.BusesTracked, c.BusesLive,
		c.GeocodeCacheHits, c.GeocodeCacheMisses,
		c.LocationsPublished,
	)
	return c
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

// GeocodeCacheHit and GeocodeCacheMiss satisfy the geocode.Metrics interface.
func (c *Collector) GeocodeCacheHit()  { c.GeocodeCacheHits.Inc() }
func (c *Collector) GeocodeCacheMiss() { c.GeocodeCacheMisses.Inc() }
