// Package metrics exposes the service's prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Scrape outcomes used as the "result" label.
const (
	ResultFetched = "fetched"
	ResultCached  = "cached"
	ResultFailed  = "failed"
)

type Collector struct {
	logger  zerolog.Logger
	enabled bool

	scrape *ScrapeMetrics
	cache  *CacheMetrics
	http   *HTTPMetrics
	health *HealthMetrics

	registry *prometheus.Registry
}

type ScrapeMetrics struct {
	Scrapes          *prometheus.CounterVec
	Duration         prometheus.Histogram
	FetchAttempts    prometheus.Histogram
	DocumentElements prometheus.Histogram
	StoredResults    prometheus.Gauge
}

type CacheMetrics struct {
	Hits   prometheus.Counter
	Misses prometheus.Counter
	Size   prometheus.Gauge
}

type HTTPMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	Limited  prometheus.Counter
}

type HealthMetrics struct {
	ComponentHealth *prometheus.GaugeVec
	Uptime          prometheus.Gauge
}

type Config struct {
	Enabled   bool
	Namespace string
	Subsystem string
	Registry  *prometheus.Registry
}

func NewCollector(config Config, logger zerolog.Logger) *Collector {
	if config.Namespace == "" {
		config.Namespace = "scrapetoapi"
	}

	registry := config.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	mc := &Collector{
		logger:   logger.With().Str("component", "metrics").Logger(),
		enabled:  config.Enabled,
		registry: registry,
	}

	if config.Enabled {
		mc.initializeMetrics(config)
	}

	return mc
}

func (mc *Collector) initializeMetrics(config Config) {
	mc.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(mc.registry)

	mc.scrape = &ScrapeMetrics{
		Scrapes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "scrapes_total",
			Help:      "Scrape requests by result",
		}, []string{"result"}),
		Duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "scrape_duration_seconds",
			Help:      "Time spent fetching and indexing a page",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		FetchAttempts: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "fetch_attempts",
			Help:      "HTTP attempts needed per fetched page",
			Buckets:   []float64{1, 2, 3, 5, 8},
		}),
		DocumentElements: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "document_elements",
			Help:      "Indexed elements per scraped page",
			Buckets:   prometheus.ExponentialBuckets(10, 4, 7),
		}),
		StoredResults: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "stored_results",
			Help:      "Results currently held by the store",
		}),
	}

	mc.cache = &CacheMetrics{
		Hits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "cache_hits_total",
			Help:      "URL cache hits",
		}),
		Misses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "cache_misses_total",
			Help:      "URL cache misses",
		}),
		Size: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "cache_entries",
			Help:      "Entries in the URL cache",
		}),
	}

	mc.http = &HTTPMetrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		Limited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the rate limiter",
		}),
	}

	mc.health = &HealthMetrics{
		ComponentHealth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "component_healthy",
			Help:      "1 when a monitored component is healthy",
		}, []string{"component"}),
		Uptime: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "uptime_seconds",
			Help:      "Seconds since the service started",
		}),
	}

	mc.logger.Debug().Str("namespace", config.Namespace).Msg("Metrics collector initialized")
}

func (mc *Collector) RecordScrape(result string, duration time.Duration, elements int) {
	if !mc.enabled {
		return
	}
	mc.scrape.Scrapes.WithLabelValues(result).Inc()
	if result == ResultFetched {
		mc.scrape.Duration.Observe(duration.Seconds())
		mc.scrape.DocumentElements.Observe(float64(elements))
	}
}

func (mc *Collector) RecordFetchAttempts(attempts int) {
	if !mc.enabled {
		return
	}
	mc.scrape.FetchAttempts.Observe(float64(attempts))
}

func (mc *Collector) SetStoredResults(n int) {
	if !mc.enabled {
		return
	}
	mc.scrape.StoredResults.Set(float64(n))
}

func (mc *Collector) RecordCacheLookup(hit bool, size int) {
	if !mc.enabled {
		return
	}
	if hit {
		mc.cache.Hits.Inc()
	} else {
		mc.cache.Misses.Inc()
	}
	mc.cache.Size.Set(float64(size))
}

func (mc *Collector) RecordRequest(method, route string, status int, duration time.Duration) {
	if !mc.enabled {
		return
	}
	mc.http.Requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	mc.http.Duration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (mc *Collector) RecordRateLimited() {
	if !mc.enabled {
		return
	}
	mc.http.Limited.Inc()
}

func (mc *Collector) UpdateComponentHealth(component string, healthy bool) {
	if !mc.enabled {
		return
	}
	v := 0.0
	if healthy {
		v = 1
	}
	mc.health.ComponentHealth.WithLabelValues(component).Set(v)
}

func (mc *Collector) UpdateUptime(uptime time.Duration) {
	if !mc.enabled {
		return
	}
	mc.health.Uptime.Set(uptime.Seconds())
}

func (mc *Collector) GetRegistry() *prometheus.Registry {
	return mc.registry
}

func (mc *Collector) IsEnabled() bool {
	return mc.enabled
}

// Handler serves the registry in the prometheus exposition format.
func (mc *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{Registry: mc.registry})
}
