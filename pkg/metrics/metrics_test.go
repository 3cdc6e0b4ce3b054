package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_RecordsScrapes(t *testing.T) {
	mc := NewCollector(Config{Enabled: true}, zerolog.Nop())

	mc.RecordScrape(ResultFetched, 250*time.Millisecond, 40)
	mc.RecordScrape(ResultCached, 0, 40)
	mc.RecordScrape(ResultCached, 0, 40)
	mc.RecordScrape(ResultFailed, time.Second, 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(mc.scrape.Scrapes.WithLabelValues(ResultFetched)))
	assert.Equal(t, 2.0, testutil.ToFloat64(mc.scrape.Scrapes.WithLabelValues(ResultCached)))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.scrape.Scrapes.WithLabelValues(ResultFailed)))
}

func TestCollector_CacheAndHealth(t *testing.T) {
	mc := NewCollector(Config{Enabled: true}, zerolog.Nop())

	mc.RecordCacheLookup(true, 3)
	mc.RecordCacheLookup(false, 4)
	mc.UpdateComponentHealth("store", false)
	mc.SetStoredResults(9)

	assert.Equal(t, 1.0, testutil.ToFloat64(mc.cache.Hits))
	assert.Equal(t, 1.0, testutil.ToFloat64(mc.cache.Misses))
	assert.Equal(t, 4.0, testutil.ToFloat64(mc.cache.Size))
	assert.Equal(t, 0.0, testutil.ToFloat64(mc.health.ComponentHealth.WithLabelValues("store")))
	assert.Equal(t, 9.0, testutil.ToFloat64(mc.scrape.StoredResults))
}

func TestCollector_Handler(t *testing.T) {
	mc := NewCollector(Config{Enabled: true}, zerolog.Nop())
	mc.RecordRequest(http.MethodGet, "/api/{slug}", http.StatusOK, 10*time.Millisecond)
	mc.RecordRateLimited()

	rec := httptest.NewRecorder()
	mc.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `scrapetoapi_http_requests_total{method="GET",route="/api/{slug}",status="200"} 1`)
	assert.Contains(t, body, "scrapetoapi_http_rate_limited_total 1")
	assert.Contains(t, body, "go_goroutines")
}

func TestCollector_DisabledIsNoop(t *testing.T) {
	mc := NewCollector(Config{}, zerolog.Nop())

	assert.False(t, mc.IsEnabled())
	assert.NotPanics(t, func() {
		mc.RecordScrape(ResultFetched, time.Second, 1)
		mc.RecordFetchAttempts(2)
		mc.RecordCacheLookup(true, 1)
		mc.RecordRequest(http.MethodGet, "/", 200, time.Millisecond)
		mc.RecordRateLimited()
		mc.UpdateComponentHealth("store", true)
		mc.UpdateUptime(time.Minute)
		mc.SetStoredResults(1)
	})

	families, err := mc.GetRegistry().Gather()
	require.NoError(t, err)
	assert.Empty(t, families)
}
