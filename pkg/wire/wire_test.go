package wire

import (
	"context"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrapetoapi/scrapetoapi/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Host = "127.0.0.1"
	cfg.LogLevel = "error"
	cfg.StoreBackend = config.BackendBolt
	cfg.StorePath = filepath.Join(t.TempDir(), "results.db")
	return cfg
}

func TestInitializeApp(t *testing.T) {
	app, cleanup, err := InitializeApp(context.Background(), testConfig(t), BuildInfo{Version: "test"})
	require.NoError(t, err)
	defer cleanup()

	assert.NotNil(t, app.Store)
	assert.NotNil(t, app.Cache)
	assert.NotNil(t, app.Service)
	assert.NotNil(t, app.Transport)
	assert.True(t, app.Metrics.IsEnabled())
	assert.False(t, app.Tracer.Enabled())
	assert.Equal(t, 1, app.Publisher.GetHandlerCount("*"))
}

func TestInitializeApp_InvalidStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.StoreBackend = "cassandra"

	_, _, err := InitializeApp(context.Background(), cfg, BuildInfo{})
	assert.Error(t, err)
}

func TestApp_RunServesUntilCancelled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Port = freePort(t)

	app, cleanup, err := InitializeApp(context.Background(), cfg, BuildInfo{Version: "test"})
	require.NoError(t, err)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	url := "http://" + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)) + "/ready"
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	health := app.Monitor.GetHealth()
	assert.Contains(t, health.Components, "store")
	assert.Contains(t, health.Components, "cache")
	assert.Contains(t, health.Components, "events")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("app did not stop")
	}
}

func TestSweepInterval(t *testing.T) {
	assert.Equal(t, time.Minute, sweepInterval(0))
	assert.Equal(t, time.Minute, sweepInterval(2*time.Minute))
	assert.Equal(t, 7*time.Minute+30*time.Second, sweepInterval(30*time.Minute))
	assert.Equal(t, 10*time.Minute, sweepInterval(24*time.Hour))
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}
