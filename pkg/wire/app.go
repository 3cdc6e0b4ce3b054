package wire

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/scrapetoapi/scrapetoapi/pkg/cache"
	"github.com/scrapetoapi/scrapetoapi/pkg/config"
	"github.com/scrapetoapi/scrapetoapi/pkg/health"
	"github.com/scrapetoapi/scrapetoapi/pkg/messaging"
	"github.com/scrapetoapi/scrapetoapi/pkg/metrics"
	"github.com/scrapetoapi/scrapetoapi/pkg/service"
	"github.com/scrapetoapi/scrapetoapi/pkg/store"
	"github.com/scrapetoapi/scrapetoapi/pkg/tracing"
	"github.com/scrapetoapi/scrapetoapi/pkg/transport"
)

// App is the fully wired server.
type App struct {
	Config    *config.Config
	Logger    zerolog.Logger
	Store     store.Store
	Cache     *cache.Cache
	Publisher *messaging.Publisher
	Metrics   *metrics.Collector
	Tracer    *tracing.Manager
	Monitor   *health.Monitor
	Service   *service.ScrapeService
	Transport *transport.HTTPTransport
}

// Run starts the background workers and serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := a.Monitor.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := a.Monitor.Stop(); err != nil {
			a.Logger.Debug().Err(err).Msg("Health monitor already stopped")
		}
	}()

	go a.Cache.Run(ctx, sweepInterval(a.Config.CacheTTL), a.Logger)
	go store.RunRetention(ctx, a.Store, a.Config.ResultTTL, sweepInterval(a.Config.ResultTTL), a.Logger)

	a.Logger.Info().
		Str("addr", a.Transport.Addr()).
		Str("store", a.Config.StoreBackend).
		Dur("cache_ttl", a.Config.CacheTTL).
		Msg("ScrapeToAPI starting")

	return a.Transport.Serve(ctx)
}

// sweepInterval is a quarter of ttl, kept between one and ten minutes.
func sweepInterval(ttl time.Duration) time.Duration {
	interval := ttl / 4
	switch {
	case interval < time.Minute:
		return time.Minute
	case interval > 10*time.Minute:
		return 10 * time.Minute
	default:
		return interval
	}
}
