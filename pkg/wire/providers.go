package wire

import (
	"context"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/scrapetoapi/scrapetoapi/pkg/cache"
	"github.com/scrapetoapi/scrapetoapi/pkg/config"
	domainevents "github.com/scrapetoapi/scrapetoapi/pkg/domain/events"
	"github.com/scrapetoapi/scrapetoapi/pkg/fetch"
	"github.com/scrapetoapi/scrapetoapi/pkg/health"
	"github.com/scrapetoapi/scrapetoapi/pkg/logger"
	"github.com/scrapetoapi/scrapetoapi/pkg/messaging"
	"github.com/scrapetoapi/scrapetoapi/pkg/metrics"
	"github.com/scrapetoapi/scrapetoapi/pkg/service"
	"github.com/scrapetoapi/scrapetoapi/pkg/store"
	"github.com/scrapetoapi/scrapetoapi/pkg/tracing"
	"github.com/scrapetoapi/scrapetoapi/pkg/transport"
)

// BuildInfo is stamped into the binary at link time.
type BuildInfo struct {
	Version   string
	GitCommit string
	BuildTime string
}

// InfrastructureSet provides storage, fetching and observability.
var InfrastructureSet = wire.NewSet(
	ProvideLogger,
	ProvideStore,
	ProvideCache,
	ProvideHTTPClient,
	ProvideFetcher,
	ProvidePublisher,
	ProvideMetrics,
	ProvideTracer,
	ProvideHealthMonitor,
)

// ApplicationSet provides the scrape service and its HTTP surface.
var ApplicationSet = wire.NewSet(
	ProvideScrapeService,
	wire.Bind(new(service.PageFetcher), new(*fetch.Fetcher)),
	wire.Bind(new(domainevents.Publisher), new(*messaging.Publisher)),
	ProvideTransport,
	wire.Bind(new(transport.Service), new(*service.ScrapeService)),
	wire.Bind(new(transport.HealthReporter), new(*health.Monitor)),
)

var ProviderSet = wire.NewSet(
	InfrastructureSet,
	ApplicationSet,
	wire.Struct(new(App), "*"),
)

func ProvideLogger(cfg *config.Config) zerolog.Logger {
	l := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.SetDefault(l)
	return l
}

func ProvideStore(ctx context.Context, cfg *config.Config, log zerolog.Logger) (store.Store, func(), error) {
	s, err := store.Open(ctx, store.Options{
		Backend:     cfg.StoreBackend,
		Path:        cfg.StorePath,
		DatabaseURL: cfg.DatabaseURL,
	}, log)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := s.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close result store")
		}
	}
	return s, cleanup, nil
}

func ProvideCache(cfg *config.Config) *cache.Cache {
	return cache.New(cfg.CacheTTL)
}

func ProvideHTTPClient(cfg *config.Config) *http.Client {
	clientCfg := fetch.DefaultClientConfig()
	clientCfg.Timeout = cfg.FetchTimeout
	return fetch.NewHTTPClient(clientCfg)
}

func ProvideFetcher(client *http.Client, cfg *config.Config, log zerolog.Logger) *fetch.Fetcher {
	return fetch.New(client, fetch.Options{
		Timeout:      cfg.FetchTimeout,
		Retries:      cfg.FetchRetries,
		MaxBodyBytes: cfg.MaxBodyBytes,
		UserAgent:    cfg.UserAgent,
	}, log)
}

// ProvidePublisher logs every event and forwards it to Kafka when brokers
// are configured.
func ProvidePublisher(cfg *config.Config, log zerolog.Logger) (*messaging.Publisher, func(), error) {
	publisher := messaging.NewPublisher(log)
	publisher.Subscribe(messaging.AllEvents, messaging.LogHandler(log))

	var sink *messaging.KafkaSink
	if len(cfg.KafkaBrokers) > 0 {
		sink = messaging.NewKafkaSink(messaging.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic), log)
		publisher.Subscribe(messaging.AllEvents, sink.Handle)
		log.Info().Strs("brokers", cfg.KafkaBrokers).Str("topic", cfg.KafkaTopic).Msg("Forwarding events to Kafka")
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := publisher.Close(ctx); err != nil {
			log.Warn().Err(err).Msg("Event publisher did not drain")
		}
		if sink != nil {
			if err := sink.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close Kafka writer")
			}
		}
	}
	return publisher, cleanup, nil
}

func ProvideMetrics(log zerolog.Logger) *metrics.Collector {
	return metrics.NewCollector(metrics.Config{
		Enabled:  true,
		Registry: prometheus.NewRegistry(),
	}, log)
}

func ProvideTracer(ctx context.Context, cfg *config.Config, info BuildInfo) (*tracing.Manager, func(), error) {
	m := tracing.NewManager(tracing.Config{
		Enabled:        cfg.TracingEnabled,
		ServiceName:    cfg.ServiceName,
		ServiceVersion: info.Version,
	})
	if err := m.Initialize(ctx); err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Shutdown(ctx)
	}
	return m, cleanup, nil
}

// ProvideHealthMonitor checks the store, the cache and the event pipeline and
// mirrors the results into metrics.
func ProvideHealthMonitor(
	cfg *config.Config,
	log zerolog.Logger,
	st store.Store,
	c *cache.Cache,
	publisher *messaging.Publisher,
	collector *metrics.Collector,
	info BuildInfo,
) *health.Monitor {
	monitor := health.NewMonitor(log,
		health.WithVersion(info.Version),
		health.WithInterval(cfg.HealthInterval),
		health.WithCheckTimeout(cfg.HealthTimeout),
	)

	monitor.RegisterChecker(health.PingChecker{Name: "store", Target: st, SlowThreshold: time.Second})
	monitor.RegisterChecker(health.FuncChecker{
		Name: "cache",
		Check: func(context.Context) (map[string]interface{}, error) {
			return map[string]interface{}{"entries": c.Len()}, nil
		},
	})
	monitor.RegisterChecker(health.FuncChecker{
		Name: "events",
		Check: func(context.Context) (map[string]interface{}, error) {
			return map[string]interface{}{
				"handlers": publisher.GetHandlerCount(messaging.AllEvents),
				"kafka":    len(cfg.KafkaBrokers) > 0,
			}, nil
		},
	})

	monitor.SetObserver(func(component string, healthy bool) {
		collector.UpdateComponentHealth(component, healthy)
		collector.UpdateUptime(monitor.Uptime())
	})
	return monitor
}

func ProvideScrapeService(
	log zerolog.Logger,
	fetcher service.PageFetcher,
	c *cache.Cache,
	st store.Store,
	publisher domainevents.Publisher,
	collector *metrics.Collector,
	tracer *tracing.Manager,
) (*service.ScrapeService, error) {
	return service.NewScrapeService(service.Dependencies{
		Logger:         log,
		Fetcher:        fetcher,
		Cache:          c,
		Store:          st,
		EventPublisher: publisher,
	}, service.WithMetrics(collector), service.WithTracer(tracer))
}

func ProvideTransport(
	cfg *config.Config,
	log zerolog.Logger,
	svc transport.Service,
	reporter transport.HealthReporter,
	collector *metrics.Collector,
	tracer *tracing.Manager,
) *transport.HTTPTransport {
	return transport.NewHTTPTransport(transport.HTTPTransportConfig{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Debug:          cfg.Debug,
		ServiceName:    cfg.ServiceName,
		CORSOrigins:    cfg.CORSOrigins,
		APIKey:         cfg.APIKey,
		RateLimit:      cfg.RateLimit,
		TrustProxy:     cfg.TrustProxyHeaders,
		Logger:         log,
		LogBodies:      cfg.LogHTTPBodies,
		MaxBodyLogSize: cfg.MaxBodyLogSize,
		RequestTimeout: requestTimeout(cfg),
		Tracing:        tracer.Enabled(),
		Health:         reporter,
		Metrics:        collector,
	}, svc)
}

// requestTimeout leaves room for every fetch attempt plus parsing.
func requestTimeout(cfg *config.Config) time.Duration {
	return time.Duration(cfg.FetchRetries+1)*cfg.FetchTimeout + 15*time.Second
}
