// Package transport exposes the scrape service over HTTP.
package transport

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/scrapetoapi/scrapetoapi/pkg/health"
	"github.com/scrapetoapi/scrapetoapi/pkg/metrics"
	"github.com/scrapetoapi/scrapetoapi/pkg/scrape"
	"github.com/scrapetoapi/scrapetoapi/pkg/service"
	"github.com/scrapetoapi/scrapetoapi/pkg/store"
)

const (
	defaultMaxBodyLogSize = 10 * 1024
	maxFormBytes          = 1 << 20
	shutdownTimeout       = 30 * time.Second
)

// Service is the scrape API the transport serves.
type Service interface {
	Scrape(ctx context.Context, rawURL string) (*service.ScrapeResult, error)
	Document(ctx context.Context, slug string) (*scrape.Document, error)
	FilterByTag(ctx context.Context, slug, tag string) (*service.FilterResult, error)
	FilterByXPath(ctx context.Context, slug, xpath string) (*service.FilterResult, error)
	TestXPath(ctx context.Context, slug, xpath string) (*service.XPathTestResult, error)
	Browse(ctx context.Context, slug string) (*service.BrowseResult, error)
	Links(ctx context.Context, slug string) ([]scrape.Link, error)
	Images(ctx context.Context, slug string) ([]scrape.Image, error)
	Headings(ctx context.Context, slug string) ([]scrape.Heading, error)
	Text(ctx context.Context, slug string) ([]scrape.TextBlock, error)
	Query(ctx context.Context, slug, path string) (interface{}, error)
	List(ctx context.Context) ([]store.Summary, error)
	Delete(ctx context.Context, slug string) error
}

// HealthReporter is satisfied by *health.Monitor.
type HealthReporter interface {
	GetHealth() health.OverallHealth
	GetReadiness() health.ReadinessStatus
}

// HTTPTransport serves the REST API, the HTML form and operational endpoints.
type HTTPTransport struct {
	server         *http.Server
	router         chi.Router
	service        Service
	health         HealthReporter
	metrics        *metrics.Collector
	logger         zerolog.Logger
	host           string
	port           int
	debug          bool
	serviceName    string
	corsOrigins    []string
	apiKey         string
	limiter        *rateLimiter
	trustProxy     bool
	logBodies      bool
	maxBodyLogSize int64
	requestTimeout time.Duration
	tracing        bool
}

// HTTPTransportConfig holds configuration for HTTP transport
type HTTPTransportConfig struct {
	Host           string
	Port           int
	Debug          bool
	ServiceName    string
	CORSOrigins    []string
	APIKey         string
	RateLimit      int  // requests per minute per IP, 0 disables
	TrustProxy     bool // take the client IP from X-Forwarded-For / X-Real-IP
	Logger         zerolog.Logger
	LogBodies      bool
	MaxBodyLogSize int64 // Maximum size of request/response bodies to log
	RequestTimeout time.Duration
	Tracing        bool

	// Optional.
	Health  HealthReporter
	Metrics *metrics.Collector
}

// NewHTTPTransport creates a new HTTP transport
func NewHTTPTransport(config HTTPTransportConfig, svc Service) *HTTPTransport {
	if config.Port == 0 {
		config.Port = 8000
	}
	if config.ServiceName == "" {
		config.ServiceName = "ScrapeToAPI"
	}
	if config.MaxBodyLogSize <= 0 {
		config.MaxBodyLogSize = defaultMaxBodyLogSize
	}
	if config.RequestTimeout <= 0 {
		config.RequestTimeout = 60 * time.Second
	}
	if config.Metrics == nil {
		config.Metrics = metrics.NewCollector(metrics.Config{Enabled: false}, config.Logger)
	}

	t := &HTTPTransport{
		service:        svc,
		health:         config.Health,
		metrics:        config.Metrics,
		logger:         config.Logger.With().Str("component", "http_transport").Logger(),
		host:           config.Host,
		port:           config.Port,
		debug:          config.Debug,
		serviceName:    config.ServiceName,
		corsOrigins:    config.CORSOrigins,
		apiKey:         config.APIKey,
		logBodies:      config.LogBodies,
		maxBodyLogSize: config.MaxBodyLogSize,
		requestTimeout: config.RequestTimeout,
		tracing:        config.Tracing,
		trustProxy:     config.TrustProxy,
	}
	if config.RateLimit > 0 {
		t.limiter = newRateLimiter(config.RateLimit, time.Minute)
	}

	t.setupRouter()
	return t
}

func (t *HTTPTransport) setupRouter() {
	t.router = chi.NewRouter()

	t.setupMiddlewareChain()

	t.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		t.sendJSON(w, http.StatusNotFound, map[string]string{"detail": "Not Found"})
	})
	t.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		t.sendJSON(w, http.StatusMethodNotAllowed, map[string]string{"detail": "Method Not Allowed"})
	})

	t.router.Get("/", t.handleRoot)
	t.router.Get("/health", t.handleHealth)
	t.router.Get("/ready", t.handleReady)
	t.router.Get("/debug", t.handleDebug)
	t.router.Get("/app", t.handleApp)
	t.router.Handle("/static/*", t.staticHandler())
	if t.metrics.IsEnabled() {
		t.router.Handle("/metrics", t.metrics.Handler())
	}

	t.router.Post("/scrape", t.handleScrape)

	t.router.Route("/api", func(r chi.Router) {
		r.Get("/", t.handleList)
		r.Route("/{slug}", func(r chi.Router) {
			r.Get("/", t.handleDocument)
			r.Delete("/", t.handleDelete)
			r.Get("/filter/tag/{tag}", t.handleFilterTag)
			r.Get("/filter/xpath", t.handleFilterXPath)
			r.Get("/test-xpath/*", t.handleTestXPath)
			r.Get("/browse", t.handleBrowse)
			r.Get("/links", t.handleLinks)
			r.Get("/images", t.handleImages)
			r.Get("/headings", t.handleHeadings)
			r.Get("/text", t.handleText)
			r.Get("/query", t.handleQuery)
		})
	})
}

// setupMiddlewareChain configures the middleware chain in the proper order
func (t *HTTPTransport) setupMiddlewareChain() {
	// 1. Basic Chi middleware
	t.router.Use(middleware.RequestID)
	if t.trustProxy {
		t.router.Use(middleware.RealIP)
	}
	t.router.Use(middleware.Recoverer)

	// 2. CORS (first in chain to handle preflight requests)
	t.router.Use(t.setupCORS())

	// 3. Rate limiting (after CORS, before auth)
	t.router.Use(t.rateLimitMiddleware)

	// 4. Authentication (after rate limiting)
	t.router.Use(t.authMiddleware)

	// 5. Logging and request metrics
	t.router.Use(t.loggingMiddleware)

	// 6. Timeout
	t.router.Use(middleware.Timeout(t.requestTimeout))
}

// setupCORS creates and configures the CORS middleware
func (t *HTTPTransport) setupCORS() func(http.Handler) http.Handler {
	corsOptions := cors.Options{
		AllowedOrigins:   t.corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}

	// If no origins specified, allow all
	if len(t.corsOrigins) == 0 || (len(t.corsOrigins) == 1 && t.corsOrigins[0] == "*") {
		corsOptions.AllowedOrigins = []string{"*"}
		corsOptions.AllowCredentials = false // Cannot use credentials with wildcard origin
	}

	return cors.Handler(corsOptions)
}

// Handler returns the root handler, wrapped for tracing when enabled.
func (t *HTTPTransport) Handler() http.Handler {
	if t.tracing {
		return otelhttp.NewHandler(t.router, t.serviceName,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}))
	}
	return t.router
}

// Serve starts the HTTP server and blocks until ctx is cancelled or the
// listener fails.
func (t *HTTPTransport) Serve(ctx context.Context) error {
	if t.service == nil {
		return fmt.Errorf("scrape service not set")
	}
	t.server = &http.Server{
		Addr:              t.Addr(),
		Handler:           t.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      t.requestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		t.logger.Info().
			Str("addr", t.server.Addr).
			Bool("templates", embeddedDirExists("web/templates")).
			Bool("static", embeddedDirExists("web/static")).
			Msg("Starting HTTP transport")
		if err := t.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("failed to start HTTP server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		return t.Close()
	case err := <-errCh:
		return err
	}
}

// Close gracefully shuts down the HTTP server
func (t *HTTPTransport) Close() error {
	if t.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	t.logger.Info().Msg("Stopping HTTP transport")
	return t.server.Shutdown(ctx)
}

func (t *HTTPTransport) Addr() string {
	return net.JoinHostPort(t.host, strconv.Itoa(t.port))
}

func (t *HTTPTransport) GetPort() int {
	return t.port
}
