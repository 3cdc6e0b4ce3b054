package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/scrapetoapi/scrapetoapi/pkg/config"
	"github.com/scrapetoapi/scrapetoapi/pkg/wire"
)

// flags holds the command line overrides. Only flags the user set are
// applied over the loaded configuration.
type flags struct {
	configFile string
	envFile    string

	host         string
	port         int
	debug        bool
	logLevel     string
	logFormat    string
	store        string
	storePath    string
	databaseURL  string
	apiKey       string
	rateLimit    int
	trustProxy   bool
	tracing      bool
	kafkaBrokers []string
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	rootCmd := &cobra.Command{
		Use:           "scrapetoapi",
		Short:         "Turn any web page into a queryable JSON API",
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	f.bind(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		newServeCmd(f),
		newProbeCmd(f),
		newScrapeCmd(f),
		newMigrateCmd(f),
		newVersionCmd(),
	)
	return rootCmd
}

// bind registers the shared flags on fs.
func (f *flags) bind(fs *pflag.FlagSet) {
	fs.StringVarP(&f.configFile, "config", "c", "", "Path to a YAML configuration file")
	fs.StringVar(&f.envFile, "env-file", "", "Path to a .env file (default ./.env)")
	fs.StringVar(&f.host, "host", "", "Address to bind the HTTP server to")
	fs.IntVarP(&f.port, "port", "p", 0, "Port to listen on")
	fs.BoolVar(&f.debug, "debug", false, "Enable debug mode")
	fs.StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&f.logFormat, "log-format", "", "Log format: console or json")
	fs.StringVar(&f.store, "store", "", "Result store backend: memory, bolt or postgres")
	fs.StringVar(&f.storePath, "store-path", "", "Database file for the bolt store")
	fs.StringVar(&f.databaseURL, "database-url", "", "Postgres connection string")
	fs.StringVar(&f.apiKey, "api-key", "", "Require this API key on non-public endpoints")
	fs.IntVar(&f.rateLimit, "rate-limit", 0, "Requests per minute per client, 0 disables")
	fs.BoolVar(&f.trustProxy, "trust-proxy", false, "Take client addresses from X-Forwarded-For / X-Real-IP")
	fs.BoolVar(&f.tracing, "tracing", false, "Export OpenTelemetry spans to stdout")
	fs.StringSliceVar(&f.kafkaBrokers, "kafka-brokers", nil, "Kafka brokers for scrape events")
}

// loadConfig layers the command line over the file and environment
// configuration, then validates the result.
func loadConfig(cmd *cobra.Command, f *flags) (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{ConfigFile: f.configFile, EnvFile: f.envFile})
	if err != nil {
		return nil, fmt.Errorf("error loading configuration: %w", err)
	}

	changed := cmd.Flags().Changed
	if changed("host") {
		cfg.Host = f.host
	}
	if changed("port") {
		cfg.Port = f.port
	}
	if changed("debug") {
		cfg.Debug = f.debug
	}
	if changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if changed("log-format") {
		cfg.LogFormat = f.logFormat
	}
	if changed("store") {
		cfg.StoreBackend = f.store
	}
	if changed("store-path") {
		cfg.StorePath = f.storePath
	}
	if changed("database-url") {
		cfg.DatabaseURL = f.databaseURL
	}
	if changed("api-key") {
		cfg.APIKey = f.apiKey
	}
	if changed("rate-limit") {
		cfg.RateLimit = f.rateLimit
	}
	if changed("trust-proxy") {
		cfg.TrustProxyHeaders = f.trustProxy
	}
	if changed("tracing") {
		cfg.TracingEnabled = f.tracing
	}
	if changed("kafka-brokers") {
		cfg.KafkaBrokers = f.kafkaBrokers
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func buildInfo() wire.BuildInfo {
	return wire.BuildInfo{Version: Version, GitCommit: GitCommit, BuildTime: BuildTime}
}
