package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scrapetoapi/scrapetoapi/pkg/logger"
	"github.com/scrapetoapi/scrapetoapi/pkg/probe"
)

func newProbeCmd(f *flags) *cobra.Command {
	var (
		url   string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check the health endpoint of a running server",
		Long: `The probe command requests /health once and exits non-zero unless the server answers 2xx.
It is meant for container HEALTHCHECK instructions. With --watch it keeps probing with the
configured start period, interval, timeout and retries and logs every state change.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, f)
			if err != nil {
				return err
			}
			if url == "" {
				url = probe.HealthURL(cfg.Port)
			}
			prober := probe.New(url, cfg.HealthTimeout)

			if !watch {
				if err := prober.Check(cmd.Context()); err != nil {
					return fmt.Errorf("health check failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "healthy")
				return nil
			}

			log := logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
			watcher := probe.NewWatcher(probe.WatchConfig{
				StartPeriod: cfg.HealthStartPeriod,
				Interval:    cfg.HealthInterval,
				Timeout:     cfg.HealthTimeout,
				Retries:     cfg.HealthRetries,
			}, prober.Check)
			watcher.OnChange(func(from, to probe.State, err error) {
				e := log.Info()
				if to == probe.StateUnhealthy {
					e = log.Warn().Err(err)
				}
				e.Str("from", string(from)).Str("to", string(to)).Str("url", url).Msg("Health state changed")
			})

			final := watcher.Run(cmd.Context())
			if final == probe.StateUnhealthy {
				return fmt.Errorf("server unhealthy after %d failed probes: %w", watcher.Failures(), watcher.LastError())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&url, "url", "", "Health endpoint to probe (default http://127.0.0.1:<port>/health)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Keep probing until interrupted")
	return cmd
}
