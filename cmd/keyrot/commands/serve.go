package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/systmms/keyrot/internal/config"
	"github.com/systmms/keyrot/internal/rotation/health"
	"github.com/systmms/keyrot/internal/scheduler"
)

func NewServeCommand(cfg *config.Config) *cobra.Command {
	var (
		listen            string
		reconcileInterval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled rotations as a long-lived process",
		Long: `Run keyrot as a daemon: principals with a schedule in keyrot.yaml are
rotated on their cron expressions, unfinished rotations are reconciled
periodically, and Prometheus metrics are exposed over HTTP.

A rotation that is still running when its next tick arrives is skipped
rather than stacked.

Examples:
  # Serve with metrics on the default port
  keyrot serve

  # Custom metrics address and a tighter reconcile loop
  keyrot serve --listen :9105 --reconcile-interval 1m`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := cfg.Logger

			rt, err := buildRuntime(cfg, runtimeOptions{})
			if err != nil {
				return err
			}

			health.InitMetrics()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sched := scheduler.New(logger)
			scheduled := 0
			for principal, principalCfg := range cfg.Definition.Principals {
				if principalCfg.Schedule == "" {
					continue
				}
				principal := principal
				err := sched.Add(principalCfg.Schedule, principal, func() {
					results := rt.handler.Handle(ctx, []string{principal})
					for _, result := range results {
						if result.Err != nil {
							logger.Error("Scheduled rotation of %s failed: %v", result.Principal, result.Err)
						}
					}
				})
				if err != nil {
					return err
				}
				scheduled++
			}
			if scheduled == 0 {
				logger.Warn("No principals carry a schedule; serving reconcile and metrics only")
			}
			sched.Start()

			go func() {
				ticker := time.NewTicker(reconcileInterval)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						rt.reconciler.Sweep(ctx)
					}
				}
			}()

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte("ok\n"))
			})
			server := &http.Server{
				Addr:              listen,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				logger.Info("Serving metrics on %s/metrics", listen)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("Metrics server stopped: %v", err)
				}
			}()

			// Catch anything a previous run left unfinished before the first tick.
			rt.reconciler.Sweep(ctx)

			<-ctx.Done()
			logger.Info("Shutting down")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			sched.Stop(shutdownCtx)
			_ = server.Shutdown(shutdownCtx)
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", ":9104", "Address for the metrics and health endpoints")
	cmd.Flags().DurationVar(&reconcileInterval, "reconcile-interval", 5*time.Minute, "How often to resume unfinished rotations")

	return cmd
}
