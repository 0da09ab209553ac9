package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// ServeCmd creates the serve command
func ServeCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Expose Prometheus metrics and retry pending donation writes until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(app.Ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			server := &http.Server{
				Addr:              app.Cfg.MetricsAddr,
				Handler:           mux,
				ReadHeaderTimeout: 5 * time.Second,
			}

			serverErr := make(chan error, 1)
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
				close(serverErr)
			}()
			app.Logger.Info("Serving metrics", zap.String("addr", app.Cfg.MetricsAddr))
			fmt.Fprintf(cmd.OutOrStdout(), "Serving metrics on http://%s/metrics (Ctrl+C to stop)\n", app.Cfg.MetricsAddr)

			go runRetryLoop(ctx, app, retryInterval(app))

			select {
			case err := <-serverErr:
				if err != nil {
					return fmt.Errorf("metrics server failed: %w", err)
				}
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("failed to stop metrics server: %w", err)
			}
			app.Logger.Info("Metrics server stopped")
			return nil
		},
	}
}

func retryInterval(app *AppContext) time.Duration {
	return time.Duration(app.Cfg.DonationRetry.IntervalSeconds) * time.Second
}

// runRetryLoop retries pending donation writes on every tick until ctx is done
func runRetryLoop(ctx context.Context, app *AppContext, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			recorded, pending := app.Recorder.RetryPending(ctx)
			if recorded > 0 || pending > 0 {
				app.Logger.Debug("Donation retry pass", zap.Int("recorded", recorded), zap.Int("pending", pending))
			}
		}
	}
}
