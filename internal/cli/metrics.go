package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/stowage/internal/logging"
)

func newMetricsCmd(flags *rootFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "metrics",
		Short: "Print container utilisation and waste metrics",
		Long: `Metrics prints the stowage gauges in the Prometheus text format. With
--serve the metrics are exposed on /metrics until the process is interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, false, func(s *session) error {
				s.engine.Usage(s.ctx)
				s.engine.IdentifyWaste(s.ctx, s.date)
				if addr == "" {
					if err := s.metrics.WriteText(cmd.OutOrStdout()); err != nil {
						return sysError("write metrics: %w", err)
					}
					return nil
				}
				return serveMetrics(s, addr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "serve", "", "listen address for a /metrics endpoint, e.g. :9090")
	return cmd
}

func serveMetrics(s *session, addr string) error {
	ctx, stop := signal.NotifyContext(s.ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metrics.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info(ctx, "serving metrics", logging.String("addr", addr))

	select {
	case err := <-errCh:
		return sysError("serve metrics: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return sysError("shutdown metrics server: %w", err)
	}
	return nil
}
