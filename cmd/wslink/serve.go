package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bhandras/wslink/internal/config"
	"github.com/bhandras/wslink/internal/devserver"
	"github.com/bhandras/wslink/internal/logger"
	"github.com/bhandras/wslink/internal/metrics"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(cfg func() *config.Config) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the development session endpoint",
		Long: `Run a development endpoint that accepts wslink sessions on /ws/:id.

  POST /push/:id             body {"action": "...", "message": "..."}
  POST /close/:id?code=1001  close the session with a code
  GET  /handshakes           accepted handshakes`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cfg(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8780", "listen address")
	return cmd
}

func runServe(parent context.Context, cfg *config.Config, addr string) error {
	if parent == nil {
		parent = context.Background()
	}
	log := logger.With("devserver")

	srv, err := devserver.New(devserver.Config{
		Secret: cfg.Secret,
		Log:    log,
		Debug:  cfg.Debug,
	})
	if err != nil {
		return err
	}
	if cfg.Secret == "" {
		log.Warnf("WSLINK_SECRET not set, handshake tokens are not verified")
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Infof("dev endpoint listening on %s", addr)
		return listen(httpSrv)
	})
	eg.Go(func() error {
		<-ctx.Done()
		srv.Shutdown()
		return shutdown(httpSrv)
	})
	if cfg.MetricsAddr != "" {
		eg.Go(func() error { return serveMetrics(ctx, cfg.MetricsAddr) })
	}
	return eg.Wait()
}

// serveMetrics serves Prometheus metrics until ctx ends.
func serveMetrics(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- listen(httpSrv) }()
	logger.Infof("metrics listening on %s", addr)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return shutdown(httpSrv)
	}
}

func listen(srv *http.Server) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func shutdown(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
