package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/ats-scorer/internal/httpapi"
)

const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 10 * time.Second
	// Bulk scoring of a job waits on many model calls.
	writeTimeout    = 10 * time.Minute
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scoring HTTP API",
	Run: func(_ *cobra.Command, _ []string) {
		serve()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "listen address (default :8080)")
	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}

func serve() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := setup(ctx, depsOptions{evaluator: true, publisher: true, metrics: true})
	defer d.Close()

	api := httpapi.NewServer(d.scoring, d.candidates,
		httpapi.WithLogger(d.logger.Named("http")),
		httpapi.WithMetrics(d.metrics),
		httpapi.WithBulkOptions(d.bulkOptions()),
	)

	srv := &http.Server{
		Addr:              d.config.Server.Addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		d.logger.Info("starting the ats-scorer api", zap.String("addr", srv.Addr), zap.String("version", version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		d.logger.Info("shutting down", zap.String("reason", "signal received"))
	case err := <-errCh:
		if err != nil {
			d.logger.Error("server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		d.logger.Error("server shutdown failed", zap.Error(err))
	}
}
