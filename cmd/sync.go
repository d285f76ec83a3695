package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull jobs and applications from the job board",
	Run: func(_ *cobra.Command, _ []string) {
		runSync()
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := setup(ctx, depsOptions{})
	defer d.Close()

	result, err := d.candidates.Sync(ctx)
	if err != nil {
		d.logger.Fatal("sync failed", zap.Error(err))
	}

	d.logger.Info("sync done", zap.Int("jobs", result.Jobs), zap.Int("applications", result.Applications))
}
