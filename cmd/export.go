package cmd

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/ats-scorer/internal/candidates"
	"github.com/spigell/ats-scorer/internal/report"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the ranked candidates of a job to an xlsx file",
	Run: func(cmd *cobra.Command, _ []string) {
		export(cmd)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().Int64("job", 0, "job id to export")
	exportCmd.Flags().StringP("out", "o", "", "output file (default candidates-job-<id>.xlsx)")
	exportCmd.MarkFlagRequired("job")
}

func export(cmd *cobra.Command) {
	ctx := context.Background()

	d := setup(ctx, depsOptions{})
	defer d.Close()

	jobID, _ := cmd.Flags().GetInt64("job")
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = fmt.Sprintf("candidates-job-%d.xlsx", jobID)
	}
	if !strings.HasSuffix(strings.ToLower(out), ".xlsx") {
		out += ".xlsx"
	}
	out = filepath.Clean(out)

	job := findJob(ctx, d, jobID)

	rows, err := report.Collect(ctx, d.candidates, d.scoring, jobID)
	if err != nil {
		d.logger.Fatal("collecting candidates", zap.Error(err))
	}

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, job, rows); err != nil {
		d.logger.Fatal("building report", zap.Error(err))
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		d.logger.Fatal("writing report", zap.Error(err))
	}

	d.logger.Info("report exported", zap.String("filename", out), zap.Int("candidates", len(rows)))
}

// findJob falls back to a bare job when it was never synced.
func findJob(ctx context.Context, d *deps, jobID int64) candidates.Job {
	jobs, err := d.candidates.ListJobs(ctx)
	if err != nil {
		d.logger.Warn("listing jobs", zap.Error(err))
	}
	for _, job := range jobs {
		if job.ID == jobID {
			return job
		}
	}
	return candidates.Job{ID: jobID}
}
