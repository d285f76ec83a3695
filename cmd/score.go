package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/ats-scorer/internal/logger"
	"github.com/spigell/ats-scorer/internal/scoring"
)

var scoreCmd = &cobra.Command{
	Use:   "score [candidate-id...]",
	Short: "Score candidates with the LLM evaluator",
	Run: func(cmd *cobra.Command, args []string) {
		score(cmd, args)
	},
}

var finalScoreCmd = &cobra.Command{
	Use:   "final-score <candidate-id> [value]",
	Short: "Override the final score of a scored candidate",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(_ *cobra.Command, args []string) {
		finalScore(args)
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)
	rootCmd.AddCommand(finalScoreCmd)

	scoreCmd.Flags().Int64("job", 0, "score every candidate of the job")
	scoreCmd.Flags().Bool("all", false, "score every candidate of every job")
	scoreCmd.Flags().BoolP("force", "f", false, "rescore candidates that already have a score")
	scoreCmd.Flags().BoolP("auto-approve", "y", false, "do not ask for confirmation")
}

func score(cmd *cobra.Command, args []string) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d := setup(ctx, depsOptions{evaluator: true, publisher: true})
	defer d.Close()

	jobID, _ := cmd.Flags().GetInt64("job")
	all, _ := cmd.Flags().GetBool("all")
	force, _ := cmd.Flags().GetBool("force")
	autoApprove, _ := cmd.Flags().GetBool("auto-approve")

	ids, err := parseIDs(args)
	if err != nil {
		d.logger.Fatal("parsing candidate ids", zap.Error(err))
	}

	switch {
	case all:
		ids, err = allCandidateIDs(ctx, d)
	case jobID > 0:
		ids, err = jobCandidateIDs(ctx, d, jobID)
	}
	if err != nil {
		d.logger.Fatal("listing candidates", zap.Error(err))
	}

	if len(ids) == 0 {
		d.logger.Info("exiting", zap.String("reason", "no candidates to score"))
		return
	}

	if all && !autoApprove {
		confirm := promptui.Prompt{
			Label:     fmt.Sprintf("Score %d candidates", len(ids)),
			IsConfirm: true,
		}
		if _, err := confirm.Run(); err != nil {
			d.logger.Info("exiting", zap.String("reason", "not confirmed"))
			return
		}
	}

	opts := d.bulkOptions()
	opts.SkipScored = !force

	report, err := d.scoring.ScoreMany(ctx, ids, opts)
	if err != nil {
		d.logger.Error("scoring interrupted", zap.Error(err))
	}

	for id, reason := range report.Failed {
		d.logger.Warn("candidate not scored", zap.Int64(logger.FieldCandidateID, id), zap.String("reason", reason))
	}
	d.logger.Info("scoring done",
		zap.Int64s("scored", report.Scored),
		zap.Int64s("skipped", report.Skipped),
		zap.Int("failed", len(report.Failed)),
	)
}

func finalScore(args []string) {
	ctx := context.Background()

	d := setup(ctx, depsOptions{})
	defer d.Close()

	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		d.logger.Fatal("parsing candidate id", zap.Error(err))
	}

	raw := ""
	if len(args) == 2 {
		raw = args[1]
	} else {
		prompt := promptui.Prompt{
			Label:    fmt.Sprintf("Final score for candidate %d (%d-%d)", id, scoring.MinFinalScore, scoring.MaxFinalScore),
			Validate: validateFinalScore,
		}
		if raw, err = prompt.Run(); err != nil {
			d.logger.Fatal("exiting", zap.Error(err))
		}
	}

	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		d.logger.Fatal("parsing final score", zap.Error(err))
	}

	updated, err := d.scoring.SetManualFinalScore(ctx, id, value)
	if err != nil {
		d.logger.Fatal("overriding final score", zap.Error(err))
	}

	d.logger.Info("final score saved", zap.Int64(logger.FieldCandidateID, id), zap.Float64("final_score", updated.FinalScore))
}

func validateFinalScore(input string) error {
	value, err := strconv.ParseFloat(input, 64)
	if err != nil {
		return errors.New("not a number")
	}
	if value < scoring.MinFinalScore || value > scoring.MaxFinalScore {
		return fmt.Errorf("must be between %d and %d", scoring.MinFinalScore, scoring.MaxFinalScore)
	}
	return nil
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid candidate id %q: %w", arg, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func jobCandidateIDs(ctx context.Context, d *deps, jobID int64) ([]int64, error) {
	list, err := d.candidates.ListByJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(list))
	for _, c := range list {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func allCandidateIDs(ctx context.Context, d *deps) ([]int64, error) {
	jobs, err := d.candidates.ListJobs(ctx)
	if err != nil {
		return nil, err
	}

	var ids []int64
	for _, job := range jobs {
		jobIDs, err := jobCandidateIDs(ctx, d, job.ID)
		if err != nil {
			return nil, err
		}
		ids = append(ids, jobIDs...)
	}
	return ids, nil
}
