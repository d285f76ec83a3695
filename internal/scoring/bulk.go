package scoring

import (
	"context"
	"errors"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/spigell/ats-scorer/internal/logger"
)

const defaultBulkConcurrency = 4

type BulkOptions struct {
	// Concurrency bounds in-flight scoring runs. Defaults to 4.
	Concurrency int
	// RatePerSecond limits how often a scoring run may start. Zero disables
	// the limit.
	RatePerSecond float64
	// SkipScored leaves candidates that already have a score untouched.
	SkipScored bool
}

// BulkReport summarizes a ScoreMany call. Failed maps a candidate id to the
// error message of its run.
type BulkReport struct {
	Scored  []int64          `json:"scored"`
	Skipped []int64          `json:"skipped"`
	Failed  map[int64]string `json:"failed"`
}

// ScoreMany scores candidates in parallel. A failing candidate does not stop
// the others; only cancellation of ctx aborts the batch.
func (s *Service) ScoreMany(ctx context.Context, ids []int64, opts BulkOptions) (BulkReport, error) {
	report := BulkReport{Scored: []int64{}, Skipped: []int64{}, Failed: map[int64]string{}}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = defaultBulkConcurrency
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), 1)
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(concurrency)

	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if opts.SkipScored {
				_, err := s.scores.Get(ctx, id)
				if err == nil {
					mu.Lock()
					report.Skipped = append(report.Skipped, id)
					mu.Unlock()
					return nil
				}
				if !errors.Is(err, ErrScoreNotFound) {
					mu.Lock()
					report.Failed[id] = err.Error()
					mu.Unlock()
					return nil
				}
			}

			if err := limiter.Wait(ctx); err != nil {
				return err
			}

			_, err := s.ScoreCandidate(ctx, id)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed[id] = err.Error()
				s.logger.Warn("bulk scoring failed for candidate", zap.Int64(logger.FieldCandidateID, id), zap.Error(err))
				return nil
			}
			report.Scored = append(report.Scored, id)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	sortIDs(report.Scored)
	sortIDs(report.Skipped)

	s.logger.Info("bulk scoring finished",
		zap.Int("scored", len(report.Scored)),
		zap.Int("skipped", len(report.Skipped)),
		zap.Int("failed", len(report.Failed)),
	)

	return report, err
}

func sortIDs(ids []int64) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
