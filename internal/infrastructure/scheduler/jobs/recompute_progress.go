package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/planboard/planboard-core/internal/application/query"
	"github.com/planboard/planboard-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECOMPUTE PROGRESS JOB
// ══════════════════════════════════════════════════════════════════════════════

// ProjectLister lists the ids of every project.
type ProjectLister interface {
	ListProjectIDs(ctx context.Context) ([]string, error)
}

// ProgressComputer recomputes progress for a set of projects.
type ProgressComputer interface {
	ComputeAll(ctx context.Context, projectIDs []string) (query.Aggregate, error)
}

// RecomputeProgressJob recomputes and publishes progress for all projects.
type RecomputeProgressJob struct {
	projects   ProjectLister
	aggregator ProgressComputer
	timeout    time.Duration
	log        *slog.Logger
}

// NewRecomputeProgressJob creates the job. timeout bounds one run (0 = none).
func NewRecomputeProgressJob(projects ProjectLister, aggregator ProgressComputer, timeout time.Duration, log *slog.Logger) *RecomputeProgressJob {
	return &RecomputeProgressJob{
		projects:   projects,
		aggregator: aggregator,
		timeout:    timeout,
		log:        logger.OrDefault(log).With(logger.JobName("recompute_progress")),
	}
}

// Name returns the job name.
func (j *RecomputeProgressJob) Name() string { return "recompute_progress" }

// Description returns the job description.
func (j *RecomputeProgressJob) Description() string {
	return "Recomputes completed/total task counts for every project"
}

// Run lists projects and runs one aggregation pass over them.
// A pass overtaken by a newer one is not an error.
func (j *RecomputeProgressJob) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	ids, err := j.projects.ListProjectIDs(ctx)
	if err != nil {
		return fmt.Errorf("list projects: %w", err)
	}

	agg, err := j.aggregator.ComputeAll(ctx, ids)
	if err != nil {
		return err
	}

	if agg.Superseded {
		j.log.Debug("pass superseded", logger.ProjectCount(len(ids)))
		return nil
	}
	j.log.Info("progress recomputed",
		logger.Token(agg.Token),
		logger.ProjectCount(len(agg.Progress)),
		slog.Int("failed", len(agg.Failed)),
	)
	return nil
}
