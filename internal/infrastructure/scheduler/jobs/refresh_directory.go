// Package jobs contains the scheduled jobs of Planboard.
package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/planboard/planboard-core/internal/domain/member"
	"github.com/planboard/planboard-core/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// REFRESH DIRECTORY JOB
// ══════════════════════════════════════════════════════════════════════════════

// DirectoryRefresher reloads the member roster.
type DirectoryRefresher interface {
	member.SnapshotProvider
	Refresh(ctx context.Context) error
}

// RefreshDirectoryJob reloads the member directory from its source.
type RefreshDirectoryJob struct {
	refresher DirectoryRefresher
	timeout   time.Duration
	log       *slog.Logger
}

// NewRefreshDirectoryJob creates the job. timeout bounds one run (0 = none).
func NewRefreshDirectoryJob(refresher DirectoryRefresher, timeout time.Duration, log *slog.Logger) *RefreshDirectoryJob {
	return &RefreshDirectoryJob{
		refresher: refresher,
		timeout:   timeout,
		log:       logger.OrDefault(log).With(logger.JobName("refresh_directory")),
	}
}

// Name returns the job name.
func (j *RefreshDirectoryJob) Name() string { return "refresh_directory" }

// Description returns the job description.
func (j *RefreshDirectoryJob) Description() string {
	return "Reloads the member directory used to resolve assignee names"
}

// Run refreshes the directory. On failure the previous snapshot stays in use.
func (j *RefreshDirectoryJob) Run(ctx context.Context) error {
	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	if err := j.refresher.Refresh(ctx); err != nil {
		return err
	}

	snap := j.refresher.Snapshot()
	j.log.Debug("directory refreshed",
		logger.Fingerprint(snap.Fingerprint()),
		slog.Int("members", snap.Len()),
	)
	return nil
}
