package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/planboard/planboard-core/internal/domain/project"
	"github.com/planboard/planboard-core/internal/domain/shared"
	"github.com/planboard/planboard-core/pkg/circuitbreaker"
	"github.com/planboard/planboard-core/pkg/logger"
	"github.com/planboard/planboard-core/pkg/retry"
)

// ResilientTaskSource adapts a raw task store to project.TaskSource with
// retries and a circuit breaker. While the breaker is open every call fails
// fast with shared.ErrTaskStoreOffline, so a whole aggregation batch turns
// into a recoverable batch failure instead of waiting on timeouts.
type ResilientTaskSource struct {
	next    project.TaskSource
	retrier *retry.Retrier
	breaker *circuitbreaker.CircuitBreaker
	logger  *slog.Logger
}

// NewResilientTaskSource wraps next. Nil retrier and breaker get the
// task-store presets.
func NewResilientTaskSource(
	next project.TaskSource,
	retrier *retry.Retrier,
	breaker *circuitbreaker.CircuitBreaker,
	log *slog.Logger,
) *ResilientTaskSource {
	log = logger.OrDefault(log).With(logger.Component("task_source"))
	if retrier == nil {
		retrier = retry.TaskStoreRetrier()
	}
	if breaker == nil {
		breaker = circuitbreaker.TaskStoreBreaker(func(name string, from, to circuitbreaker.State) {
			log.Warn("breaker state changed",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				logger.BreakerState(to.String()),
			)
		})
	}

	return &ResilientTaskSource{
		next: next,
		retrier: retrier.With(retry.WithRetryIf(func(err error) bool {
			return !circuitbreaker.IsRejected(err) &&
				!errors.Is(err, context.Canceled) &&
				!errors.Is(err, context.DeadlineExceeded)
		})),
		breaker: breaker,
		logger:  log,
	}
}

// TasksByProject implements project.TaskSource.
func (s *ResilientTaskSource) TasksByProject(ctx context.Context, projectID string) ([]project.Task, error) {
	tasks, err := retry.DoWithData(ctx, s.retrier, func(ctx context.Context) ([]project.Task, error) {
		var result []project.Task
		err := s.breaker.Execute(ctx, func(ctx context.Context) error {
			var err error
			result, err = s.next.TasksByProject(ctx, projectID)
			return err
		})
		return result, err
	})
	if err == nil {
		return tasks, nil
	}

	switch {
	case circuitbreaker.IsRejected(err):
		return nil, fmt.Errorf("%w: %w", shared.ErrTaskStoreOffline, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return nil, err
	default:
		s.logger.Debug("task fetch failed", logger.ProjectID(projectID), logger.Err(err))
		return nil, shared.WrapError("project", "FetchTasks", shared.ErrExternalService,
			"fetch tasks of "+projectID, err)
	}
}

// BreakerState returns the breaker state for health reporting.
func (s *ResilientTaskSource) BreakerState() circuitbreaker.State {
	return s.breaker.State()
}

var _ project.TaskSource = (*ResilientTaskSource)(nil)
